// Package api provides HTTP handlers for the interviewd API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prepstack/interviewd/internal/config"
	"github.com/prepstack/interviewd/internal/domain"
	"github.com/prepstack/interviewd/internal/generate"
	"github.com/prepstack/interviewd/internal/hub"
	"github.com/prepstack/interviewd/internal/interview"
	"github.com/prepstack/interviewd/internal/jobs"
	"github.com/prepstack/interviewd/internal/store"
	"github.com/prepstack/interviewd/internal/uploads"
)

// Handler handles the interviewd HTTP API.
type Handler struct {
	store       store.Store
	runner      *jobs.Runner
	interviews  *interview.Service
	hub         *hub.Hub
	signer      uploads.Signer
	rateLimiter *RateLimiter
	cfg         *config.Config
}

// NewHandler creates a new Handler with its dependencies.
func NewHandler(st store.Store, runner *jobs.Runner, interviews *interview.Service, h *hub.Hub, signer uploads.Signer, cfg *config.Config) *Handler {
	return &Handler{
		store:       st,
		runner:      runner,
		interviews:  interviews,
		hub:         h,
		signer:      signer,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		cfg:         cfg,
	}
}

// Close releases handler resources, stopping the rate limiter's eviction.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/mocks/generate", h.GenerateJob)
		r.Get("/mocks/{jobID}", h.GetJob)
		r.Post("/interviews", h.OpenSession)
		r.Route("/interviews/{sessionID}", func(r chi.Router) {
			r.Get("/messages", h.ListMessages)
			r.Post("/messages", h.PostMessage)
			r.Get("/stream", h.HandleStream)
			r.Get("/ws", h.HandleStreamWS)
		})
		r.Post("/uploads/presign", h.Presign)
		r.Get("/health", h.Health)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody decodes a size-limited JSON request body into v. It reports
// whether decoding succeeded; on failure the error response is written.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Stream.MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type generateRequest struct {
	CompanyURL string `json:"companyUrl"`
	JobTitle   string `json:"jobTitle"`
	ResumeText string `json:"resumeText"`
}

// GenerateJob handles POST /api/mocks/generate. It accepts the job and
// returns immediately; callers poll the job record for completion.
func (h *Handler) GenerateJob(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.CompanyURL == "" {
		Error(w, http.StatusBadRequest, "companyUrl is required")
		return
	}

	job, err := h.runner.Submit(r.Context(), generate.JobRequest{
		CompanyURL: req.CompanyURL,
		JobTitle:   req.JobTitle,
		ResumeText: req.ResumeText,
	})
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	JSON(w, http.StatusAccepted, map[string]string{
		"jobId":   job.ID,
		"status":  string(job.Status),
		"pollUrl": "/api/mocks/" + job.ID,
	})
}

// GetJob handles GET /api/mocks/{jobID}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, store.ErrJobNotFound) {
		Error(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	JSON(w, http.StatusOK, job)
}

type openSessionRequest struct {
	JobID string `json:"jobId"`
}

// OpenSession handles POST /api/interviews.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	session, err := h.interviews.OpenSession(r.Context(), req.JobID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	JSON(w, http.StatusCreated, map[string]string{
		"sessionId": session.ID,
		"streamUrl": streamURL(session.ID),
	})
}

// ListMessages handles GET /api/interviews/{sessionID}/messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	msgs, err := h.interviews.Messages(r.Context(), sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

type postMessageRequest struct {
	Text             string `json:"text"`
	AudioStoragePath string `json:"audioStoragePath"`
}

// PostMessage handles POST /api/interviews/{sessionID}/messages. The user
// message is stored synchronously; the assistant reply arrives on the
// session's event stream.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if !h.rateLimiter.Allow(sessionID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req postMessageRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	_, err := h.interviews.PostMessage(r.Context(), sessionID, req.Text, req.AudioStoragePath)
	if errors.Is(err, store.ErrSessionNotFound) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	if errors.Is(err, interview.ErrSessionClosed) {
		Error(w, http.StatusConflict, "session closed")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to post message")
		return
	}

	JSON(w, http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"streamUrl": streamURL(sessionID),
	})
}

type presignRequest struct {
	SessionID   string `json:"sessionId"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
}

// Presign handles POST /api/uploads/presign.
func (h *Handler) Presign(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	target, err := h.signer.Presign(r.Context(), uploads.Request{
		SessionID:   req.SessionID,
		ContentType: req.ContentType,
		Filename:    req.Filename,
	})
	if errors.Is(err, uploads.ErrInvalidFilename) {
		Error(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to presign upload")
		return
	}

	JSON(w, http.StatusOK, target)
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, "storage unreachable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func streamURL(sessionID string) string {
	return "/api/interviews/" + sessionID + "/stream"
}
