// Package uploads issues presigned upload targets for session recordings.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prepstack/interviewd/internal/domain"
	"github.com/prepstack/interviewd/internal/store"
)

// ErrInvalidFilename is returned for empty or path-traversing filenames.
var ErrInvalidFilename = errors.New("invalid filename")

// Request carries the inputs for one presigned upload target.
type Request struct {
	SessionID   string
	ContentType string
	Filename    string
}

// Target is an issued upload destination.
type Target struct {
	UploadURL   string `json:"uploadUrl"`
	StoragePath string `json:"storagePath"`
	RecordingID string `json:"recordingId"`
}

// Signer issues upload targets. A real implementation would presign against
// an object-storage service; StubSigner fabricates URLs for development.
type Signer interface {
	Presign(ctx context.Context, req Request) (*Target, error)
}

// StubSigner issues placeholder upload URLs under a fixed base URL and
// records each issued target in the store.
type StubSigner struct {
	store   store.Store
	baseURL string
}

// NewStubSigner creates a stub presigner.
func NewStubSigner(st store.Store, baseURL string) *StubSigner {
	if baseURL == "" {
		baseURL = "https://example.storage.local"
	}
	return &StubSigner{store: st, baseURL: strings.TrimRight(baseURL, "/")}
}

// Presign issues a placeholder upload target and records it.
func (s *StubSigner) Presign(ctx context.Context, req Request) (*Target, error) {
	if req.Filename == "" || strings.ContainsAny(req.Filename, "/\\") || strings.Contains(req.Filename, "..") {
		return nil, ErrInvalidFilename
	}

	recordingID := uuid.NewString()
	storagePath := fmt.Sprintf("uploads/%s/%s", req.SessionID, req.Filename)

	rec := &domain.Recording{
		ID:          recordingID,
		SessionID:   req.SessionID,
		StoragePath: storagePath,
		ContentType: req.ContentType,
		Filename:    req.Filename,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateRecording(ctx, rec); err != nil {
		return nil, fmt.Errorf("record upload target: %w", err)
	}

	return &Target{
		UploadURL:   fmt.Sprintf("%s/%s?signature=stub", s.baseURL, storagePath),
		StoragePath: storagePath,
		RecordingID: recordingID,
	}, nil
}

var _ Signer = (*StubSigner)(nil)
