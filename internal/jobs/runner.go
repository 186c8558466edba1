// Package jobs runs asynchronous generation jobs.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prepstack/interviewd/internal/domain"
	"github.com/prepstack/interviewd/internal/generate"
	"github.com/prepstack/interviewd/internal/metrics"
	"github.com/prepstack/interviewd/internal/store"
)

// Runner schedules fire-and-forget generation jobs. Submit returns as soon
// as the pending record exists; callers poll the store for completion.
// There is no cancellation and no result channel back to the caller: the
// only observable effect is the subsequent state of the job record.
type Runner struct {
	store   store.Store
	gen     generate.Generator
	timeout time.Duration
}

// NewRunner creates a job runner. timeout bounds a single background
// processing attempt.
func NewRunner(st store.Store, gen generate.Generator, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Runner{store: st, gen: gen, timeout: timeout}
}

// Submit creates a pending job record and schedules background processing.
func (r *Runner) Submit(ctx context.Context, req generate.JobRequest) (*domain.Job, error) {
	now := time.Now()
	job := &domain.Job{
		ID:        uuid.NewString(),
		JobTitle:  req.JobTitle,
		Company:   domain.Company{Domain: req.CompanyURL},
		Status:    domain.JobPending,
		Questions: []domain.Question{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	go r.process(job.ID, req)

	return job, nil
}

// process runs the generation collaborator and records the outcome. It is
// detached from the submitting request: a client disconnect never aborts it.
func (r *Runner) process(jobID string, req generate.JobRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	result, err := r.gen.GenerateJob(ctx, req)

	// The outcome write must survive the processing deadline: a timed-out
	// run still has to land on the record instead of leaving it pending.
	recordCtx, recordCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer recordCancel()

	if err != nil {
		// Collaborator failures are captured on the record, never
		// swallowed as success.
		slog.Error("job processing failed", "job_id", jobID, "error", err)
		if failErr := r.store.FailJob(recordCtx, jobID, err.Error()); failErr != nil {
			slog.Error("failed to record job failure", "job_id", jobID, "error", failErr)
			return
		}
		metrics.RecordJobFinished(string(domain.JobFailed))
		return
	}

	if err := r.store.CompleteJob(recordCtx, jobID, result.Summary, result.Questions); err != nil {
		slog.Error("failed to record job completion", "job_id", jobID, "error", err)
		return
	}
	metrics.RecordJobFinished(string(domain.JobDone))
	slog.Info("job completed", "job_id", jobID, "questions", len(result.Questions))
}
