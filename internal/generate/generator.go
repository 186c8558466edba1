// Package generate defines the generation collaborator interface and its
// simulated stand-in. The collaborator decides fragment count, boundaries
// and pacing; callers only consume the ordered fragment stream.
package generate

import (
	"context"
	"iter"

	"github.com/prepstack/interviewd/internal/domain"
)

// JobRequest carries the inputs for a generation job.
type JobRequest struct {
	CompanyURL string
	JobTitle   string
	ResumeText string
}

// JobResult is the outcome of a successful generation job.
type JobResult struct {
	Summary   string
	Questions []domain.Question
}

// ReplyRequest carries the inputs for one assistant reply.
type ReplyRequest struct {
	SessionID string
	UserText  string
}

// Generator is the external generation collaborator. A real implementation
// would call a scraping/LLM service; the Sim stand-in fabricates output.
type Generator interface {
	// GenerateJob produces the summary and question set for a job.
	GenerateJob(ctx context.Context, req JobRequest) (*JobResult, error)

	// Reply streams the assistant reply to a user message as an ordered
	// sequence of text fragments. The concatenation of all fragments is
	// the full reply text.
	Reply(ctx context.Context, req ReplyRequest) iter.Seq2[string, error]
}
