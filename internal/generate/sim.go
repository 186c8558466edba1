package generate

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/prepstack/interviewd/internal/domain"
)

// SimConfig controls the simulated collaborator's latency and fragmenting.
type SimConfig struct {
	// JobDelay simulates scraping/LLM latency before a job completes.
	JobDelay time.Duration
	// ReplyFragments is how many fragments a reply is split into.
	ReplyFragments int
	// FragmentDelay is the pacing delay between reply fragments.
	FragmentDelay time.Duration
}

// DefaultSimConfig returns the stand-in's default latency settings.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		JobDelay:       time.Second,
		ReplyFragments: 2,
		FragmentDelay:  600 * time.Millisecond,
	}
}

// Sim is a simulated generation collaborator. It fabricates summaries,
// question sets and replies with configurable pacing.
type Sim struct {
	cfg SimConfig
}

// NewSim creates a simulated generator.
func NewSim(cfg SimConfig) *Sim {
	if cfg.ReplyFragments <= 0 {
		cfg.ReplyFragments = 1
	}
	return &Sim{cfg: cfg}
}

// GenerateJob fabricates a summary and question set after JobDelay.
func (s *Sim) GenerateJob(ctx context.Context, req JobRequest) (*JobResult, error) {
	select {
	case <-time.After(s.cfg.JobDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &JobResult{
		Summary: fmt.Sprintf("AI-generated summary for %s - role: %s", req.CompanyURL, req.JobTitle),
		Questions: []domain.Question{
			{
				ID:       uuid.NewString(),
				Question: "Tell me about a time you optimized a web app for speed.",
				Why:      "Performance skills.",
				Tips:     "Mention Lighthouse metrics",
			},
			{
				ID:       uuid.NewString(),
				Question: "How do you handle disagreements on technical decisions?",
				Why:      "Collaboration.",
				Tips:     "Use STAR method",
			},
		},
	}, nil
}

// Reply streams a fabricated reply split into ReplyFragments pieces with
// FragmentDelay pacing between them.
func (s *Sim) Reply(ctx context.Context, req ReplyRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text := "Simulated assistant response to: " + req.UserText
		for i, frag := range splitFragments(text, s.cfg.ReplyFragments) {
			if i > 0 {
				select {
				case <-time.After(s.cfg.FragmentDelay):
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				}
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}

// splitFragments cuts text into n contiguous pieces whose concatenation is
// the original text. Cuts fall on rune boundaries so every fragment is
// valid UTF-8. Short texts yield fewer pieces rather than empty ones.
func splitFragments(text string, n int) []string {
	runes := []rune(text)
	if n <= 1 || len(runes) <= n {
		return []string{text}
	}
	size := len(runes) / n
	frags := make([]string, 0, n)
	for i := 0; i < n-1; i++ {
		frags = append(frags, string(runes[i*size:(i+1)*size]))
	}
	frags = append(frags, string(runes[(n-1)*size:]))
	return frags
}

var _ Generator = (*Sim)(nil)
