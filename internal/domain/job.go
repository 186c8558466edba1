// Package domain contains core domain types for the interviewd application.
package domain

import (
	"time"
)

// JobStatus tracks a generation job through its lifecycle.
type JobStatus string

const (
	// JobPending means the job has been accepted but not processed yet.
	JobPending JobStatus = "pending"
	// JobDone means processing finished and summary/questions are populated.
	JobDone JobStatus = "done"
	// JobFailed means the generation collaborator failed; Error holds detail.
	JobFailed JobStatus = "failed"
)

// Company identifies the target of a generation job.
type Company struct {
	Domain string `json:"domain"`
}

// Question is a single generated interview question.
type Question struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Why      string `json:"why"`
	Tips     string `json:"tips"`
}

// Job is a unit of asynchronous generation work. It transitions
// pending→done or pending→failed exactly once and is never deleted.
type Job struct {
	ID        string     `json:"id"`
	JobTitle  string     `json:"jobTitle"`
	Company   Company    `json:"company"`
	Status    JobStatus  `json:"status"`
	Summary   string     `json:"summary,omitempty"`
	Error     string     `json:"error,omitempty"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == JobDone || j.Status == JobFailed
}

// Clone returns a deep copy so readers never share question slices
// with a record that is still being mutated.
func (j *Job) Clone() *Job {
	c := *j
	if j.Questions != nil {
		c.Questions = make([]Question, len(j.Questions))
		copy(c.Questions, j.Questions)
	}
	return &c
}
