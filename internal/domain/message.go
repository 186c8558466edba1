package domain

import (
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleUser marks a message posted by the interviewee.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the reply generator.
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's append-only transcript.
// Messages are never mutated or deleted after creation.
type Message struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"sessionId"`
	Role             Role      `json:"role"`
	Text             string    `json:"text"`
	AudioStoragePath string    `json:"audioStoragePath,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Recording is the stored reference for an issued upload target.
type Recording struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	StoragePath string    `json:"storagePath"`
	ContentType string    `json:"contentType"`
	Filename    string    `json:"filename"`
	CreatedAt   time.Time `json:"created_at"`
}
