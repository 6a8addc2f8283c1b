package models

import "time"

// Conversation represents a single research thread. It provides basic identification and
// labeling capabilities for organizing transcripts in the sidebar.
type Conversation struct {
	ID    string
	Title string
}

// Message represents an individual entry within a conversation transcript. Messages form an
// ordered sequence, and insertion order is conversation order. While a turn is in flight at
// most one mutable assistant message sits at the tail of the sequence; once the turn
// completes it becomes immutable history.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message streamed in from the research service.
	RoleAssistant Role = "assistant"
)
