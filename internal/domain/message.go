package domain

import "time"

// Author identifies who produced a message: the human or one of the two
// model backends.
type Author string

const (
	AuthorUser   Author = "user"
	AuthorGPT    Author = "gpt"
	AuthorClaude Author = "claude"
)

// DisplayName returns the human-readable speaker name used in attribution
// markers and visible error messages.
func (a Author) DisplayName() string {
	switch a {
	case AuthorUser:
		return "User"
	case AuthorGPT:
		return "GPT"
	case AuthorClaude:
		return "Claude"
	}
	return string(a)
}

// Role is the two-party conversational role providers understand.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Provider tags accepted in a turn request, in the form the UI sends them.
const (
	TagGPT    = "@gpt"
	TagClaude = "@claude"
)

// Message is one entry of the shared conversation log. Immutable once
// appended. Content never carries a speaker attribution marker; markers are
// stripped before storage.
type Message struct {
	ID        string
	Author    Author
	Role      Role
	Content   string
	Timestamp time.Time
}
