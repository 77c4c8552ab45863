package domain

import "context"

// Turn is one provider-facing message, derived fresh from the shared history
// for every call. Content carries a speaker attribution marker so a backend
// that only understands two roles can still tell the three parties apart.
// Turns are never persisted.
type Turn struct {
	Role    Role
	Content string
}

// Provider is the interface both LLM backends implement. Complete produces
// one reply for an ordered turn sequence; the request shape, model and
// sampling parameters are fixed per adapter.
type Provider interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
	Name() string
	DisplayName() string
	Healthy(ctx context.Context) error
}
