// Package orchestrator drives one user turn across the requested providers,
// strictly in tag order: each provider's reply is folded into the running
// context before the next provider is called.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"duochat/internal/domain"
	"duochat/internal/history"
	"duochat/internal/metrics"
	"duochat/internal/speaker"
)

// Caller-input errors, rejected before any history mutation.
var (
	ErrEmptyContent = errors.New("content is required")
	ErrNoTags       = errors.New("tags array is required")
)

// Invoker is the resilient caller surface the orchestrator drives.
type Invoker interface {
	Invoke(ctx context.Context, p domain.Provider, turns []domain.Turn) (string, error)
}

// Outcome is the per-tag result of a turn: one reply entry, success or a
// visible failure. Author is empty for an unrecognized tag.
type Outcome struct {
	Tag       string
	ID        string
	Author    domain.Author
	Content   string
	Timestamp time.Time
	OK        bool
}

// TurnResult is what one accepted turn produced: the id of the appended
// user message and exactly one outcome per requested tag, in tag order.
type TurnResult struct {
	UserMessageID string
	Outcomes      []Outcome
}

type Config struct {
	History   *history.Store
	Providers map[string]domain.Provider // keyed by tag, e.g. "@gpt"
	Caller    Invoker
	Logger    *slog.Logger
}

// Orchestrator owns the turn state machine. HandleTurn is serialized by an
// internal mutex: the shared history has a single-writer contract and
// interleaved turns would corrupt conversational ordering.
type Orchestrator struct {
	mu        sync.Mutex
	history   *history.Store
	providers map[string]domain.Provider
	caller    Invoker
	logger    *slog.Logger
}

func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		history:   cfg.History,
		providers: cfg.Providers,
		caller:    cfg.Caller,
		logger:    cfg.Logger,
	}
}

// HandleTurn appends the user message, then dispatches to each tagged
// provider in order. A failed provider never blocks the remaining tags; the
// returned outcome list always has one entry per tag.
func (o *Orchestrator) HandleTurn(ctx context.Context, content string, tags []string) (*TurnResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len(tags) == 0 {
		return nil, ErrNoTags
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	userMsg := newMessage(domain.AuthorUser, domain.RoleUser, content)
	o.history.Append(userMsg)
	metrics.TurnsTotal.Inc()

	running := speaker.Turns(o.history.Snapshot())
	outcomes := make([]Outcome, 0, len(tags))

	for _, tag := range tags {
		p, ok := o.providers[tag]
		if !ok {
			// Unknown tag fails this slot only and leaves history untouched.
			o.logger.Warn("unknown provider tag", "tag", tag)
			outcomes = append(outcomes, Outcome{
				Tag:       tag,
				ID:        uuid.NewString(),
				Content:   fmt.Sprintf("(unknown provider: %s)", tag),
				Timestamp: time.Now(),
			})
			continue
		}

		start := time.Now()
		text, err := o.caller.Invoke(ctx, p, running)
		if err != nil {
			// The failure stays visible in the transcript, but does not
			// become context for the remaining tags.
			o.logger.Error("provider call failed",
				"provider", p.Name(), "tag", tag, "error", err)
			reply := newMessage(domain.Author(p.Name()), domain.RoleAssistant,
				fmt.Sprintf("(error from %s: %v)", p.DisplayName(), err))
			o.history.Append(reply)
			outcomes = append(outcomes, outcomeFrom(tag, reply, false))
			continue
		}

		cleaned := speaker.StripLabel(text)
		reply := newMessage(domain.Author(p.Name()), domain.RoleAssistant, cleaned)
		o.history.Append(reply)
		running = append(running, domain.Turn{
			Role:    domain.RoleAssistant,
			Content: speaker.Label(p.DisplayName(), cleaned),
		})
		outcomes = append(outcomes, outcomeFrom(tag, reply, true))

		o.logger.Info("provider replied",
			"provider", p.Name(), "tag", tag,
			"duration_ms", time.Since(start).Milliseconds(),
			"reply_len", len(cleaned))
	}

	return &TurnResult{UserMessageID: userMsg.ID, Outcomes: outcomes}, nil
}

// History returns a point-in-time copy of the shared log.
func (o *Orchestrator) History() []domain.Message {
	return o.history.Snapshot()
}

// Reset empties the shared log; the next turn starts a fresh transcript.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history.Reset()
}

func newMessage(author domain.Author, role domain.Role, content string) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		Author:    author,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func outcomeFrom(tag string, msg domain.Message, ok bool) Outcome {
	return Outcome{
		Tag:       tag,
		ID:        msg.ID,
		Author:    msg.Author,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
		OK:        ok,
	}
}
