// Package speaker translates between the neutral stored history and the
// provider-facing view. Providers only understand the user/assistant role
// pair, so every turn sent to a backend is prefixed with a
// "[SPEAKER: <name>]" marker that names which of the three parties wrote it.
package speaker

import (
	"fmt"
	"regexp"
	"strings"

	"duochat/internal/domain"
)

var (
	labelPattern  = regexp.MustCompile(`(?i)^\[SPEAKER:\s*[^\]]*\]\s*`)
	markerPattern = regexp.MustCompile(`(?i)^\[SPEAKER:\s*([^\]]*)\]`)
)

// Label prefixes content with the attribution marker for the given speaker.
func Label(name, content string) string {
	return fmt.Sprintf("[SPEAKER: %s] %s", name, content)
}

// Turns builds the provider view of the stored history: every message keeps
// its role and gains an attribution marker derived from its author.
func Turns(history []domain.Message) []domain.Turn {
	turns := make([]domain.Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, domain.Turn{
			Role:    msg.Role,
			Content: Label(msg.Author.DisplayName(), msg.Content),
		})
	}
	return turns
}

// StripLabel removes leading attribution markers and surrounding whitespace.
// Markers are stripped repeatedly, so the operation is idempotent:
// StripLabel(StripLabel(t)) == StripLabel(t) for any t.
func StripLabel(text string) string {
	s := strings.TrimSpace(text)
	for {
		next := strings.TrimSpace(labelPattern.ReplaceAllString(s, ""))
		if next == s {
			return s
		}
		s = next
	}
}

// FoldForAlternation returns a copy of turns rewritten for a backend that
// enforces strict user/assistant alternation: every assistant turn carrying
// another speaker's marker becomes a user turn. The content, marker
// included, is preserved, so the backend still sees what the other model
// said. Turns attributed to self keep their assistant role.
func FoldForAlternation(turns []domain.Turn, selfName string) []domain.Turn {
	folded := make([]domain.Turn, len(turns))
	copy(folded, turns)
	for i, t := range folded {
		if t.Role != domain.RoleAssistant {
			continue
		}
		m := markerPattern.FindStringSubmatch(t.Content)
		if m == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(m[1]), selfName) {
			continue
		}
		folded[i].Role = domain.RoleUser
	}
	return folded
}
