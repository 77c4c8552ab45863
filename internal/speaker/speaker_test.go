package speaker

import (
	"testing"
	"time"

	"duochat/internal/domain"
)

// --- Turns ---

func TestTurns_LabelsUserAndAssistant(t *testing.T) {
	history := []domain.Message{
		{Author: domain.AuthorUser, Role: domain.RoleUser, Content: "hello", Timestamp: time.Now()},
		{Author: domain.AuthorGPT, Role: domain.RoleAssistant, Content: "hi there", Timestamp: time.Now()},
		{Author: domain.AuthorClaude, Role: domain.RoleAssistant, Content: "greetings", Timestamp: time.Now()},
	}

	turns := Turns(history)
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Role != domain.RoleUser || turns[0].Content != "[SPEAKER: User] hello" {
		t.Errorf("user turn: got %+v", turns[0])
	}
	if turns[1].Role != domain.RoleAssistant || turns[1].Content != "[SPEAKER: GPT] hi there" {
		t.Errorf("gpt turn: got %+v", turns[1])
	}
	if turns[2].Content != "[SPEAKER: Claude] greetings" {
		t.Errorf("claude turn: got %+v", turns[2])
	}
}

func TestTurns_EmptyHistory(t *testing.T) {
	if turns := Turns(nil); len(turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(turns))
	}
}

// --- StripLabel ---

func TestStripLabel(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain marker", "[SPEAKER: GPT] hello", "hello"},
		{"lowercase marker", "[speaker: claude] hi", "hi"},
		{"no marker", "just text", "just text"},
		{"leading whitespace", "  [SPEAKER: User]   spaced", "spaced"},
		{"stacked markers", "[SPEAKER: GPT] [SPEAKER: Claude] both", "both"},
		{"marker mid-text untouched", "see [SPEAKER: GPT] inline", "see [SPEAKER: GPT] inline"},
		{"empty", "", ""},
		{"marker only", "[SPEAKER: GPT]", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripLabel(tc.in); got != tc.want {
				t.Errorf("StripLabel(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStripLabel_Idempotent(t *testing.T) {
	inputs := []string{
		"[SPEAKER: GPT] hello",
		"[SPEAKER: GPT] [SPEAKER: Claude] nested",
		"no marker at all",
		"",
		"  padded  ",
	}
	for _, in := range inputs {
		once := StripLabel(in)
		twice := StripLabel(once)
		if once != twice {
			t.Errorf("StripLabel not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

// --- FoldForAlternation ---

func TestFoldForAlternation_FoldsOtherSpeaker(t *testing.T) {
	turns := []domain.Turn{
		{Role: domain.RoleUser, Content: "[SPEAKER: User] question"},
		{Role: domain.RoleAssistant, Content: "[SPEAKER: GPT] gpt says"},
		{Role: domain.RoleAssistant, Content: "[SPEAKER: Claude] claude says"},
	}

	folded := FoldForAlternation(turns, "Claude")

	if folded[0].Role != domain.RoleUser {
		t.Errorf("user turn changed role: %+v", folded[0])
	}
	if folded[1].Role != domain.RoleUser {
		t.Errorf("other-speaker assistant turn should fold to user, got %+v", folded[1])
	}
	if folded[1].Content != "[SPEAKER: GPT] gpt says" {
		t.Errorf("fold must preserve content, got %q", folded[1].Content)
	}
	if folded[2].Role != domain.RoleAssistant {
		t.Errorf("own assistant turn must keep role, got %+v", folded[2])
	}
}

func TestFoldForAlternation_DoesNotMutateInput(t *testing.T) {
	turns := []domain.Turn{
		{Role: domain.RoleAssistant, Content: "[SPEAKER: GPT] reply"},
	}
	_ = FoldForAlternation(turns, "Claude")
	if turns[0].Role != domain.RoleAssistant {
		t.Fatal("input slice was mutated")
	}
}

func TestFoldForAlternation_UnmarkedAssistantTurnKept(t *testing.T) {
	turns := []domain.Turn{
		{Role: domain.RoleAssistant, Content: "no marker here"},
	}
	folded := FoldForAlternation(turns, "Claude")
	if folded[0].Role != domain.RoleAssistant {
		t.Fatal("assistant turn without marker should keep its role")
	}
}
