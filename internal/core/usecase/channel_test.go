package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

func TestPolicyForWebFirstTurn(t *testing.T) {
	policy := ChannelSettings{}.PolicyFor(domain.ChannelWeb, true)

	if policy.MaxWallClock != 0 {
		t.Fatalf("web channel must not have a wall clock budget, got %v", policy.MaxWallClock)
	}
	if policy.MaxOutputChars != 0 {
		t.Fatalf("web channel must not truncate, got %d", policy.MaxOutputChars)
	}
	if policy.PromptVariant != domain.PromptFirstTurn {
		t.Fatalf("expected first_turn variant, got %q", policy.PromptVariant)
	}
}

func TestPolicyForWebFollowUp(t *testing.T) {
	policy := ChannelSettings{}.PolicyFor(domain.ChannelWeb, false)
	if policy.PromptVariant != domain.PromptFollowUp {
		t.Fatalf("expected follow_up variant, got %q", policy.PromptVariant)
	}
}

func TestPolicyForMessagingDefaults(t *testing.T) {
	policy := ChannelSettings{}.PolicyFor(domain.ChannelMessaging, true)

	if policy.MaxWallClock != 4*time.Second {
		t.Fatalf("expected 4s internal budget, got %v", policy.MaxWallClock)
	}
	if policy.MaxOutputChars != 300 {
		t.Fatalf("expected 300 char budget, got %d", policy.MaxOutputChars)
	}
	if policy.PromptVariant != domain.PromptMessaging {
		t.Fatalf("expected messaging variant, got %q", policy.PromptVariant)
	}
}

func TestPolicyForMessagingTenantOverrides(t *testing.T) {
	settings := ChannelSettings{MessagingBudget: 3 * time.Second, MessagingMaxChars: 120}
	policy := settings.PolicyFor(domain.ChannelMessaging, false)

	if policy.MaxWallClock != 3*time.Second {
		t.Fatalf("expected overridden budget, got %v", policy.MaxWallClock)
	}
	if policy.MaxOutputChars != 120 {
		t.Fatalf("expected overridden char budget, got %d", policy.MaxOutputChars)
	}
}

func fusedSource(doc string) domain.FusedResult {
	return domain.FusedResult{ID: doc, DocumentID: doc, Source: domain.SourceHybrid}
}

func TestTruncateForChannelCutsLongBody(t *testing.T) {
	text, sources := truncateForChannel(strings.Repeat("x", 500), nil, 300)

	composed := composeOutgoing(text, sources)
	if got := len([]rune(composed)); got > 300 {
		t.Fatalf("expected composed length <= 300, got %d", got)
	}
	if !strings.HasSuffix(text, ellipsis) {
		t.Fatalf("expected ellipsis marker suffix, got %q", text[len(text)-3:])
	}
}

func TestTruncateForChannelDropsSourcesBeforeBody(t *testing.T) {
	body := strings.Repeat("y", 280)
	sources := []domain.FusedResult{fusedSource("doc-1"), fusedSource("doc-2"), fusedSource("doc-3")}

	text, kept := truncateForChannel(body, sources, 300)

	if text != body {
		t.Fatalf("expected body preserved while sources fit the budget, got %q", text)
	}
	if len(kept) >= len(sources) {
		t.Fatalf("expected source list trimmed, still have %d", len(kept))
	}
	if got := composedRuneLen(text, kept); got > 300 {
		t.Fatalf("expected composed length <= 300, got %d", got)
	}
}

func TestTruncateForChannelNoBudgetIsNoop(t *testing.T) {
	body := strings.Repeat("z", 1000)
	sources := []domain.FusedResult{fusedSource("doc-1")}

	text, kept := truncateForChannel(body, sources, 0)
	if text != body || len(kept) != 1 {
		t.Fatalf("expected untouched output without a budget")
	}
}

func TestTruncateForChannelMultibyteSafe(t *testing.T) {
	body := strings.Repeat("ответ", 100)

	text, _ := truncateForChannel(body, nil, 50)
	if got := len([]rune(text)); got != 50 {
		t.Fatalf("expected exactly 50 runes, got %d", got)
	}
}

func TestBuildSystemPromptVariants(t *testing.T) {
	evidence := []domain.FusedResult{{ID: "a", Content: "fact one"}}

	verbose := buildSystemPrompt(domain.PromptFirstTurn, evidence)
	if !strings.Contains(verbose, "thoroughly") {
		t.Fatalf("first turn prompt must ask for a thorough answer")
	}
	terse := buildSystemPrompt(domain.PromptFollowUp, evidence)
	if !strings.Contains(terse, "briefly") {
		t.Fatalf("follow-up prompt must ask for brevity")
	}
	short := buildSystemPrompt(domain.PromptMessaging, evidence)
	if !strings.Contains(short, "two short sentences") {
		t.Fatalf("messaging prompt must bound the length")
	}
	for _, prompt := range []string{verbose, terse, short} {
		if !strings.Contains(prompt, "fact one") {
			t.Fatalf("prompt must embed the retrieved context")
		}
	}
}

func TestBuildSystemPromptWithoutEvidence(t *testing.T) {
	prompt := buildSystemPrompt(domain.PromptFirstTurn, nil)
	if !strings.Contains(prompt, "no relevant context") {
		t.Fatalf("empty evidence must be stated explicitly, got %q", prompt)
	}
}
