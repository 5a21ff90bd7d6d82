package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

// ChannelSettings holds the tenant-configurable knobs behind per-request
// channel policies.
type ChannelSettings struct {
	MessagingBudget   time.Duration
	MessagingMaxChars int
	WelcomeMessage    string
}

const (
	defaultMessagingBudget   = 4 * time.Second
	defaultMessagingMaxChars = 300
)

func (s ChannelSettings) normalize() ChannelSettings {
	if s.MessagingBudget <= 0 {
		s.MessagingBudget = defaultMessagingBudget
	}
	if s.MessagingMaxChars <= 0 {
		s.MessagingMaxChars = defaultMessagingMaxChars
	}
	return s
}

// PolicyFor computes the channel policy for one inbound request. The
// messaging budget stays strictly below the platform's own webhook timeout
// so the reply is on the wire before the external limit fires.
func (s ChannelSettings) PolicyFor(channel domain.Channel, firstTurn bool) domain.ChannelPolicy {
	s = s.normalize()

	// The welcome line greets a session exactly once, on its first turn.
	welcome := ""
	if firstTurn {
		welcome = s.WelcomeMessage
	}

	switch channel {
	case domain.ChannelMessaging:
		return domain.ChannelPolicy{
			Channel:        domain.ChannelMessaging,
			MaxWallClock:   s.MessagingBudget,
			MaxOutputChars: s.MessagingMaxChars,
			PromptVariant:  domain.PromptMessaging,
			WelcomeMessage: welcome,
		}
	default:
		variant := domain.PromptFollowUp
		if firstTurn {
			variant = domain.PromptFirstTurn
		}
		return domain.ChannelPolicy{
			Channel:        domain.ChannelWeb,
			PromptVariant:  variant,
			WelcomeMessage: welcome,
		}
	}
}

const ellipsis = "…"

// truncateForChannel enforces the channel's character budget over the
// composed outgoing message. The source list is trimmed from the end first;
// the answer body is cut only when no sources remain to drop.
func truncateForChannel(text string, sources []domain.FusedResult, maxChars int) (string, []domain.FusedResult) {
	if maxChars <= 0 {
		return text, sources
	}

	for len(sources) > 0 && composedRuneLen(text, sources) > maxChars {
		sources = sources[:len(sources)-1]
	}

	runes := []rune(text)
	if len(runes) > maxChars {
		text = string(runes[:maxChars-1]) + ellipsis
	}
	return text, sources
}

// composeOutgoing renders the final message body for channels that inline
// their citations.
func composeOutgoing(text string, sources []domain.FusedResult) string {
	if len(sources) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\nSources:")
	for _, source := range sources {
		b.WriteString("\n- ")
		b.WriteString(sourceLabel(source))
	}
	return b.String()
}

func composedRuneLen(text string, sources []domain.FusedResult) int {
	return len([]rune(composeOutgoing(text, sources)))
}

func sourceLabel(source domain.FusedResult) string {
	if source.DocumentID != "" {
		return source.DocumentID
	}
	return source.ID
}

func buildSystemPrompt(variant domain.PromptVariant, evidence []domain.FusedResult) string {
	var context strings.Builder
	if len(evidence) == 0 {
		context.WriteString("(no relevant context retrieved)")
	}
	for i, result := range evidence {
		if i > 0 {
			context.WriteString("\n")
		}
		context.WriteString(fmt.Sprintf("[%d] %s", i+1, strings.TrimSpace(result.Content)))
	}

	instruction := ""
	switch variant {
	case domain.PromptFirstTurn:
		instruction = `Answer thoroughly. Structure the response with short paragraphs or bullet points where it helps.
If the context does not cover the question, say so instead of guessing.`
	case domain.PromptFollowUp:
		instruction = `Answer briefly and directly. Do not restate earlier answers.
If the context does not cover the question, say so instead of guessing.`
	case domain.PromptMessaging:
		instruction = `Answer in at most two short sentences, plain text only.
If the context does not cover the question, say so in one sentence.`
	}

	return fmt.Sprintf(`You are a support assistant answering strictly from the provided context.

%s

Context:
%s`, instruction, context.String())
}
