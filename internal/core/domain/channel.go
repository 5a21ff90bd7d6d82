package domain

import "time"

// Channel is the inbound transport surface a request arrived on.
type Channel string

const (
	ChannelWeb       Channel = "web"
	ChannelMessaging Channel = "messaging"
)

// PromptVariant selects the prompt shape for a turn.
type PromptVariant string

const (
	PromptFirstTurn PromptVariant = "first_turn"
	PromptFollowUp  PromptVariant = "follow_up"
	PromptMessaging PromptVariant = "messaging"
)

// ChannelPolicy is computed per inbound request from channel + tenant
// settings. It is configuration, never persisted.
type ChannelPolicy struct {
	Channel        Channel
	MaxWallClock   time.Duration // zero means no budget at this layer
	MaxOutputChars int           // zero means no truncation
	PromptVariant  PromptVariant
	WelcomeMessage string
}

// ErrorCode is the externally visible error category of a failed reply.
type ErrorCode string

const (
	ErrorCodeTimeout            ErrorCode = "timeout"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeInvalidRequest     ErrorCode = "invalid_request"
	ErrorCodeInternal           ErrorCode = "internal_error"
	ErrorCodeInsufficientPoints ErrorCode = "insufficient_points"
)

var userMessages = map[ErrorCode]string{
	ErrorCodeTimeout:            "Still preparing your answer, please try again in a moment.",
	ErrorCodeNotFound:           "I could not find relevant information for that question.",
	ErrorCodeInvalidRequest:     "I could not understand that request.",
	ErrorCodeInternal:           "Something went wrong, please retry.",
	ErrorCodeInsufficientPoints: "Your point balance is exhausted. Please recharge to continue.",
}

// UserMessageFor maps an error category to the short fixed string shown to
// the end user. Internal detail is never exposed through this path.
func UserMessageFor(code ErrorCode) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return userMessages[ErrorCodeInternal]
}
