package chat

import "errors"

var (
	// ErrGenerationInFlight is returned when a second generation is
	// requested while one is still streaming.
	ErrGenerationInFlight = errors.New("a response is already streaming")

	// ErrNoUserMessage is returned by Retry when there is nothing to
	// re-send.
	ErrNoUserMessage = errors.New("no user message to retry")

	// ErrNotRegenerable is returned by Regenerate when the last
	// assistant message did not finish normally.
	ErrNotRegenerable = errors.New("last response did not finish, use retry instead")

	// ErrUnauthorized means the relay rejected the caller's token.
	ErrUnauthorized = errors.New("please sign in")

	// ErrModelNotAvailable means the selected model is gone from the
	// catalog; the caller should refresh the model list.
	ErrModelNotAvailable = errors.New("model not available, refresh the model list")

	// ErrNetwork covers transport failures talking to the relay.
	ErrNetwork = errors.New("network issue, please retry")

	// ErrService covers upstream and relay-side failures.
	ErrService = errors.New("service error, please try again later")
)

// EmptyOutputReason is recorded on an assistant message that streamed
// to completion without producing any text.
const EmptyOutputReason = "empty output, please retry"
