package lightify

import "errors"

// Domain-specific errors for the bridge.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidTopic is returned for topics outside <prefix>set/<category>/<target>.
	ErrInvalidTopic = errors.New("lightify: invalid command topic")

	// ErrUnsupportedCategory is returned for categories other than lights and groups.
	ErrUnsupportedCategory = errors.New("lightify: unsupported command category")

	// ErrGroupsUnsupported is returned for group commands.
	ErrGroupsUnsupported = errors.New("lightify: group control not supported")

	// ErrMalformedPayload is returned for payloads that are neither a number
	// nor a JSON object.
	ErrMalformedPayload = errors.New("lightify: malformed payload")

	// ErrCommandFailed is returned when the gateway rejects a command.
	ErrCommandFailed = errors.New("lightify: command failed")
)
