package registry

import "errors"

var (
	// ErrNetwork covers transport failures and non-200 responses.
	ErrNetwork = errors.New("could not reach the model service")

	// ErrDecode covers responses that arrived but did not parse.
	ErrDecode = errors.New("could not decode the model list")
)
