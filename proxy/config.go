package proxy

import (
	"github.com/rotaworks/rotachat/pkg/eventstream"
)

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080").
	ListenAddr string

	// AnonKey, when set, is required in the "apikey" header of incoming
	// requests.
	AnonKey string

	// LogResolveFailures writes usage log rows for requests that fail
	// config resolution (unknown model, missing secret). Off by default:
	// the audited source system only logs requests that reach streaming.
	LogResolveFailures bool

	// Publisher receives usage events after each insert. Optional.
	Publisher eventstream.Publisher

	// SecretLookup resolves a model config's secret reference to the
	// provider secret. Defaults to os.Getenv; injectable for tests.
	SecretLookup func(string) string

	// NumWorkers and QueueSize tune the usage log worker pool.
	NumWorkers uint
	QueueSize  uint
}
