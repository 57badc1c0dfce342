package config

const (
	defaultStorageDriver = "sqlite"

	defaultRelayListen = ":8787"
	defaultAPIListen   = ":8788"

	defaultRelayWorkers   = 4
	defaultRelayQueueSize = 256

	defaultAuthProvider = "static"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "rotachat.usage"

	defaultClientRelayTarget = "http://localhost:8787"
	defaultClientAPITarget   = "http://localhost:8788"
	defaultClientWindow      = 6
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver:      defaultStorageDriver,
			AutoMigrate: true,
		},
		Relay: RelayConfig{
			Listen:    defaultRelayListen,
			Workers:   defaultRelayWorkers,
			QueueSize: defaultRelayQueueSize,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Auth: AuthConfig{
			Provider: defaultAuthProvider,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Client: ClientConfig{
			RelayTarget: defaultClientRelayTarget,
			APITarget:   defaultClientAPITarget,
			Window:      defaultClientWindow,
		},
	}
}
