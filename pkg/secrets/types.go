package secrets

// Secrets represents the stored provider API keys in secrets.toml,
// keyed by the secret reference named in each model configuration.
type Secrets struct {
	Version int                    `toml:"version"`
	Keys    map[string]ProviderKey `toml:"keys"`
}

// ProviderKey holds the API key for a single secret reference.
type ProviderKey struct {
	APIKey string `toml:"api_key"`
}
