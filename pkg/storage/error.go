package storage

// ErrModelNotFound is returned when a model identifier matches no active
// configuration row.
type ErrModelNotFound struct {
	ModelIdentifier string
}

func (e ErrModelNotFound) Error() string {
	if e.ModelIdentifier == "" {
		return "model not found"
	}

	return "model not found: " + e.ModelIdentifier
}

// FindActiveModel scans active configs for the given model identifier.
// Shared lookup used by the relay's config-resolution step.
func FindActiveModel(configs []ModelConfig, modelIdentifier string) (*ModelConfig, error) {
	for i := range configs {
		if configs[i].ModelIdentifier == modelIdentifier && configs[i].IsActive {
			return &configs[i], nil
		}
	}

	return nil, ErrModelNotFound{ModelIdentifier: modelIdentifier}
}
