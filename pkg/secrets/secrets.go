// Package secrets manages provider API keys for the relay. Model
// configurations carry a secret reference rather than the key itself;
// this package resolves those references from secrets.toml in the
// .rotachat/ directory, falling back to the environment.
package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/rotaworks/rotachat/pkg/dotdir"
)

const (
	secretsFile = "secrets.toml"

	currentVersion = 0
)

// Manager manages reading and writing secrets.toml in the .rotachat/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new secrets Manager. If override is non-empty it is
// used as the .rotachat/ directory; otherwise the standard dotdir resolution
// applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	if target == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		target = filepath.Join(home, ".rotachat")
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, fmt.Errorf("creating rotachat dir: %w", err)
		}
	}

	mgr.targetPath = filepath.Join(target, secretsFile)

	return mgr, nil
}

// Load reads secrets.toml from the target directory.
// Returns an empty Secrets if the file does not exist.
func (m *Manager) Load() (*Secrets, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Secrets{
				Version: currentVersion,
				Keys:    make(map[string]ProviderKey),
			}, nil
		}
		return nil, fmt.Errorf("reading secrets: %w", err)
	}

	s := &Secrets{}
	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing secrets: %w", err)
	}

	if s.Keys == nil {
		s.Keys = make(map[string]ProviderKey)
	}

	return s, nil
}

// Save writes secrets to secrets.toml with 0600 permissions.
func (m *Manager) Save(s *Secrets) error {
	if s == nil {
		return errors.New("cannot save nil secrets")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("encoding secrets: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing secrets: %w", err)
	}

	return nil
}

// SetKey stores an API key under the given secret reference.
func (m *Manager) SetKey(ref, key string) error {
	s, err := m.Load()
	if err != nil {
		return err
	}

	s.Keys[ref] = ProviderKey{APIKey: key}

	return m.Save(s)
}

// GetKey returns the stored API key for the given secret reference.
// Returns an empty string if no key is stored.
func (m *Manager) GetKey(ref string) (string, error) {
	s, err := m.Load()
	if err != nil {
		return "", err
	}

	pk, ok := s.Keys[ref]
	if !ok {
		return "", nil
	}

	return pk.APIKey, nil
}

// RemoveKey deletes the stored key for a secret reference.
func (m *Manager) RemoveKey(ref string) error {
	s, err := m.Load()
	if err != nil {
		return err
	}

	delete(s.Keys, ref)

	return m.Save(s)
}

// ListRefs returns the secret references that have stored keys.
func (m *Manager) ListRefs() ([]string, error) {
	s, err := m.Load()
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(s.Keys))
	for name := range s.Keys {
		refs = append(refs, name)
	}

	sort.Strings(refs)

	return refs, nil
}

// GetTarget returns the resolved path to the secrets file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// Lookup resolves a secret reference to a key: the stored file wins,
// the environment is the fallback. The signature matches the relay's
// secret lookup hook.
func (m *Manager) Lookup(ref string) string {
	if key, err := m.GetKey(ref); err == nil && key != "" {
		return key
	}
	return os.Getenv(ref)
}
