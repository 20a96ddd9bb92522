package companion

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Store exposes companion retrieval for handlers and the chat service.
type Store interface {
	List() []Companion
	FindByID(id string) (Companion, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Companion
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied companions.
func NewMemoryStore(items []Companion) *MemoryStore {
	return &MemoryStore{items: append([]Companion(nil), items...)}
}

// List returns the companion roster.
func (s *MemoryStore) List() []Companion {
	return append([]Companion(nil), s.items...)
}

// FindByID looks up a companion by identifier.
func (s *MemoryStore) FindByID(id string) (Companion, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Companion{}, false
}

type catalogFile struct {
	Companions []Companion `yaml:"companions"`
}

// LoadFile reads a YAML catalog of the form `companions: [...]`.
func LoadFile(path string) ([]Companion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read companion catalog %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog and validates every entry.
func Parse(data []byte) ([]Companion, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parse companion catalog")
	}
	if len(file.Companions) == 0 {
		return nil, errors.New("companion catalog is empty")
	}

	seen := make(map[string]struct{}, len(file.Companions))
	for i, c := range file.Companions {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, errors.Errorf("companion #%d has no id", i)
		}
		if strings.Contains(id, "_") {
			return nil, errors.Errorf("companion id %q must not contain an underscore", id)
		}
		if _, dup := seen[id]; dup {
			return nil, errors.Errorf("duplicate companion id %q", id)
		}
		if strings.TrimSpace(c.SystemPrompt) == "" {
			return nil, errors.Errorf("companion %q has no systemPrompt", id)
		}
		seen[id] = struct{}{}
		file.Companions[i].ID = id
	}
	return file.Companions, nil
}
