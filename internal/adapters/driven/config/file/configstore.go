package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigFile is the name of the TOML file inside the data directory.
const ConfigFile = "config.toml"

// ConfigStore reads and writes config.toml. The decoded document is kept
// as nested tables and walked on lookup.
type ConfigStore struct {
	mu   sync.RWMutex
	path string
	tree map[string]any
}

// OpenConfigStore loads dir/config.toml. A missing file is an empty store;
// it is created on the first Set.
func OpenConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		return nil, errors.New("config directory is required")
	}
	s := &ConfigStore{path: filepath.Join(dir, ConfigFile)}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.tree = make(map[string]any)
		return s, nil
	case err != nil:
		return nil, err
	}

	if err := toml.Unmarshal(data, &s.tree); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	if s.tree == nil {
		s.tree = make(map[string]any)
	}
	return s, nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.path
}

// Lookup returns the scalar at key. Arrays render comma-separated.
func (s *ConfigStore) Lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := strings.Split(key, ".")
	node := s.tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			return "", false
		}
		node = next
	}

	v, ok := node[parts[len(parts)-1]]
	if !ok {
		return "", false
	}
	return render(v)
}

func render(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := render(item)
			if !ok {
				return "", false
			}
			items = append(items, s)
		}
		return strings.Join(items, ","), true
	case map[string]any:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}

// Keys returns every dotted key holding a value, sorted.
func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			if child, ok := v.(map[string]any); ok {
				walk(prefix+k+".", child)
				continue
			}
			keys = append(keys, prefix+k)
		}
	}
	walk("", s.tree)
	sort.Strings(keys)
	return keys
}

// Set stores value at key and rewrites the file. Values that parse as
// integers, floats or booleans are stored typed.
func (s *ConfigStore) Set(key, value string) error {
	parts := strings.Split(key, ".")
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("invalid key %q", key)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.tree
	for _, part := range parts[:len(parts)-1] {
		switch next := node[part].(type) {
		case map[string]any:
			node = next
		case nil:
			child := make(map[string]any)
			node[part] = child
			node = child
		default:
			return fmt.Errorf("key %q: %s is a value, not a table", key, part)
		}
	}
	node[parts[len(parts)-1]] = typed(value)

	return s.write()
}

func typed(value string) any {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}

// write replaces the file through a temporary sibling. Caller holds mu.
func (s *ConfigStore) write() error {
	data, err := toml.Marshal(s.tree)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
