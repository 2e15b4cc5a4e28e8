package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
	"github.com/custodia-labs/pagewise/internal/prompting"
)

var _ driven.PromptStore = (*PromptStore)(nil)

const promptReadme = "README.md"

// cachedPrompt remembers which file version a prompt was read from. A zero
// modTime means the built-in prompt was served.
type cachedPrompt struct {
	text    string
	modTime time.Time
}

// PromptStore serves system prompts, preferring <dir>/<name>.txt over the
// built-in text. An override file is re-read whenever its modification
// time changes; an empty one is ignored.
type PromptStore struct {
	dir      string
	builtins map[string]string

	mu    sync.Mutex
	cache map[string]cachedPrompt

	setup    sync.Once
	setupErr error
}

// NewPromptStore returns a store reading overrides from dir. The directory
// and a README listing the prompt names are created on first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		return nil, errors.New("prompt directory is required")
	}
	return &PromptStore{
		dir:      dir,
		builtins: prompting.DefaultPrompts(),
		cache:    make(map[string]cachedPrompt),
	}, nil
}

// Load returns the prompt called name.
func (s *PromptStore) Load(name string) (string, error) {
	s.setup.Do(func() { s.setupErr = s.prepareDir() })

	path := filepath.Join(s.dir, name+".txt")
	var modTime time.Time
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		modTime = info.ModTime()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cache[name]; ok && c.modTime.Equal(modTime) {
		return c.text, nil
	}

	text := ""
	if !modTime.IsZero() {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("load prompt %q: %w", name, err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		builtin, ok := s.builtins[name]
		if !ok {
			return "", fmt.Errorf("load prompt %q: no override in %s and no built-in", name, s.dir)
		}
		text = builtin
	}

	s.cache[name] = cachedPrompt{text: text, modTime: modTime}
	return text, nil
}

// Reload drops every cached prompt.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cache)
}

// Dir returns the override directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// InitError reports a failure to create the override directory. Built-in
// prompts are served regardless.
func (s *PromptStore) InitError() error {
	return s.setupErr
}

func (s *PromptStore) prepareDir() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}
	path := filepath.Join(s.dir, promptReadme)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	names := make([]string, 0, len(s.builtins))
	for name := range s.builtins {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	b.WriteString("# Prompt overrides\n\n")
	b.WriteString("Place `<name>.txt` here to replace a built-in system prompt. Edits apply\n")
	b.WriteString("on the next question. Remove the file, or leave it empty, to use the built-in.\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- `%s.txt`\n", name)
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}
