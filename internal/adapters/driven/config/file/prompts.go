package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/minutes/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves prompt templates from <dir>/<name>.txt.
// Missing files fall back to driven.DefaultPrompts. The directory is seeded
// with the defaults on first Load, never overwriting user edits.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	defaults  map[string]string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// NewPromptStore creates a prompt store rooted at promptDir.
// If promptDir is empty, <DefaultDir>/prompts is used. No I/O happens here.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		promptDir = filepath.Join(dir, "prompts")
	}
	return &PromptStore{
		promptDir: promptDir,
		defaults:  driven.DefaultPrompts,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the template for name.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt, err := s.read(name)
	if err != nil {
		if def, ok := s.defaults[name]; ok {
			return def, nil
		}
		if s.initErr != nil {
			return "", fmt.Errorf("load prompt %q: %w", name, s.initErr)
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()
	return prompt, nil
}

// Reload clears the cache so the next Load reads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}
	for name, content := range s.defaults {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			s.initErr = fmt.Errorf("seed prompt %q: %w", name, err)
			return
		}
	}
	if err := s.writeReadme(); err != nil {
		s.initErr = err
	}
}

// read returns the trimmed file content. Blank files count as missing.
func (s *PromptStore) read(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) || name == "" {
		return "", fmt.Errorf("invalid prompt name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt %q is empty", name)
	}
	return prompt, nil
}

func (s *PromptStore) writeReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	names := make([]string, 0, len(s.defaults))
	for name := range s.defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# Minutes prompts\n\n")
	b.WriteString("Edit these files to change how Minutes talks to the language model.\n")
	b.WriteString("Delete a file to go back to the built-in version.\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- `%s.txt` (%d placeholder(s))\n", name, strings.Count(s.defaults[name], "%s"))
	}
	b.WriteString("\nKeep every `%s` placeholder in place; they are filled in order.\n")
	return os.WriteFile(path, []byte(b.String()), 0600)
}
