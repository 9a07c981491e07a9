// Package storage provides persistent quota.Store implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/mooddine/internal/models"
	"github.com/raphaelgruber/mooddine/internal/quota"
)

// fileRecord uses pointers so a missing field is distinguishable from zero.
type fileRecord struct {
	Count       *int   `yaml:"count"`
	WindowStart *int64 `yaml:"window_start"`
}

// FileStore keeps quota records in a YAML document keyed by record name.
// Other keys in the document are preserved on write.
type FileStore struct {
	mu   sync.Mutex
	path string
	key  string
}

// NewFileStore returns a store for record key in the YAML file at path.
// The file and its directory are created on first write.
func NewFileStore(path, key string) *FileStore {
	return &FileStore{path: path, key: key}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get implements quota.Store.
func (s *FileStore) Get(_ context.Context) (models.QuotaState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDoc()
	if err != nil {
		return models.QuotaState{}, false, err
	}

	node, ok := doc[s.key]
	if !ok {
		return models.QuotaState{}, false, nil
	}

	var rec fileRecord
	if err := node.Decode(&rec); err != nil {
		return models.QuotaState{}, false, fmt.Errorf("%w: decode %q: %v", quota.ErrCorruptState, s.key, err)
	}
	if rec.Count == nil || rec.WindowStart == nil {
		return models.QuotaState{}, false, fmt.Errorf("%w: record %q is missing fields", quota.ErrCorruptState, s.key)
	}

	return models.QuotaState{Count: *rec.Count, WindowStart: *rec.WindowStart}, true, nil
}

// Set implements quota.Store. The file is replaced atomically.
func (s *FileStore) Set(_ context.Context, state models.QuotaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDoc()
	if err != nil && !errors.Is(err, quota.ErrCorruptState) {
		return err
	}
	if doc == nil {
		doc = map[string]yaml.Node{}
	}

	var node yaml.Node
	if err := node.Encode(fileRecord{Count: &state.Count, WindowStart: &state.WindowStart}); err != nil {
		return fmt.Errorf("encode quota record: %w", err)
	}
	doc[s.key] = node

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal quota file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create quota directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".quota-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace quota file: %w", err)
	}
	return nil
}

// readDoc loads the whole document. A missing file is an empty document.
// An unparsable file returns an empty document and ErrCorruptState so Set
// can still overwrite it.
func (s *FileStore) readDoc() (map[string]yaml.Node, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]yaml.Node{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read quota file: %w", err)
	}

	doc := map[string]yaml.Node{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return map[string]yaml.Node{}, fmt.Errorf("%w: parse %s: %v", quota.ErrCorruptState, s.path, err)
	}
	return doc, nil
}
