// Package fsstore persists operation results as JSON files in a directory.
// Each result lives in a file named after the sha256 digest of the
// operation's canonical key, so lookups are a single stat and the directory
// can be shared between processes.
package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/opforge/memo-framework/datastore"
	"github.com/opforge/memo-framework/operations"
	"github.com/opforge/memo-framework/pkg/logger"
)

const backendName = "filesystem"

// record is the file payload. The canonical key is stored alongside the
// value so Keys can enumerate keys without the original operations.
type record struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Store is a datastore.Store backed by a directory of JSON files.
type Store struct {
	root string
	lggr logger.Logger
}

var _ datastore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger. Defaults to a no-op logger.
func WithLogger(lggr logger.Logger) Option {
	return func(s *Store) {
		s.lggr = lggr
	}
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &datastore.BackendError{Backend: backendName, Op: "create root", Err: err}
	}

	s := &Store{root: dir, lggr: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) path(op *operations.Operation) string {
	return filepath.Join(s.root, op.Digest()+".json")
}

func (s *Store) Get(_ context.Context, op *operations.Operation) (any, error) {
	data, err := os.ReadFile(s.path(op))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("operation %s: %w", op.Digest(), datastore.ErrKeyNotFound)
	}
	if err != nil {
		return nil, &datastore.BackendError{Backend: backendName, Op: "get", Err: err}
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &datastore.BackendError{Backend: backendName, Op: "get", Err: err}
	}

	return rec.Value, nil
}

// Put writes the result atomically: the record goes to a uniquely named
// temporary file in the root directory, then renames over the final path.
// Concurrent writers of the same key race benignly, last rename wins.
func (s *Store) Put(_ context.Context, op *operations.Operation, value any) error {
	data, err := json.Marshal(record{Key: op.Key(), Value: value})
	if err != nil {
		return &datastore.BackendError{Backend: backendName, Op: "put", Err: err}
	}

	tmp := filepath.Join(s.root, uuid.New().String()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &datastore.BackendError{Backend: backendName, Op: "put", Err: err}
	}
	if err := os.Rename(tmp, s.path(op)); err != nil {
		_ = os.Remove(tmp)
		return &datastore.BackendError{Backend: backendName, Op: "put", Err: err}
	}
	s.lggr.Debugw("Stored operation result", "tag", op.Tag(), "digest", op.Digest())

	return nil
}

func (s *Store) Contains(_ context.Context, op *operations.Operation) (bool, error) {
	_, err := os.Stat(s.path(op))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &datastore.BackendError{Backend: backendName, Op: "contains", Err: err}
	}

	return true, nil
}

func (s *Store) Delete(_ context.Context, op *operations.Operation) error {
	err := os.Remove(s.path(op))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &datastore.BackendError{Backend: backendName, Op: "delete", Err: err}
	}

	return nil
}

func (s *Store) Clear(_ context.Context) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return &datastore.BackendError{Backend: backendName, Op: "clear", Err: err}
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, entry.Name())); err != nil {
			return &datastore.BackendError{Backend: backendName, Op: "clear", Err: err}
		}
	}

	return nil
}

// Keys reads each record lazily, one file per iteration step.
func (s *Store) Keys(_ context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		entries, err := os.ReadDir(s.root)
		if err != nil {
			yield("", &datastore.BackendError{Backend: backendName, Op: "keys", Err: err})
			return
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(s.root, entry.Name()))
			if err != nil {
				yield("", &datastore.BackendError{Backend: backendName, Op: "keys", Err: err})
				return
			}
			var rec record
			if err := json.Unmarshal(data, &rec); err != nil {
				yield("", &datastore.BackendError{Backend: backendName, Op: "keys", Err: err})
				return
			}
			if !yield(rec.Key, nil) {
				return
			}
		}
	}
}
