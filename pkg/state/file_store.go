package state

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/formtap/pkg/errors"
)

// FileStore keeps the state document in a local file. Saves write a
// temporary sibling and rename it over the target.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the state file. A missing file yields nil.
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state file").
			WithDetail("path", s.path)
	}
	return data, nil
}

// Save atomically replaces the state file.
func (s *FileStore) Save(ctx context.Context, doc []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to create state directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to create temporary state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeState, "failed to sync state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to close state file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to replace state file").
			WithDetail("path", s.path)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
