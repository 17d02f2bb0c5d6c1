package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

// FileQuarantine appends rejected records to a JSON-lines file.
type FileQuarantine struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	count int
}

// NewFileQuarantine opens path for appending, creating it if needed.
func NewFileQuarantine(path string) (*FileQuarantine, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, vrserrors.IoFailure("create quarantine directory", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, vrserrors.IoFailure("open quarantine file", err).WithContext("path", path)
	}
	return &FileQuarantine{path: path, file: file}, nil
}

// Add writes rec as one line.
func (q *FileQuarantine) Add(rec ErrorRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := q.file.Write(data); err != nil {
		return err
	}
	q.count++
	return nil
}

// Count returns how many records this quarantine wrote.
func (q *FileQuarantine) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Path returns the quarantine file path.
func (q *FileQuarantine) Path() string { return q.path }

// Close syncs and closes the file.
func (q *FileQuarantine) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.file == nil {
		return nil
	}
	syncErr := q.file.Sync()
	closeErr := q.file.Close()
	q.file = nil
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}
