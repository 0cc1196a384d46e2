package activity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSink appends timestamped lines to a log file, creating the parent
// directory on first use. Line format matches the original activity trail:
// "[2006-01-02 15:04:05] message".
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// NewFileSink opens (or creates) the activity log at path.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create activity log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	return &FileSink{file: f, now: time.Now}, nil
}

func (s *FileSink) Append(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("[%s] %s\n", s.now().UTC().Format(time.DateTime), message)
	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("append activity entry: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
