package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 200 * time.Millisecond

// FileStore keeps each key in <dir>/<key>.json so the config can be edited
// by hand. Watch reports edits made by other processes.
type FileStore struct {
	dir      string
	debounce time.Duration
	log      logrus.FieldLogger

	mu      sync.Mutex
	written map[string]string // last content this process wrote, per key
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, log logrus.FieldLogger) (*FileStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{
		dir:      dir,
		debounce: defaultDebounce,
		log:      log.WithField("component", "filestore"),
		written:  make(map[string]string),
	}, nil
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Load(key string) (string, bool, error) {
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	s.mu.Lock()
	s.written[key] = string(data)
	s.mu.Unlock()
	return string(data), true, nil
}

// Save replaces the file atomically through a temp file and rename.
func (s *FileStore) Save(key, value string) error {
	path := s.Path(key)
	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to secure temp file: %w", err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	s.written[key] = value
	return nil
}

// Watch calls onChange with the new content whenever key's file is changed
// by someone else. It blocks until ctx is done. Changes are debounced, and
// content equal to what this store last wrote is ignored.
func (s *FileStore) Watch(ctx context.Context, key string, onChange func(content string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and Save replace the file by rename,
	// which would drop a watch on the file itself.
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	path := s.Path(key)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(s.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("File watcher error")

		case <-timer.C:
			s.reload(key, onChange)
		}
	}
}

func (s *FileStore) reload(key string, onChange func(string)) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).Warn("Failed to read changed config file")
		}
		return
	}
	content := string(data)

	s.mu.Lock()
	if s.written[key] == content {
		s.mu.Unlock()
		return
	}
	s.written[key] = content
	s.mu.Unlock()

	s.log.WithField("key", key).Info("Config file changed on disk")
	onChange(content)
}
