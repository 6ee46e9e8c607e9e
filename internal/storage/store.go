package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"oas-testgen/internal/logger"
)

var (
	// ErrInvalidName is returned for names that are not a plain file name.
	ErrInvalidName = errors.New("invalid file name")
	// ErrNotFound is returned when the named file does not exist.
	ErrNotFound = errors.New("file not found")
)

// EventKind is the kind of change a storage event reports.
type EventKind string

const (
	EventUploaded EventKind = "uploaded"
	EventDeleted  EventKind = "deleted"
)

// Event is a change notification for one file.
type Event struct {
	Name string    `json:"filename"`
	Kind EventKind `json:"event"`
	Time time.Time `json:"time"`
}

// ownWindow is how long changes made through the Store are attributed to it
// rather than reported again by a Watcher.
const ownWindow = 2 * time.Second

// Store is a flat file area with an upload directory and a download
// directory. JSON uploads are mirrored into the download directory.
type Store struct {
	uploadDir   string
	downloadDir string
	logger      *logger.Logger

	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	own         map[string]time.Time
}

// NewStore creates both directories if needed.
func NewStore(uploadDir, downloadDir string, log *logger.Logger) (*Store, error) {
	for _, dir := range []string{uploadDir, downloadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return &Store{
		uploadDir:   uploadDir,
		downloadDir: downloadDir,
		logger:      logger.OrNop(log),
		subscribers: make(map[int]chan Event),
		own:         make(map[string]time.Time),
	}, nil
}

// UploadDir returns the directory uploads are written to.
func (s *Store) UploadDir() string { return s.uploadDir }

// DownloadDir returns the directory downloads are served from.
func (s *Store) DownloadDir() string { return s.downloadDir }

// Write stores r under name in the upload area.
func (s *Store) Write(name string, r io.Reader) error {
	if err := validateName(name); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	s.markOwn(name)
	if err := os.WriteFile(filepath.Join(s.uploadDir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		if err := os.WriteFile(filepath.Join(s.downloadDir, name), data, 0644); err != nil {
			return fmt.Errorf("failed to mirror %s: %w", name, err)
		}
	}

	s.logger.Info("Storage", "Stored %s (%d bytes)", name, len(data))
	s.Publish(Event{Name: name, Kind: EventUploaded, Time: time.Now()})
	return nil
}

// WriteDownload stores a generated artifact directly in the download area.
func (s *Store) WriteDownload(name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.downloadDir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	s.logger.Info("Storage", "Published %s (%d bytes)", name, len(data))
	s.Publish(Event{Name: name, Kind: EventUploaded, Time: time.Now()})
	return nil
}

// Read returns a file from the download area.
func (s *Store) Read(name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.downloadDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, err
}

// Delete removes a file from the upload area and its download mirror.
func (s *Store) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	s.markOwn(name)
	removed := false
	for _, dir := range []string{s.uploadDir, s.downloadDir} {
		err := os.Remove(filepath.Join(dir, name))
		switch {
		case err == nil:
			removed = true
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	s.logger.Info("Storage", "Deleted %s", name)
	s.Publish(Event{Name: name, Kind: EventDeleted, Time: time.Now()})
	return nil
}

// List returns the names in the upload area, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Subscribe returns a channel of events and a function that unsubscribes
// and closes it. Slow subscribers drop events.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Event, 16)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber without blocking.
func (s *Store) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("Storage", "Dropping %s event for %s: subscriber %d is full", ev.Kind, ev.Name, id)
		}
	}
}

func (s *Store) markOwn(name string) {
	s.mu.Lock()
	s.own[name] = time.Now()
	s.mu.Unlock()
}

// ownedRecently reports whether name was changed through the Store within
// ownWindow.
func (s *Store) ownedRecently(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.own[name]
	if !ok {
		return false
	}
	if time.Since(at) > ownWindow {
		delete(s.own, name)
		return false
	}
	return true
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
