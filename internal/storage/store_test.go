package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := NewStore(filepath.Join(root, "in"), filepath.Join(root, "out"), nil)
	require.NoError(t, err)
	return s
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for storage event")
		return Event{}
	}
}

func TestStoreWriteReadDelete(t *testing.T) {
	s := newStore(t)
	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Write("petstore.json", strings.NewReader(`{"openapi":"3.0.0"}`)))
	ev := nextEvent(t, events)
	assert.Equal(t, "petstore.json", ev.Name)
	assert.Equal(t, EventUploaded, ev.Kind)

	data, err := s.Read("petstore.json")
	require.NoError(t, err)
	assert.Equal(t, `{"openapi":"3.0.0"}`, string(data))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"petstore.json"}, names)

	require.NoError(t, s.Delete("petstore.json"))
	ev = nextEvent(t, events)
	assert.Equal(t, EventDeleted, ev.Kind)

	_, err = s.Read("petstore.json")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Delete("petstore.json"), ErrNotFound))
}

func TestStoreOnlyMirrorsJSON(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Write("spec.yaml", strings.NewReader("openapi: 3.0.0")))

	_, err := os.Stat(filepath.Join(s.UploadDir(), "spec.yaml"))
	require.NoError(t, err)
	_, err = s.Read("spec.yaml")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreRejectsInvalidNames(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{"", "../escape.json", "a/b.json", ".hidden", ".."} {
		err := s.Write(name, strings.NewReader("x"))
		assert.True(t, errors.Is(err, ErrInvalidName), "name %q", name)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := newStore(t)
	events, cancel := s.Subscribe()
	cancel()
	cancel()

	_, ok := <-events
	assert.False(t, ok)
	s.Publish(Event{Name: "x", Kind: EventUploaded})
}

func TestWatcherReportsExternalChanges(t *testing.T) {
	s := newStore(t)
	w, err := NewWatcher(s)
	require.NoError(t, err)

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		stop()
		<-done
	}()

	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, os.WriteFile(filepath.Join(s.UploadDir(), "dropped.json"), []byte("{}"), 0644))
	ev := nextEvent(t, events)
	assert.Equal(t, "dropped.json", ev.Name)
	assert.Equal(t, EventUploaded, ev.Kind)
}

func TestWriteDownload(t *testing.T) {
	s := newStore(t)
	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.WriteDownload("results.csv", []byte("a,b\n")))
	assert.Equal(t, "results.csv", nextEvent(t, events).Name)

	data, err := s.Read("results.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}
