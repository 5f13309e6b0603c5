package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/config"
	"chatgate/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(dir)
	require.NoError(t, err)

	_, ok, err := s.Load("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save("k", "v1"))
	require.NoError(t, s.Save("k", "v2"))
	v, ok, err := s.Load("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	_, ok, err = s.UpdatedAt("k")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	info, err := os.Stat(filepath.Join(dir, "chatgate.db"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err = reopened.Load("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestSQLiteStoreBacksConfigManager(t *testing.T) {
	dir := t.TempDir()
	log, _ := test.NewNullLogger()

	s, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	m := config.NewManager(config.ManagerOptions{Store: s, Logger: log})
	_, err = m.Update(model.ProviderOllama, config.Patch{DefaultModel: config.StringPtr("qwen3:8b")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer s2.Close()
	m2 := config.NewManager(config.ManagerOptions{Store: s2, Logger: log})
	assert.Equal(t, "qwen3:8b", m2.Config(model.ProviderOllama).DefaultModel)
}

func TestFileStoreRoundTrip(t *testing.T) {
	log, _ := test.NewNullLogger()
	s, err := NewFileStore(t.TempDir(), log)
	require.NoError(t, err)

	_, ok, err := s.Load("cfg")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save("cfg", `{"a":1}`))
	v, ok, err := s.Load("cfg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, v)

	info, err := os.Stat(s.Path("cfg"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStoreWatchReportsExternalEdits(t *testing.T) {
	log, _ := test.NewNullLogger()
	s, err := NewFileStore(t.TempDir(), log)
	require.NoError(t, err)
	s.debounce = 20 * time.Millisecond
	require.NoError(t, s.Save("cfg", "mine"))

	changes := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, "cfg", func(content string) { changes <- content })
	}()
	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	// Our own write is not reported.
	require.NoError(t, s.Save("cfg", "mine-again"))
	// An external one is.
	require.NoError(t, os.WriteFile(s.Path("cfg"), []byte("theirs"), 0600))

	select {
	case got := <-changes:
		assert.Equal(t, "theirs", got)
	case <-time.After(3 * time.Second):
		t.Fatal("external edit not reported")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, changes)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Save("k", "v"))
	v, ok, err := s.Load("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	s.FailSaves = os.ErrPermission
	assert.ErrorIs(t, s.Save("k", "w"), os.ErrPermission)
}
