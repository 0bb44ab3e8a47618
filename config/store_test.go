package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileStoreReloadSkipsUnchangedMtime(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	store, err := NewFileStore(path, NewLoader(), nil)
	require.NoError(t, err)

	changed, err := store.Reload()
	require.NoError(t, err)
	require.False(t, changed)
}

func TestFileStoreReloadPicksUpChangedFile(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	store, err := NewFileStore(path, NewLoader(), nil)
	require.NoError(t, err)
	require.Equal(t, "GE", store.Get().Identity.ServerID)

	// Ensure the mtime actually advances on filesystems with coarse
	// resolution before rewriting the file.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`
ring:
  ring_dir: /var/lib/ringserver
identity:
  server_id: EE
`), 0o644))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	changed, err := store.Reload()
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "EE", store.Get().Identity.ServerID)
}

func TestFileStoreReloadKeepsPreviousSnapshotOnError(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	store, err := NewFileStore(path, NewLoader(), nil)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`not: [valid yaml`), 0o644))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	changed, err := store.Reload()
	require.Error(t, err)
	require.False(t, changed)
	require.Equal(t, "GE", store.Get().Identity.ServerID)
}

func TestStoreUpdateValidatesBeforeSwap(t *testing.T) {
	store := NewStore(&Config{Ring: RingConfig{Dir: "/tmp"}}, nil)
	bad := &Config{Client: ClientConfig{MaxClients: -1}}
	require.Error(t, store.Update(bad))
	require.Equal(t, "/tmp", store.Get().Ring.Dir)
}
