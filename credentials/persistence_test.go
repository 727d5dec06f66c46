package credentials

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgehive/device-registry/interfaces"
	"github.com/edgehive/device-registry/storage"
	"github.com/edgehive/device-registry/validation"
)

func newPersistentStore(t *testing.T, path string, cfg Config) *Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := storage.NewFileStore(path, log)
	require.NoError(t, err)
	return NewStore(cfg, validation.NewSecretValidator(validation.DefaultMaxBcryptCost), backend, log)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	ctx := context.Background()

	store := newPersistentStore(t, path, DefaultConfig())
	require.NoError(t, store.Load(ctx))

	_, err := store.Set(ctx, "DEFAULT_TENANT", "4711", "", []interfaces.Secret{
		passwordSecret("sensor1", "hash-one"),
		pskSecret("sensor1-psk", []byte("shared")),
	})
	require.NoError(t, err)

	saver := store.Saver()
	require.NotNil(t, saver)
	assert.False(t, saver.SaveIfDirty(ctx), "save must succeed")
	assert.False(t, saver.SaveIfDirty(ctx), "no second save without changes")

	restored := newPersistentStore(t, path, DefaultConfig())
	require.NoError(t, restored.Load(ctx))

	record, _, err := restored.Lookup(ctx, "DEFAULT_TENANT", interfaces.TypeHashedPassword, "sensor1", nil)
	require.NoError(t, err)
	assert.Equal(t, "4711", record.DeviceID)
	assert.Equal(t, "hash-one", record.Secrets[0].(*interfaces.PasswordSecret).PasswordHash)

	record, _, err = restored.Lookup(ctx, "DEFAULT_TENANT", interfaces.TypePresharedKey, "sensor1-psk", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), record.Secrets[0].(*interfaces.PSKSecret).Key)
}

func TestLoadAbsentSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := newPersistentStore(t, path, DefaultConfig())

	require.NoError(t, store.Load(context.Background()))

	_, _, err := store.Get(context.Background(), "DEFAULT_TENANT", "4711")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestLoadMalformedSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("this is not json"), 0o644))

	store := newPersistentStore(t, path, DefaultConfig())
	require.NoError(t, store.Load(context.Background()), "malformed snapshot must not prevent startup")

	_, err := store.Set(context.Background(), "DEFAULT_TENANT", "4711", "", []interfaces.Secret{
		passwordSecret("sensor1", "hash-one"),
	})
	assert.NoError(t, err)
}

func TestLoadSkippedWhenStartingEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	ctx := context.Background()

	store := newPersistentStore(t, path, DefaultConfig())
	require.NoError(t, store.Load(ctx))
	_, err := store.Set(ctx, "DEFAULT_TENANT", "4711", "", []interfaces.Secret{
		passwordSecret("sensor1", "hash-one"),
	})
	require.NoError(t, err)
	store.Saver().SaveIfDirty(ctx)

	cfg := DefaultConfig()
	cfg.StartEmpty = true
	empty := newPersistentStore(t, path, cfg)
	require.NoError(t, empty.Load(ctx))

	_, _, err = empty.Lookup(ctx, "DEFAULT_TENANT", interfaces.TypeHashedPassword, "sensor1", nil)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}
