package tenants

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgehive/device-registry/interfaces"
	"github.com/edgehive/device-registry/storage"
)

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(cfg, nil, log)
}

func testTenant() *interfaces.Tenant {
	return &interfaces.Tenant{
		Adapters: []interfaces.Adapter{
			{Type: "mqtt"},
			{Type: "http"},
		},
	}
}

func TestAddAndGet(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	ctx := context.Background()

	version, err := store.Add(ctx, "DEFAULT_TENANT", testTenant())
	require.NoError(t, err)
	require.NotEmpty(t, version)

	tenant, gotVersion, err := store.Get(ctx, "DEFAULT_TENANT")
	require.NoError(t, err)
	assert.Equal(t, version, gotVersion)
	assert.Len(t, tenant.Adapters, 2)

	_, err = store.Add(ctx, "DEFAULT_TENANT", testTenant())
	assert.ErrorIs(t, err, interfaces.ErrAlreadyExists)
}

func TestAddRejectsInvalidTenant(t *testing.T) {
	store := newTestStore(t, DefaultConfig())

	_, err := store.Add(context.Background(), "DEFAULT_TENANT", &interfaces.Tenant{
		Adapters: []interfaces.Adapter{},
	})
	var validationErr *interfaces.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestGetUnknownTenant(t *testing.T) {
	store := newTestStore(t, DefaultConfig())

	_, _, err := store.Get(context.Background(), "unknown")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestUpdateVersionCheck(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	ctx := context.Background()

	version, err := store.Add(ctx, "DEFAULT_TENANT", testTenant())
	require.NoError(t, err)

	_, err = store.Update(ctx, "DEFAULT_TENANT", "stale-version", testTenant())
	var mismatch *interfaces.VersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, version, mismatch.CurrentVersion)

	disabled := false
	updated := testTenant()
	updated.Enabled = &disabled
	newVersion, err := store.Update(ctx, "DEFAULT_TENANT", version, updated)
	require.NoError(t, err)
	assert.NotEqual(t, version, newVersion)

	tenant, _, err := store.Get(ctx, "DEFAULT_TENANT")
	require.NoError(t, err)
	require.NotNil(t, tenant.Enabled)
	assert.False(t, *tenant.Enabled)
}

func TestUpdateUnknownTenant(t *testing.T) {
	store := newTestStore(t, DefaultConfig())

	_, err := store.Update(context.Background(), "unknown", "", testTenant())
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestRemove(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	ctx := context.Background()

	err := store.Remove(ctx, "DEFAULT_TENANT", "")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	version, err := store.Add(ctx, "DEFAULT_TENANT", testTenant())
	require.NoError(t, err)

	err = store.Remove(ctx, "DEFAULT_TENANT", "stale-version")
	var mismatch *interfaces.VersionMismatchError
	require.ErrorAs(t, err, &mismatch)

	require.NoError(t, store.Remove(ctx, "DEFAULT_TENANT", version))

	_, _, err = store.Get(ctx, "DEFAULT_TENANT")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestModificationDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModificationEnabled = false
	store := newTestStore(t, cfg)
	ctx := context.Background()

	_, err := store.Add(ctx, "DEFAULT_TENANT", testTenant())
	assert.ErrorIs(t, err, interfaces.ErrReadOnly)

	_, err = store.Update(ctx, "DEFAULT_TENANT", "", testTenant())
	assert.ErrorIs(t, err, interfaces.ErrReadOnly)

	err = store.Remove(ctx, "DEFAULT_TENANT", "")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.json")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := storage.NewFileStore(path, log)
	require.NoError(t, err)
	ctx := context.Background()

	store := NewStore(DefaultConfig(), backend, log)
	require.NoError(t, store.Load(ctx))

	_, err = store.Add(ctx, "DEFAULT_TENANT", testTenant())
	require.NoError(t, err)

	saver := store.Saver()
	require.NotNil(t, saver)
	assert.False(t, saver.SaveIfDirty(ctx))

	restored := NewStore(DefaultConfig(), backend, log)
	require.NoError(t, restored.Load(ctx))

	tenant, _, err := restored.Get(ctx, "DEFAULT_TENANT")
	require.NoError(t, err)
	assert.Len(t, tenant.Adapters, 2)
}
