package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/edgehive/device-registry/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	store, err := NewFileStore(path, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, interfaces.ErrAbsent)

	require.NoError(t, store.Save(ctx, []byte(`{"hello":"world"}`)))

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"hello":"world"}`), data)

	// a second save replaces the first
	require.NoError(t, store.Save(ctx, []byte(`{}`)))
	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), data)
}

func TestFactorySchemes(t *testing.T) {
	factory := NewFactory(testLogger())

	store, err := factory.StoreFor("file://" + filepath.Join(t.TempDir(), "snapshot.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = factory.StoreFor("s3://bucket/snapshots/credentials.json?region=eu-west-1")
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, store)

	store, err = factory.StoreFor("vault://vault.example.com:8200/secret/registry?token=abc")
	require.NoError(t, err)
	assert.IsType(t, &VaultStore{}, store)

	_, err = factory.StoreFor("ftp://nope")
	assert.Error(t, err)

	_, err = factory.StoreFor("vault://vault.example.com/secretonly")
	assert.Error(t, err, "vault URIs require a mount and a path")
}

func TestMultiStoreFor(t *testing.T) {
	factory := NewFactory(testLogger())
	dir := t.TempDir()

	single, err := factory.MultiStoreFor([]string{"file://" + filepath.Join(dir, "a.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, single, "single URI must not be wrapped")

	multi, err := factory.MultiStoreFor([]string{
		"file://" + filepath.Join(dir, "a.json"),
		"file://" + filepath.Join(dir, "b.json"),
	})
	require.NoError(t, err)
	assert.IsType(t, &MultiStore{}, multi)

	_, err = factory.MultiStoreFor(nil)
	assert.Error(t, err)
}

type flakyStore struct {
	name    string
	data    []byte
	loadErr error
	saveErr error
}

func (f *flakyStore) Load(ctx context.Context) ([]byte, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.data, nil
}

func (f *flakyStore) Save(ctx context.Context, data []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.data = data
	return nil
}

func (f *flakyStore) Name() string { return f.name }

func TestMultiStoreFallback(t *testing.T) {
	ctx := context.Background()
	broken := &flakyStore{name: "broken", loadErr: fmt.Errorf("boom"), saveErr: fmt.Errorf("boom")}
	healthy := &flakyStore{name: "healthy"}
	multi := NewMultiStore([]interfaces.PersistentStore{broken, healthy}, testLogger())

	require.NoError(t, multi.Save(ctx, []byte("snapshot")))

	data, err := multi.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), data)
}

func TestMultiStoreAllAbsent(t *testing.T) {
	multi := NewMultiStore([]interfaces.PersistentStore{
		&flakyStore{name: "a", loadErr: interfaces.ErrAbsent},
		&flakyStore{name: "b", loadErr: interfaces.ErrAbsent},
	}, testLogger())

	_, err := multi.Load(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrAbsent)
}

func TestMultiStoreAllSavesFail(t *testing.T) {
	multi := NewMultiStore([]interfaces.PersistentStore{
		&flakyStore{name: "a", saveErr: fmt.Errorf("boom")},
		&flakyStore{name: "b", saveErr: fmt.Errorf("boom")},
	}, testLogger())

	assert.Error(t, multi.Save(context.Background(), []byte("snapshot")))
}

func TestSaveIfDirty(t *testing.T) {
	var dirty atomic.Bool
	saves := 0
	saver := NewPeriodicSaver(time.Second, &dirty, func(ctx context.Context) error {
		saves++
		return nil
	}, testLogger())

	assert.False(t, saver.SaveIfDirty(context.Background()), "clean store needs no save")
	assert.Equal(t, 0, saves)

	dirty.Store(true)
	assert.False(t, saver.SaveIfDirty(context.Background()))
	assert.Equal(t, 1, saves)
	assert.False(t, dirty.Load())
}

func TestSaveIfDirtyKeepsFlagOnFailure(t *testing.T) {
	var dirty atomic.Bool
	dirty.Store(true)
	saver := NewPeriodicSaver(time.Second, &dirty, func(ctx context.Context) error {
		return fmt.Errorf("backend down")
	}, testLogger())

	assert.True(t, saver.SaveIfDirty(context.Background()))
	assert.True(t, dirty.Load(), "a failed save must leave the store dirty")
}

func TestPeriodicSaverRun(t *testing.T) {
	var dirty atomic.Bool
	dirty.Store(true)
	saved := make(chan struct{}, 8)
	saver := NewPeriodicSaver(5*time.Millisecond, &dirty, func(ctx context.Context) error {
		saved <- struct{}{}
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		saver.Run(ctx)
		close(done)
	}()

	select {
	case <-saved:
	case <-time.After(time.Second):
		t.Fatal("saver never fired")
	}

	// the final save on shutdown picks up late changes
	dirty.Store(true)
	cancel()
	<-done
	assert.False(t, dirty.Load())
}
