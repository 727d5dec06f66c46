package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgehive/device-registry/interfaces"
)

// MultiStore replicates snapshots across several persistent stores. Saves go
// to every backend and succeed if at least one backend accepts the write;
// loads return the first backend's snapshot, falling back in order.
type MultiStore struct {
	backends []interfaces.PersistentStore
	log      *slog.Logger
}

// NewMultiStore creates a replicating store over the given backends.
func NewMultiStore(backends []interfaces.PersistentStore, log *slog.Logger) *MultiStore {
	return &MultiStore{backends: backends, log: log}
}

// Load returns the first available snapshot. interfaces.ErrAbsent is only
// reported when every backend is absent.
func (m *MultiStore) Load(ctx context.Context) ([]byte, error) {
	var errs []error
	absent := 0
	for _, backend := range m.backends {
		data, err := backend.Load(ctx)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, interfaces.ErrAbsent) {
			absent++
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Warn("failed to load snapshot from backend",
			slog.String("backend", backend.Name()),
			"err", err)
	}
	if len(errs) == 0 && absent == len(m.backends) {
		return nil, interfaces.ErrAbsent
	}
	return nil, fmt.Errorf("all backends failed to load snapshot: %v", errs)
}

// Save writes the snapshot to every backend. Partial failures are logged;
// the save fails only if no backend accepted the write.
func (m *MultiStore) Save(ctx context.Context, data []byte) error {
	var errs []error
	for _, backend := range m.backends {
		if err := backend.Save(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("failed to save snapshot to backend",
				slog.String("backend", backend.Name()),
				"err", err)
		}
	}
	if len(errs) == len(m.backends) {
		return fmt.Errorf("all backends failed to save snapshot: %v", errs)
	}
	return nil
}

// Name returns a unique identifier for this backend combination.
func (m *MultiStore) Name() string {
	names := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		names = append(names, backend.Name())
	}
	return fmt.Sprintf("multi-[%s]", strings.Join(names, ","))
}
