package storage

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/atomic"
)

// PeriodicSaver drives the background persistence of a registry store. It
// saves on a fixed interval, but only when the store has marked itself dirty,
// and it never blocks the store's mutation path: the store serializes a
// snapshot off the hot path and the saver does the durable write.
//
// The dirty flag is cleared before a save and restored on failure, so a write
// racing the save, an abandoned save at shutdown, or a failed backend all
// leave the flag set and the next cycle retries. A failed save is never data
// loss.
type PeriodicSaver struct {
	interval time.Duration
	dirty    *atomic.Bool
	save     func(context.Context) error
	log      *slog.Logger
}

// NewPeriodicSaver creates a saver calling save every interval while dirty is
// set.
func NewPeriodicSaver(interval time.Duration, dirty *atomic.Bool, save func(context.Context) error, log *slog.Logger) *PeriodicSaver {
	return &PeriodicSaver{
		interval: interval,
		dirty:    dirty,
		save:     save,
		log:      log,
	}
}

// Run saves periodically until the context is cancelled, then attempts one
// final save. In-flight saves abandoned at shutdown leave the dirty flag set.
func (p *PeriodicSaver) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.SaveIfDirty(context.Background())
			return
		case <-ticker.C:
			p.SaveIfDirty(ctx)
		}
	}
}

// SaveIfDirty performs a save now if the store has unsaved changes. It
// reports whether a save was attempted and failed.
func (p *PeriodicSaver) SaveIfDirty(ctx context.Context) bool {
	if !p.dirty.CompareAndSwap(true, false) {
		return false
	}
	if err := p.save(ctx); err != nil {
		// keep the data marked dirty so the next cycle retries
		p.dirty.Store(true)
		p.log.Warn("could not persist registry snapshot, will retry", "err", err)
		return true
	}
	return false
}
