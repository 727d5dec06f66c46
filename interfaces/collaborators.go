package interfaces

import (
	"context"
	"time"
)

// DeviceLookup provides read access to a tenant's device collection. The
// registration engine consumes this capability but does not own it.
type DeviceLookup interface {
	// GetDevice returns the registration information of the given device, or
	// ErrNotFound.
	GetDevice(ctx context.Context, tenantID, deviceID string) (*Device, error)
}

// LastViaUpdater records the gateway (or the device itself) through which a
// device last connected.
type LastViaUpdater interface {
	UpdateLastVia(ctx context.Context, tenantID, deviceID, gatewayID string) error
}

// PersistentStore is byte-oriented durable storage for a registry store's
// snapshot. The encoding of the bytes is the store's business, not the
// backend's.
type PersistentStore interface {
	// Load returns the previously saved snapshot, or ErrAbsent if the
	// location holds no data yet.
	Load(ctx context.Context) ([]byte, error)
	// Save durably writes the snapshot, replacing any previous one.
	Save(ctx context.Context, data []byte) error
	// Name identifies the backend for logging.
	Name() string
}

// Clock supplies the current time. Stores and the registration engine take a
// Clock so tests can pin validity-period and last-via timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
