package devices

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/edgehive/device-registry/interfaces"
)

// Config holds the device store's settings.
type Config struct {
	// ModificationEnabled allows create/update/remove operations.
	ModificationEnabled bool
	// StartEmpty skips loading the persisted snapshot on startup.
	StartEmpty bool
	// SaveInterval is the period of the background snapshot save.
	SaveInterval time.Duration
}

// DefaultConfig returns the settings used when no explicit configuration is
// given.
func DefaultConfig() Config {
	return Config{
		ModificationEnabled: true,
		SaveInterval:        3 * time.Second,
	}
}

type versionedDevice struct {
	version string
	device  *interfaces.Device
}

type partition struct {
	mu      sync.RWMutex
	devices map[string]*versionedDevice
}

// Store is the in-memory, snapshot-persisted device store. It implements
// interfaces.DeviceLookup and interfaces.LastViaUpdater.
type Store struct {
	cfg         Config
	persistence interfaces.PersistentStore
	clock       interfaces.Clock
	log         *slog.Logger

	dirty atomic.Bool

	mu      sync.RWMutex
	tenants map[string]*partition
}

// NewStore creates a device store. The persistence backend may be nil for a
// purely in-memory store; a nil clock falls back to the system clock.
func NewStore(cfg Config, persistence interfaces.PersistentStore, clock interfaces.Clock, log *slog.Logger) *Store {
	if clock == nil {
		clock = interfaces.SystemClock{}
	}
	if !cfg.ModificationEnabled {
		log.Info("modification of devices has been disabled")
	}
	return &Store{
		cfg:         cfg,
		persistence: persistence,
		clock:       clock,
		log:         log,
		tenants:     map[string]*partition{},
	}
}

func (s *Store) partitionFor(tenantID string, create bool) *partition {
	s.mu.RLock()
	p := s.tenants[tenantID]
	s.mu.RUnlock()
	if p != nil || !create {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p = s.tenants[tenantID]; p == nil {
		p = &partition{devices: map[string]*versionedDevice{}}
		s.tenants[tenantID] = p
	}
	return p
}

// Create registers a new device. Returns interfaces.ErrAlreadyExists if the
// identifier is taken and interfaces.ErrReadOnly if modification is disabled.
func (s *Store) Create(ctx context.Context, tenantID, deviceID string, device *interfaces.Device) (string, error) {
	if !s.cfg.ModificationEnabled {
		return "", interfaces.ErrReadOnly
	}

	p := s.partitionFor(tenantID, true)
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.devices[deviceID]; ok {
		return "", interfaces.ErrAlreadyExists
	}

	version := interfaces.NewResourceVersion()
	p.devices[deviceID] = &versionedDevice{version: version, device: device.Clone()}

	s.dirty.Store(true)
	s.log.Debug("registered device",
		slog.String("tenant_id", tenantID),
		slog.String("device_id", deviceID))
	return version, nil
}

// Get returns a copy of the device's registration data and its resource
// version. Returns interfaces.ErrNotFound for unknown devices.
func (s *Store) Get(ctx context.Context, tenantID, deviceID string) (*interfaces.Device, string, error) {
	p := s.partitionFor(tenantID, false)
	if p == nil {
		return nil, "", interfaces.ErrNotFound
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.devices[deviceID]
	if !ok {
		return nil, "", interfaces.ErrNotFound
	}
	return entry.device.Clone(), entry.version, nil
}

// GetDevice implements interfaces.DeviceLookup.
func (s *Store) GetDevice(ctx context.Context, tenantID, deviceID string) (*interfaces.Device, error) {
	device, _, err := s.Get(ctx, tenantID, deviceID)
	return device, err
}

// Update replaces a device's registration data. An empty expected version
// overwrites unconditionally. Returns interfaces.ErrNotFound,
// interfaces.ErrReadOnly or *interfaces.VersionMismatchError.
func (s *Store) Update(ctx context.Context, tenantID, deviceID, expectedVersion string, device *interfaces.Device) (string, error) {
	if !s.cfg.ModificationEnabled {
		return "", interfaces.ErrReadOnly
	}

	p := s.partitionFor(tenantID, false)
	if p == nil {
		return "", interfaces.ErrNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.devices[deviceID]
	if !ok {
		return "", interfaces.ErrNotFound
	}
	if expectedVersion != "" && expectedVersion != entry.version {
		return "", &interfaces.VersionMismatchError{CurrentVersion: entry.version}
	}

	entry.version = interfaces.NewResourceVersion()
	entry.device = device.Clone()

	s.dirty.Store(true)
	s.log.Debug("updated device",
		slog.String("tenant_id", tenantID),
		slog.String("device_id", deviceID))
	return entry.version, nil
}

// Remove deletes a device's registration. Returns interfaces.ErrNotFound,
// interfaces.ErrReadOnly or *interfaces.VersionMismatchError.
func (s *Store) Remove(ctx context.Context, tenantID, deviceID, expectedVersion string) error {
	p := s.partitionFor(tenantID, false)
	if p == nil {
		return interfaces.ErrNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.devices[deviceID]
	if !ok {
		return interfaces.ErrNotFound
	}
	if !s.cfg.ModificationEnabled {
		return interfaces.ErrReadOnly
	}
	if expectedVersion != "" && expectedVersion != entry.version {
		return &interfaces.VersionMismatchError{CurrentVersion: entry.version}
	}

	delete(p.devices, deviceID)

	s.dirty.Store(true)
	s.log.Debug("removed device",
		slog.String("tenant_id", tenantID),
		slog.String("device_id", deviceID))
	return nil
}

// UpdateLastVia implements interfaces.LastViaUpdater. It records the gateway
// a device most recently connected through. Last-via updates are operational
// state, not management changes, so they are accepted even when modification
// is disabled.
func (s *Store) UpdateLastVia(ctx context.Context, tenantID, deviceID, gatewayID string) error {
	p := s.partitionFor(tenantID, false)
	if p == nil {
		return interfaces.ErrNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.devices[deviceID]
	if !ok {
		return interfaces.ErrNotFound
	}

	entry.device.LastVia = &interfaces.LastVia{
		DeviceID:   gatewayID,
		LastUpdate: s.clock.Now().UTC(),
	}
	entry.version = interfaces.NewResourceVersion()

	s.dirty.Store(true)
	return nil
}
