package tenants

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/edgehive/device-registry/interfaces"
	"github.com/edgehive/device-registry/validation"
)

// Config holds the tenant store's settings.
type Config struct {
	// ModificationEnabled allows add/update/remove operations.
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

type versionedTenant struct {
	version string
	tenant  *interfaces.Tenant
}

// Store is the in-memory, snapshot-persisted tenant store.
type Store struct {
	cfg         Config
	persistence interfaces.PersistentStore
	log         *slog.Logger

	dirty atomic.Bool

	mu      sync.RWMutex
	tenants map[string]*versionedTenant
}

// NewStore creates a tenant store. The persistence backend may be nil for a
// purely in-memory store.
func NewStore(cfg Config, persistence interfaces.PersistentStore, log *slog.Logger) *Store {
	if !cfg.ModificationEnabled {
		log.Info("modification of tenants has been disabled")
	}
	return &Store{
		cfg:         cfg,
		persistence: persistence,
		log:         log,
		tenants:     map[string]*versionedTenant{},
	}
}

// Add registers a new tenant. The tenant configuration is validated before it
// is stored. Returns *interfaces.ValidationError,
// interfaces.ErrAlreadyExists or interfaces.ErrReadOnly.
func (s *Store) Add(ctx context.Context, tenantID string, tenant *interfaces.Tenant) (string, error) {
	if !s.cfg.ModificationEnabled {
		return "", interfaces.ErrReadOnly
	}
	if err := validation.ValidateTenant(tenant); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[tenantID]; ok {
		return "", interfaces.ErrAlreadyExists
	}

	version := interfaces.NewResourceVersion()
	s.tenants[tenantID] = &versionedTenant{version: version, tenant: tenant.Clone()}

	s.dirty.Store(true)
	s.log.Debug("added tenant", slog.String("tenant_id", tenantID))
	return version, nil
}

// Get returns a copy of the tenant's configuration and its resource version.
// Returns interfaces.ErrNotFound for unknown tenants.
func (s *Store) Get(ctx context.Context, tenantID string) (*interfaces.Tenant, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tenants[tenantID]
	if !ok {
		return nil, "", interfaces.ErrNotFound
	}
	return entry.tenant.Clone(), entry.version, nil
}

// Update replaces a tenant's configuration. An empty expected version
// overwrites unconditionally. Returns *interfaces.ValidationError,
// interfaces.ErrNotFound, interfaces.ErrReadOnly or
// *interfaces.VersionMismatchError.
func (s *Store) Update(ctx context.Context, tenantID, expectedVersion string, tenant *interfaces.Tenant) (string, error) {
	if !s.cfg.ModificationEnabled {
		return "", interfaces.ErrReadOnly
	}
	if err := validation.ValidateTenant(tenant); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tenants[tenantID]
	if !ok {
		return "", interfaces.ErrNotFound
	}
	if expectedVersion != "" && expectedVersion != entry.version {
		return "", &interfaces.VersionMismatchError{CurrentVersion: entry.version}
	}

	entry.version = interfaces.NewResourceVersion()
	entry.tenant = tenant.Clone()

	s.dirty.Store(true)
	s.log.Debug("updated tenant", slog.String("tenant_id", tenantID))
	return entry.version, nil
}

// Remove deletes a tenant's configuration. Returns interfaces.ErrNotFound,
// interfaces.ErrReadOnly or *interfaces.VersionMismatchError.
func (s *Store) Remove(ctx context.Context, tenantID, expectedVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tenants[tenantID]
	if !ok {
		return interfaces.ErrNotFound
	}
	if !s.cfg.ModificationEnabled {
		return interfaces.ErrReadOnly
	}
	if expectedVersion != "" && expectedVersion != entry.version {
		return &interfaces.VersionMismatchError{CurrentVersion: entry.version}
	}

	delete(s.tenants, tenantID)

	s.dirty.Store(true)
	s.log.Debug("removed tenant", slog.String("tenant_id", tenantID))
	return nil
}
