package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/edgehive/device-registry/interfaces"
	"github.com/edgehive/device-registry/storage"
)

// tenantEntry is the persisted form of one tenant.
type tenantEntry struct {
	ID   string             `json:"id"`
	Data *interfaces.Tenant `json:"data"`
}

// Load restores the store's contents from the persistence backend. An absent
// or malformed snapshot is not an error: the store starts empty and logs a
// warning for the malformed case.
func (s *Store) Load(ctx context.Context) error {
	if s.persistence == nil || s.cfg.StartEmpty {
		s.log.Info("skipping loading tenants, starting empty")
		return nil
	}

	data, err := s.persistence.Load(ctx)
	if err != nil {
		if errors.Is(err, interfaces.ErrAbsent) {
			s.log.Info("no tenant snapshot found, starting empty",
				slog.String("backend", s.persistence.Name()))
			return nil
		}
		return err
	}

	var entries []tenantEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn("could not parse tenant snapshot, starting empty",
			slog.String("backend", s.persistence.Name()),
			"err", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tenants = map[string]*versionedTenant{}
	for _, entry := range entries {
		tenant := entry.Data
		if tenant == nil {
			tenant = &interfaces.Tenant{}
		}
		s.tenants[entry.ID] = &versionedTenant{
			version: interfaces.NewResourceVersion(),
			tenant:  tenant,
		}
	}

	s.log.Info("successfully loaded tenants",
		slog.Int("tenants", len(s.tenants)),
		slog.String("backend", s.persistence.Name()))
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	data, err := s.snapshot()
	if err != nil {
		return err
	}
	return s.persistence.Save(ctx, data)
}

func (s *Store) snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantIDs := make([]string, 0, len(s.tenants))
	for tenantID := range s.tenants {
		tenantIDs = append(tenantIDs, tenantID)
	}
	sort.Strings(tenantIDs)

	entries := make([]tenantEntry, 0, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		entries = append(entries, tenantEntry{
			ID:   tenantID,
			Data: s.tenants[tenantID].tenant.Clone(),
		})
	}
	return json.MarshalIndent(entries, "", "  ")
}

// Saver returns the background task persisting the store's snapshot. Returns
// nil for a store without a persistence backend.
func (s *Store) Saver() *storage.PeriodicSaver {
	if s.persistence == nil {
		return nil
	}
	return storage.NewPeriodicSaver(s.cfg.SaveInterval, &s.dirty, s.persist, s.log)
}
