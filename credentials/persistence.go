package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/edgehive/device-registry/interfaces"
	"github.com/edgehive/device-registry/storage"
)

// tenantSnapshot is the persisted form of one tenant's credentials.
type tenantSnapshot struct {
	Tenant      string                         `json:"tenant"`
	Credentials []*interfaces.CredentialRecord `json:"credentials"`
}

// Load restores the store's contents from the persistence backend. An absent
// or malformed snapshot is not an error: the store starts empty and logs a
// warning for the malformed case. With StartEmpty set, loading is skipped
// entirely.
func (s *Store) Load(ctx context.Context) error {
	if s.persistence == nil || s.cfg.StartEmpty {
		s.log.Info("skipping loading credentials, starting empty")
		return nil
	}

	data, err := s.persistence.Load(ctx)
	if err != nil {
		if errors.Is(err, interfaces.ErrAbsent) {
			s.log.Info("no credentials snapshot found, starting empty",
				slog.String("backend", s.persistence.Name()))
			return nil
		}
		return err
	}

	var snapshots []tenantSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		s.log.Warn("could not parse credentials snapshot, starting empty",
			slog.String("backend", s.persistence.Name()),
			"err", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCount := 0
	s.tenants = map[string]*partition{}
	for _, snapshot := range snapshots {
		p := &partition{buckets: map[string]*bucket{}}
		for _, record := range snapshot.Credentials {
			b := p.buckets[record.AuthID]
			if b == nil {
				b = &bucket{version: interfaces.NewResourceVersion()}
				p.buckets[record.AuthID] = b
			}
			b.records = append(b.records, record)
			recordCount++
		}
		s.tenants[snapshot.Tenant] = p
	}

	s.log.Info("successfully loaded credentials",
		slog.Int("records", recordCount),
		slog.String("backend", s.persistence.Name()))
	return nil
}

// persist writes the store's current contents to the persistence backend.
func (s *Store) persist(ctx context.Context) error {
	data, err := s.snapshot()
	if err != nil {
		return err
	}
	return s.persistence.Save(ctx, data)
}

// snapshot serializes the store's contents while holding the read locks.
func (s *Store) snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := make([]tenantSnapshot, 0, len(s.tenants))
	for _, tenantID := range sortedKeys(s.tenants) {
		p := s.tenants[tenantID]
		p.mu.RLock()
		snapshot := tenantSnapshot{Tenant: tenantID}
		for _, authID := range sortedKeys(p.buckets) {
			for _, record := range p.buckets[authID].records {
				snapshot.Credentials = append(snapshot.Credentials, record.Clone())
			}
		}
		p.mu.RUnlock()
		snapshots = append(snapshots, snapshot)
	}
	return json.MarshalIndent(snapshots, "", "  ")
}

// Saver returns the background task persisting the store's snapshot. Returns
// nil for a store without a persistence backend.
func (s *Store) Saver() *storage.PeriodicSaver {
	if s.persistence == nil {
		return nil
	}
	return storage.NewPeriodicSaver(s.cfg.SaveInterval, &s.dirty, s.persist, s.log)
}
