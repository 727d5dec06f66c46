package devices

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/edgehive/device-registry/interfaces"
	"github.com/edgehive/device-registry/storage"
)

// deviceEntry is the persisted form of one device registration.
type deviceEntry struct {
	DeviceID string             `json:"device-id"`
	Data     *interfaces.Device `json:"data"`
}

// tenantSnapshot is the persisted form of one tenant's devices.
type tenantSnapshot struct {
	Tenant  string        `json:"tenant"`
	Devices []deviceEntry `json:"devices"`
}

// Load restores the store's contents from the persistence backend. An absent
// or malformed snapshot is not an error: the store starts empty and logs a
// warning for the malformed case.
func (s *Store) Load(ctx context.Context) error {
	if s.persistence == nil || s.cfg.StartEmpty {
		s.log.Info("skipping loading device registrations, starting empty")
		return nil
	}

	data, err := s.persistence.Load(ctx)
	if err != nil {
		if errors.Is(err, interfaces.ErrAbsent) {
			s.log.Info("no device snapshot found, starting empty",
				slog.String("backend", s.persistence.Name()))
			return nil
		}
		return err
	}

	var snapshots []tenantSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		s.log.Warn("could not parse device snapshot, starting empty",
			slog.String("backend", s.persistence.Name()),
			"err", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deviceCount := 0
	s.tenants = map[string]*partition{}
	for _, snapshot := range snapshots {
		p := &partition{devices: map[string]*versionedDevice{}}
		for _, entry := range snapshot.Devices {
			device := entry.Data
			if device == nil {
				device = &interfaces.Device{}
			}
			p.devices[entry.DeviceID] = &versionedDevice{
				version: interfaces.NewResourceVersion(),
				device:  device,
			}
			deviceCount++
		}
		s.tenants[snapshot.Tenant] = p
	}

	s.log.Info("successfully loaded device registrations",
		slog.Int("devices", deviceCount),
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

	snapshots := make([]tenantSnapshot, 0, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		p := s.tenants[tenantID]
		p.mu.RLock()
		deviceIDs := make([]string, 0, len(p.devices))
		for deviceID := range p.devices {
			deviceIDs = append(deviceIDs, deviceID)
		}
		sort.Strings(deviceIDs)

		snapshot := tenantSnapshot{Tenant: tenantID}
		for _, deviceID := range deviceIDs {
			snapshot.Devices = append(snapshot.Devices, deviceEntry{
				DeviceID: deviceID,
				Data:     p.devices[deviceID].device.Clone(),
			})
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
