package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/edgehive/device-registry/interfaces"
	"github.com/edgehive/device-registry/validation"
)

// Config holds the credential store's settings.
type Config struct {
	// CacheMaxAge is the max-age handed out with lookup results for
	// hashed-password and X.509 credentials. Zero disables caching for all
	// types.
	CacheMaxAge time.Duration
	// ModificationEnabled allows set/remove operations. A store with
	// modification disabled serves reads only.
	ModificationEnabled bool
	// StartEmpty skips loading the persisted snapshot on startup.
	StartEmpty bool
	// SaveInterval is the period of the background snapshot save.
	SaveInterval time.Duration
}

// DefaultConfig returns the settings used when no explicit configuration is
// given: 3 second save interval, 5 minute lookup cache, modification enabled.
func DefaultConfig() Config {
	return Config{
		CacheMaxAge:         5 * time.Minute,
		ModificationEnabled: true,
		SaveInterval:        3 * time.Second,
	}
}

// bucket is the versioned credential collection of one auth-id.
type bucket struct {
	version string
	records []*interfaces.CredentialRecord
}

// partition holds one tenant's buckets. All mutations of a partition happen
// under its write lock.
type partition struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// Store is the in-memory, snapshot-persisted credential store.
type Store struct {
	cfg         Config
	validator   *validation.SecretValidator
	persistence interfaces.PersistentStore
	log         *slog.Logger

	dirty atomic.Bool

	mu      sync.RWMutex
	tenants map[string]*partition
}

// NewStore creates a credential store. The persistence backend may be nil for
// a purely in-memory store.
func NewStore(cfg Config, validator *validation.SecretValidator, persistence interfaces.PersistentStore, log *slog.Logger) *Store {
	if !cfg.ModificationEnabled {
		log.Info("modification of credentials has been disabled")
	}
	return &Store{
		cfg:         cfg,
		validator:   validator,
		persistence: persistence,
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
		p = &partition{buckets: map[string]*bucket{}}
		s.tenants[tenantID] = p
	}
	return p
}

func versionMatch(expected, current string) bool {
	return expected == "" || expected == current
}

// Set replaces all credentials of a device. Prior records of the device are
// removed from every auth-id bucket of the tenant, then one record per
// (type, auth-id) group of the given secrets is inserted.
//
// The returned string is the new resource version shared by all touched
// buckets. Possible errors: *interfaces.ValidationError (a secret failed
// validation), interfaces.ErrReadOnly, interfaces.ErrDuplicateAuthID (an
// auth-id is owned by a different device) and
// *interfaces.VersionMismatchError. On error no mutation has happened.
func (s *Store) Set(ctx context.Context, tenantID, deviceID, expectedVersion string, secrets []interfaces.Secret) (string, error) {
	if !s.cfg.ModificationEnabled {
		return "", interfaces.ErrReadOnly
	}

	for _, secret := range secrets {
		if err := s.validator.Validate(secret); err != nil {
			return "", err
		}
	}

	groups, order := groupSecrets(deviceID, secrets)

	p := s.partitionFor(tenantID, true)
	p.mu.Lock()
	defer p.mu.Unlock()

	// verify phase: no mutation below may fail
	touched := map[string]bool{}
	for authID, b := range p.buckets {
		if !holdsDevice(b, deviceID) {
			continue
		}
		if !versionMatch(expectedVersion, b.version) {
			return "", &interfaces.VersionMismatchError{CurrentVersion: b.version}
		}
		touched[authID] = true
	}
	for _, key := range order {
		b := p.buckets[key.authID]
		if b == nil {
			if expectedVersion != "" {
				return "", &interfaces.VersionMismatchError{}
			}
			continue
		}
		if !versionMatch(expectedVersion, b.version) {
			return "", &interfaces.VersionMismatchError{CurrentVersion: b.version}
		}
		for _, record := range b.records {
			if record.DeviceID != deviceID {
				return "", interfaces.ErrDuplicateAuthID
			}
		}
	}

	// commit phase
	newVersion := interfaces.NewResourceVersion()
	for authID := range touched {
		b := p.buckets[authID]
		b.records = withoutDevice(b.records, deviceID)
		b.version = newVersion
	}
	for _, key := range order {
		b := p.buckets[key.authID]
		if b == nil {
			b = &bucket{}
			p.buckets[key.authID] = b
		}
		b.records = append(b.records, groups[key])
		b.version = newVersion
	}
	for authID, b := range p.buckets {
		if len(b.records) == 0 {
			delete(p.buckets, authID)
		}
	}

	s.dirty.Store(true)
	s.log.Debug("replaced credentials for device",
		slog.String("tenant_id", tenantID),
		slog.String("device_id", deviceID),
		slog.Int("records", len(order)))
	return newVersion, nil
}

// Get returns every secret registered for a device across all of its
// credential records, together with a resource version that changes whenever
// any of the underlying buckets changes. Returns interfaces.ErrNotFound if
// the device has no credentials.
func (s *Store) Get(ctx context.Context, tenantID, deviceID string) ([]interfaces.Secret, string, error) {
	p := s.partitionFor(tenantID, false)
	if p == nil {
		return nil, "", interfaces.ErrNotFound
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var secrets []interfaces.Secret
	var versions []string
	for _, authID := range sortedKeys(p.buckets) {
		b := p.buckets[authID]
		matched := false
		for _, record := range b.records {
			if record.DeviceID != deviceID {
				continue
			}
			matched = true
			for _, secret := range record.Secrets {
				clone := secret.Clone()
				clone.Common().AuthID = record.AuthID
				secrets = append(secrets, clone)
			}
		}
		if matched {
			versions = append(versions, authID+":"+b.version)
		}
	}
	if len(versions) == 0 {
		return nil, "", interfaces.ErrNotFound
	}
	return secrets, combineVersions(versions), nil
}

// Remove deletes all credentials of a device. Possible errors:
// interfaces.ErrNotFound (nothing to remove), interfaces.ErrReadOnly and
// *interfaces.VersionMismatchError. On error no mutation has happened.
func (s *Store) Remove(ctx context.Context, tenantID, deviceID, expectedVersion string) error {
	p := s.partitionFor(tenantID, false)
	if p == nil {
		return interfaces.ErrNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	touched := map[string]bool{}
	for authID, b := range p.buckets {
		if !holdsDevice(b, deviceID) {
			continue
		}
		if !versionMatch(expectedVersion, b.version) {
			return &interfaces.VersionMismatchError{CurrentVersion: b.version}
		}
		touched[authID] = true
	}
	if len(touched) == 0 {
		return interfaces.ErrNotFound
	}
	if !s.cfg.ModificationEnabled {
		return interfaces.ErrReadOnly
	}

	newVersion := interfaces.NewResourceVersion()
	for authID := range touched {
		b := p.buckets[authID]
		b.records = withoutDevice(b.records, deviceID)
		if len(b.records) == 0 {
			delete(p.buckets, authID)
		} else {
			b.version = newVersion
		}
	}

	s.dirty.Store(true)
	s.log.Debug("removed credentials for device",
		slog.String("tenant_id", tenantID),
		slog.String("device_id", deviceID))
	return nil
}

// Lookup is the adapter-facing read path: it returns the first credential
// record of the given type registered under the auth-id, filtered to enabled
// secrets. If a client context is given, each of its keys must match an
// equal-named field on the record. Returns interfaces.ErrNotFound when
// nothing matches.
//
// The cache directive is max-age for hashed-password and X.509 credentials
// (if a cache max age is configured) and no-cache otherwise.
func (s *Store) Lookup(ctx context.Context, tenantID, credType, authID string, clientContext map[string]any) (*interfaces.CredentialRecord, interfaces.CacheDirective, error) {
	noCache := interfaces.NoCacheDirective()

	p := s.partitionFor(tenantID, false)
	if p == nil {
		return nil, noCache, interfaces.ErrNotFound
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	b := p.buckets[authID]
	if b == nil {
		return nil, noCache, interfaces.ErrNotFound
	}

	for _, record := range b.records {
		if record.Type != credType {
			continue
		}
		if !matchesClientContext(record, clientContext) {
			continue
		}
		// first matching record wins
		return record.EnabledSecrets(), s.cacheDirective(credType), nil
	}
	return nil, noCache, interfaces.ErrNotFound
}

func (s *Store) cacheDirective(credType string) interfaces.CacheDirective {
	if s.cfg.CacheMaxAge > 0 {
		switch credType {
		case interfaces.TypeHashedPassword, interfaces.TypeX509Cert:
			return interfaces.MaxAgeDirective(s.cfg.CacheMaxAge)
		}
	}
	return interfaces.NoCacheDirective()
}

// Clear drops all credentials from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = map[string]*partition{}
	s.dirty.Store(true)
}

type groupKey struct {
	credType string
	authID   string
}

// groupSecrets buckets secrets into one credential record per (type, auth-id)
// pair, preserving first-seen order.
func groupSecrets(deviceID string, secrets []interfaces.Secret) (map[groupKey]*interfaces.CredentialRecord, []groupKey) {
	groups := map[groupKey]*interfaces.CredentialRecord{}
	var order []groupKey
	for _, secret := range secrets {
		key := groupKey{credType: secret.Type(), authID: secret.Common().AuthID}
		record := groups[key]
		if record == nil {
			record = &interfaces.CredentialRecord{
				AuthID:   key.authID,
				DeviceID: deviceID,
				Type:     key.credType,
			}
			groups[key] = record
			order = append(order, key)
		}
		clone := secret.Clone()
		clone.Common().AuthID = ""
		record.Secrets = append(record.Secrets, clone)
	}
	return groups, order
}

func holdsDevice(b *bucket, deviceID string) bool {
	for _, record := range b.records {
		if record.DeviceID == deviceID {
			return true
		}
	}
	return false
}

func withoutDevice(records []*interfaces.CredentialRecord, deviceID string) []*interfaces.CredentialRecord {
	out := records[:0]
	for _, record := range records {
		if record.DeviceID != deviceID {
			out = append(out, record)
		}
	}
	return out
}

// matchesClientContext checks that every context key names a field present on
// the record's JSON representation with an equal value.
func matchesClientContext(record *interfaces.CredentialRecord, clientContext map[string]any) bool {
	if len(clientContext) == 0 {
		return true
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	for key, want := range clientContext {
		got, ok := fields[key]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// combineVersions derives a single opaque version from the versions of all
// buckets contributing to a read. It changes whenever any constituent bucket
// changes.
func combineVersions(versions []string) string {
	sort.Strings(versions)
	h := sha256.New()
	for _, v := range versions {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
