package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/edgehive/device-registry/interfaces"
)

// Factory creates persistent stores from location URI strings and assembles
// multi-backend configurations for redundant storage.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a new factory instance.
func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// StoreFor creates a persistent store from a location URI.
//
// Supported schemes:
//   - file:///path/to/snapshot.json - local filesystem
//   - s3://[accessKey:secretKey@]bucket/key[?region=...&endpoint=...] -
//     Amazon S3 or compatible object storage
//   - vault://host[:port]/mount/path[?token=...] - HashiCorp Vault KV v2
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (f *Factory) StoreFor(locationURI string) (interfaces.PersistentStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid storage location URI: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return NewFileStore(u.Path, f.log)
	case "s3":
		return f.createS3Store(u)
	case "vault":
		return f.createVaultStore(u)
	default:
		return nil, fmt.Errorf("unsupported storage scheme: %s", u.Scheme)
	}
}

// MultiStoreFor creates a replicating store across all given location URIs.
// A single URI yields the plain backend without the replication wrapper.
func (f *Factory) MultiStoreFor(locationURIs []string) (interfaces.PersistentStore, error) {
	if len(locationURIs) == 0 {
		return nil, fmt.Errorf("no storage locations configured")
	}
	backends := make([]interfaces.PersistentStore, 0, len(locationURIs))
	for _, uri := range locationURIs {
		backend, err := f.StoreFor(uri)
		if err != nil {
			return nil, err
		}
		backends = append(backends, backend)
	}
	if len(backends) == 1 {
		return backends[0], nil
	}
	return NewMultiStore(backends, f.log), nil
}

func (f *Factory) createS3Store(u *url.URL) (interfaces.PersistentStore, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("s3 URI requires a bucket name")
	}
	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}
	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	return NewS3Store(u.Host, u.Path, region, query.Get("endpoint"), accessKey, secretKey, f.log)
}

func (f *Factory) createVaultStore(u *url.URL) (interfaces.PersistentStore, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("vault URI requires a host")
	}
	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("vault URI requires a /mount/path suffix")
	}
	address := fmt.Sprintf("https://%s", u.Host)
	return NewVaultStore(address, parts[0], parts[1], u.Query().Get("token"), f.log)
}
