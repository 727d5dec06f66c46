package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/edgehive/device-registry/interfaces"
)

// VaultStore persists a snapshot in HashiCorp Vault's KV v2 secrets engine.
// The snapshot bytes are stored base64 encoded under a single key.
type VaultStore struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

const vaultSnapshotField = "snapshot"

// NewVaultStore creates a Vault-backed persistent store. Authentication uses
// the standard Vault environment (VAULT_TOKEN etc.) unless token is set.
func NewVaultStore(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultStore{
		client:    client,
		mountPath: strings.Trim(mountPath, "/"),
		dataPath:  strings.Trim(dataPath, "/"),
		log:       log,
	}, nil
}

func (s *VaultStore) secretPath() string {
	return fmt.Sprintf("%s/data/%s", s.mountPath, s.dataPath)
}

// Load reads the snapshot from Vault. A missing secret reports
// interfaces.ErrAbsent.
func (s *VaultStore) Load(ctx context.Context) ([]byte, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, s.secretPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrAbsent
	}

	// KV v2 nests the payload under "data"
	payload, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, interfaces.ErrAbsent
	}
	encoded, ok := payload[vaultSnapshotField].(string)
	if !ok {
		return nil, interfaces.ErrAbsent
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("malformed snapshot in Vault: %w", err)
	}
	s.log.Debug("loaded snapshot from Vault",
		slog.String("path", s.secretPath()),
		slog.Int("size", len(data)))
	return data, nil
}

// Save writes the snapshot to Vault, replacing any previous version.
func (s *VaultStore) Save(ctx context.Context, data []byte) error {
	_, err := s.client.Logical().WriteWithContext(ctx, s.secretPath(), map[string]any{
		"data": map[string]any{
			vaultSnapshotField: base64.StdEncoding.EncodeToString(data),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot to Vault: %w", err)
	}
	s.log.Debug("saved snapshot to Vault",
		slog.String("path", s.secretPath()),
		slog.Int("size", len(data)))
	return nil
}

// Name returns a unique identifier for this backend.
func (s *VaultStore) Name() string {
	return fmt.Sprintf("vault-%s", s.dataPath)
}
