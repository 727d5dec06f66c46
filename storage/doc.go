// Package storage provides durable byte-oriented backends for registry store
// snapshots, implementing interfaces.PersistentStore.
//
// Backends are created from location URIs by the Factory:
//
//   - file:///var/lib/registry/credentials.json - local filesystem
//   - s3://bucket/path/credentials.json?region=eu-west-1 - Amazon S3 or
//     compatible object storage
//   - vault://vault.example.com:8200/secret/registry/credentials - HashiCorp
//     Vault KV v2
//
// MultiStore replicates snapshots across several backends and falls back on
// load so a registry survives the loss of a single storage location.
package storage
