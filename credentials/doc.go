// Package credentials implements the registry's credential store.
//
// The store keeps all data in memory in a tenant -> auth-id -> versioned
// record list structure and is backed by a persistent snapshot: on startup it
// loads the previously saved snapshot (a JSON array of per-tenant objects),
// and a periodic background task saves the snapshot whenever the store is
// dirty.
//
// All mutations to a tenant's credentials are serialized on a per-tenant
// partition lock; operations on different tenants run fully in parallel.
// Reads work on deep copies so a read racing a write observes either the
// pre- or the post-write state, never a partially mutated record.
//
// Every auth-id bucket carries an opaque resource version that changes on
// every successful write. Writes supplying an expected version are rejected
// on mismatch without any partial mutation; writes supplying no version
// overwrite unconditionally.
package credentials
