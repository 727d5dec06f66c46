// Package devices implements the registry's device store.
//
// Devices are registration records keyed by tenant and device identifier:
// the enabled flag, the set of gateways allowed to act for the device, default
// telemetry properties and extension fields. Each record carries an opaque
// resource version used for optimistic concurrency on updates and removals.
//
// The store follows the same layout as the credential store: all data in
// memory under per-tenant partition locks, persisted as a JSON snapshot by a
// periodic background save.
//
// Besides management CRUD the store serves the protocol-facing read paths: it
// is the device lookup used for registration assertions and the sink for
// last-via updates recording which gateway a device most recently used.
package devices
