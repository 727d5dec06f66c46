// Package tenants implements the registry's tenant store.
//
// A tenant is the unit of isolation: devices and credentials always live
// within exactly one tenant, and the tenant record configures the protocol
// adapters and the trusted CA for certificate based device authentication.
//
// The store keeps all tenants in memory behind a single lock (the tenant
// population is small and changes rarely) and persists them as a JSON
// snapshot through the shared periodic saver.
package tenants
