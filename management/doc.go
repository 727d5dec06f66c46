// Package management is the transport-agnostic operation router of the
// registry. It accepts typed requests (operation name, tenant, optional
// device or auth identifiers, optional resource version, raw JSON payload),
// validates their shape, delegates to the credential, device and tenant
// stores or the assertion engine, and maps every outcome onto a uniform
// response envelope with an HTTP-style status code.
//
// This is the single place where domain errors become status codes; the
// stores and the engine below it only ever return typed errors.
package management
