// Package validation checks credential secrets and tenant payloads before
// they reach a store.
//
// Secret validation is type-aware: hashed-password secrets must name a
// recognized hash function and carry a password hash, and bcrypt hashes must
// not encode a cost factor above the configured maximum. Unknown secret types
// only need their type discriminator; they are a deliberate extension point.
//
// Tenant validation enforces the adapter-configuration shape and the
// trusted-CA invariant: a mandatory subject distinguished name plus exactly
// one of a base64 DER certificate or a base64 DER public key.
package validation
