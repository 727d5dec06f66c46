// Package interfaces defines the core types and collaborator contracts for the
// device registry. It provides the contract between the credential store, the
// registration engine, the validators and the management dispatch layer without
// implementation details.
//
// The package contains:
//
//   - The credential data model: CredentialRecord and the typed secret variants
//     (PasswordSecret, PSKSecret, X509Secret, GenericSecret) together with the
//     decode boundary that maps a "type" discriminator to a concrete variant.
//     Unknown types decode into GenericSecret so that forward-compatible
//     credential types round-trip through the registry unchanged.
//   - The tenant and device models, including the ViaList encoding that accepts
//     both a lone gateway identifier and a list of identifiers.
//   - CacheDirective, telling protocol adapters how long a read result may be
//     reused.
//   - The error taxonomy shared by all registry components. Components below
//     the management dispatch layer only ever return these errors; the dispatch
//     layer is the single place where they are translated to status codes.
//   - Collaborator interfaces consumed by the core: DeviceLookup,
//     LastViaUpdater, PersistentStore and Clock.
package interfaces
