package interfaces

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the registry's error taxonomy. Components below the
// management dispatch layer only ever report these; the dispatch layer maps
// them to status codes.
var (
	// ErrNotFound indicates that a referenced tenant, device or credential
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an attempt to create a resource under an
	// identifier that is already taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrDuplicateAuthID indicates that an authentication identifier is
	// already bound to a different device within the tenant.
	ErrDuplicateAuthID = errors.New("auth-id already in use for another device")

	// ErrReadOnly indicates that modification of registry data is disabled.
	ErrReadOnly = errors.New("modification is disabled")

	// ErrNotAuthorized indicates that a gateway is not authorized to act on
	// behalf of a device.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotImplemented indicates an operation the backend does not support.
	ErrNotImplemented = errors.New("not implemented")

	// ErrAbsent is reported by a PersistentStore whose underlying location
	// holds no data yet.
	ErrAbsent = errors.New("no persisted data")
)

// ValidationError indicates a malformed or incomplete payload. It never
// accompanies a state mutation.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s", e.Detail)
}

// VersionMismatchError indicates an optimistic-lock failure. CurrentVersion
// carries the resource version actually stored so callers can retry.
type VersionMismatchError struct {
	CurrentVersion string
}

func (e *VersionMismatchError) Error() string {
	return "resource version mismatch"
}
