package management

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edgehive/device-registry/interfaces"
)

// Registry operation names. The set is closed; anything else is handed to
// the dispatcher's custom-operation hook.
const (
	OpCredentialsSet    = "credentials.set"
	OpCredentialsGet    = "credentials.get"
	OpCredentialsRemove = "credentials.remove"
	OpCredentialsLookup = "credentials.lookup"

	// OpCredentialsVerify is not part of the closed set; it resolves through
	// the dispatcher's custom-operation hook when one is installed.
	OpCredentialsVerify = "credentials.verify"

	OpRegistrationAssert = "registration.assert"

	OpDeviceCreate = "device.create"
	OpDeviceGet    = "device.get"
	OpDeviceUpdate = "device.update"
	OpDeviceDelete = "device.delete"

	OpTenantAdd    = "tenant.add"
	OpTenantGet    = "tenant.get"
	OpTenantUpdate = "tenant.update"
	OpTenantRemove = "tenant.remove"
)

// Request is the transport-agnostic form of a registry operation.
type Request struct {
	// Operation names what to do, one of the Op constants.
	Operation string
	// TenantID is required for every operation.
	TenantID string
	// DeviceID identifies the device for credential, device and assertion
	// operations.
	DeviceID string
	// AuthID and CredType select the credential record for lookups.
	AuthID   string
	CredType string
	// GatewayID is the optional on-behalf-of gateway for assertions.
	GatewayID string
	// ResourceVersion is the optional expected version for mutations.
	ResourceVersion string
	// Payload carries the operation's JSON body, if any.
	Payload json.RawMessage
	// ClientContext is the optional credential lookup filter.
	ClientContext map[string]any
}

// Response is the uniform result envelope of a dispatched operation.
type Response struct {
	// Status is an HTTP-style status code.
	Status int
	// Payload is the operation's result body, nil for 204-style results.
	Payload any
	// ResourceVersion is the resource's (new) version, when applicable.
	ResourceVersion string
	// CacheDirective tells the caller how long the payload may be reused.
	// Only set on adapter-facing reads.
	CacheDirective *interfaces.CacheDirective
	// Detail is an optional human-readable error description.
	Detail string
}

func ok(payload any, version string) *Response {
	return &Response{Status: http.StatusOK, Payload: payload, ResourceVersion: version}
}

func created(version string) *Response {
	return &Response{Status: http.StatusCreated, ResourceVersion: version}
}

func noContent(version string) *Response {
	return &Response{Status: http.StatusNoContent, ResourceVersion: version}
}

func badRequest(detail string) *Response {
	return &Response{Status: http.StatusBadRequest, Detail: detail}
}

// failure converts a domain error into a response using the registry's error
// taxonomy. It is the only place errors become status codes.
func failure(err error) *Response {
	var validationErr *interfaces.ValidationError
	if errors.As(err, &validationErr) {
		return badRequest(validationErr.Detail)
	}
	var mismatch *interfaces.VersionMismatchError
	if errors.As(err, &mismatch) {
		return &Response{
			Status:          http.StatusPreconditionFailed,
			ResourceVersion: mismatch.CurrentVersion,
			Detail:          "resource version mismatch",
		}
	}

	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		return &Response{Status: http.StatusNotFound, Detail: "not found"}
	case errors.Is(err, interfaces.ErrAlreadyExists):
		return &Response{Status: http.StatusConflict, Detail: "already exists"}
	case errors.Is(err, interfaces.ErrDuplicateAuthID):
		return &Response{Status: http.StatusConflict, Detail: "auth-id already in use for another device"}
	case errors.Is(err, interfaces.ErrReadOnly):
		return &Response{Status: http.StatusForbidden, Detail: "modification is disabled"}
	case errors.Is(err, interfaces.ErrNotAuthorized):
		return &Response{Status: http.StatusForbidden, Detail: "not authorized"}
	case errors.Is(err, interfaces.ErrNotImplemented):
		return &Response{Status: http.StatusNotImplemented, Detail: "not implemented"}
	default:
		// never expose internal error details to callers
		return &Response{Status: http.StatusInternalServerError, Detail: "internal error"}
	}
}
