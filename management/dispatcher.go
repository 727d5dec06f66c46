package management

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/edgehive/device-registry/credentials"
	"github.com/edgehive/device-registry/devices"
	"github.com/edgehive/device-registry/interfaces"
	"github.com/edgehive/device-registry/registration"
	"github.com/edgehive/device-registry/tenants"
)

// CustomHandler handles operations outside the dispatcher's closed set.
type CustomHandler func(ctx context.Context, req *Request) *Response

// Dispatcher routes registry operations to the stores and the assertion
// engine.
type Dispatcher struct {
	credentials *credentials.Store
	devices     *devices.Store
	tenants     *tenants.Store
	assertions  *registration.Engine
	custom      CustomHandler
	log         *slog.Logger
}

// NewDispatcher creates a dispatcher over the given components. The custom
// handler may be nil, in which case unknown operations yield bad-request.
func NewDispatcher(credentialStore *credentials.Store, deviceStore *devices.Store, tenantStore *tenants.Store, assertions *registration.Engine, custom CustomHandler, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		credentials: credentialStore,
		devices:     deviceStore,
		tenants:     tenantStore,
		assertions:  assertions,
		custom:      custom,
		log:         log,
	}
}

// Dispatch validates the request's shape and runs the operation. Shape errors
// are rejected before any store is consulted, so a bad request never has
// partial side effects.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	if req.TenantID == "" {
		return badRequest("missing tenant id")
	}

	switch req.Operation {
	case OpCredentialsSet:
		return d.credentialsSet(ctx, req)
	case OpCredentialsGet:
		return d.credentialsGet(ctx, req)
	case OpCredentialsRemove:
		return d.credentialsRemove(ctx, req)
	case OpCredentialsLookup:
		return d.credentialsLookup(ctx, req)
	case OpRegistrationAssert:
		return d.registrationAssert(ctx, req)
	case OpDeviceCreate, OpDeviceGet, OpDeviceUpdate, OpDeviceDelete:
		return d.deviceOperation(ctx, req)
	case OpTenantAdd, OpTenantGet, OpTenantUpdate, OpTenantRemove:
		return d.tenantOperation(ctx, req)
	default:
		if d.custom != nil {
			if resp := d.custom(ctx, req); resp != nil {
				return resp
			}
		}
		d.log.Debug("rejecting unsupported operation", slog.String("operation", req.Operation))
		return badRequest("unsupported operation")
	}
}

func (d *Dispatcher) credentialsSet(ctx context.Context, req *Request) *Response {
	if req.DeviceID == "" {
		return badRequest("missing device id")
	}
	if len(req.Payload) == 0 {
		return badRequest("missing secrets payload")
	}
	secrets, err := interfaces.DecodeSecrets(req.Payload)
	if err != nil {
		return badRequest(err.Error())
	}
	applySecretDefaults(secrets)

	version, err := d.credentials.Set(ctx, req.TenantID, req.DeviceID, req.ResourceVersion, secrets)
	if err != nil {
		return failure(err)
	}
	return noContent(version)
}

func (d *Dispatcher) credentialsGet(ctx context.Context, req *Request) *Response {
	if req.DeviceID == "" {
		return badRequest("missing device id")
	}
	secrets, version, err := d.credentials.Get(ctx, req.TenantID, req.DeviceID)
	if err != nil {
		return failure(err)
	}
	return ok(secrets, version)
}

func (d *Dispatcher) credentialsRemove(ctx context.Context, req *Request) *Response {
	if req.DeviceID == "" {
		return badRequest("missing device id")
	}
	if err := d.credentials.Remove(ctx, req.TenantID, req.DeviceID, req.ResourceVersion); err != nil {
		return failure(err)
	}
	return noContent("")
}

func (d *Dispatcher) credentialsLookup(ctx context.Context, req *Request) *Response {
	if req.CredType == "" || req.AuthID == "" {
		return badRequest("missing credential type or auth id")
	}
	record, cache, err := d.credentials.Lookup(ctx, req.TenantID, req.CredType, req.AuthID, req.ClientContext)
	if err != nil {
		return failure(err)
	}
	resp := ok(record, "")
	resp.CacheDirective = &cache
	return resp
}

func (d *Dispatcher) registrationAssert(ctx context.Context, req *Request) *Response {
	if req.DeviceID == "" {
		return badRequest("missing device id")
	}
	assertion, cache, err := d.assertions.Assert(ctx, req.TenantID, req.DeviceID, req.GatewayID)
	if err != nil {
		return failure(err)
	}
	resp := ok(assertion, "")
	resp.CacheDirective = &cache
	return resp
}

func (d *Dispatcher) deviceOperation(ctx context.Context, req *Request) *Response {
	if req.DeviceID == "" {
		return badRequest("missing device id")
	}

	switch req.Operation {
	case OpDeviceGet:
		device, version, err := d.devices.Get(ctx, req.TenantID, req.DeviceID)
		if err != nil {
			return failure(err)
		}
		return ok(device, version)
	case OpDeviceDelete:
		if err := d.devices.Remove(ctx, req.TenantID, req.DeviceID, req.ResourceVersion); err != nil {
			return failure(err)
		}
		return noContent("")
	}

	device, resp := decodeDevice(req.Payload)
	if resp != nil {
		return resp
	}
	switch req.Operation {
	case OpDeviceCreate:
		version, err := d.devices.Create(ctx, req.TenantID, req.DeviceID, device)
		if err != nil {
			return failure(err)
		}
		return created(version)
	default: // OpDeviceUpdate
		version, err := d.devices.Update(ctx, req.TenantID, req.DeviceID, req.ResourceVersion, device)
		if err != nil {
			return failure(err)
		}
		return noContent(version)
	}
}

func (d *Dispatcher) tenantOperation(ctx context.Context, req *Request) *Response {
	switch req.Operation {
	case OpTenantGet:
		tenant, version, err := d.tenants.Get(ctx, req.TenantID)
		if err != nil {
			return failure(err)
		}
		return ok(tenant, version)
	case OpTenantRemove:
		if err := d.tenants.Remove(ctx, req.TenantID, req.ResourceVersion); err != nil {
			return failure(err)
		}
		return noContent("")
	}

	tenant, resp := decodeTenant(req.Payload)
	if resp != nil {
		return resp
	}
	switch req.Operation {
	case OpTenantAdd:
		version, err := d.tenants.Add(ctx, req.TenantID, tenant)
		if err != nil {
			return failure(err)
		}
		return created(version)
	default: // OpTenantUpdate
		version, err := d.tenants.Update(ctx, req.TenantID, req.ResourceVersion, tenant)
		if err != nil {
			return failure(err)
		}
		return noContent(version)
	}
}

// applySecretDefaults injects server-side defaults after shape validation and
// before persistence, so stored records are always fully populated.
func applySecretDefaults(secrets []interfaces.Secret) {
	for _, secret := range secrets {
		common := secret.Common()
		if common.Enabled == nil {
			enabled := true
			common.Enabled = &enabled
		}
	}
}

func decodeDevice(payload []byte) (*interfaces.Device, *Response) {
	if len(payload) == 0 {
		return nil, badRequest("missing device payload")
	}
	device := &interfaces.Device{}
	if err := json.Unmarshal(payload, device); err != nil {
		return nil, badRequest("malformed device payload")
	}
	if device.Enabled == nil {
		enabled := true
		device.Enabled = &enabled
	}
	return device, nil
}

func decodeTenant(payload []byte) (*interfaces.Tenant, *Response) {
	if len(payload) == 0 {
		return nil, badRequest("missing tenant payload")
	}
	tenant := &interfaces.Tenant{}
	if err := json.Unmarshal(payload, tenant); err != nil {
		return nil, badRequest("malformed tenant payload")
	}
	if tenant.Enabled == nil {
		enabled := true
		tenant.Enabled = &enabled
	}
	return tenant, nil
}
