package registration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edgehive/device-registry/interfaces"
)

// Config holds the assertion engine's settings.
type Config struct {
	// AssertionMaxAge bounds how long adapters may cache a successful
	// assertion for a device without gateway support. Zero disables caching.
	AssertionMaxAge time.Duration
}

// Assertion is the payload returned for a successful registration assertion.
type Assertion struct {
	DeviceID string             `json:"device-id"`
	Via      interfaces.ViaList `json:"via,omitempty"`
	Defaults map[string]any     `json:"defaults,omitempty"`
}

// Engine evaluates registration assertions against the device store.
type Engine struct {
	devices interfaces.DeviceLookup
	lastVia interfaces.LastViaUpdater
	cfg     Config
	log     *slog.Logger
}

// NewEngine creates an assertion engine. The last-via updater may be nil if
// gateway connection tracking is not wanted.
func NewEngine(devices interfaces.DeviceLookup, lastVia interfaces.LastViaUpdater, cfg Config, log *slog.Logger) *Engine {
	return &Engine{
		devices: devices,
		lastVia: lastVia,
		cfg:     cfg,
		log:     log,
	}
}

// Assert checks whether deviceID may publish data, either directly (empty
// gatewayID) or through the given gateway. It returns the assertion payload
// and a cache directive on success.
//
// Unknown and disabled devices or gateways both yield interfaces.ErrNotFound.
// A known, enabled gateway that is not in the device's via set yields
// interfaces.ErrNotAuthorized.
func (e *Engine) Assert(ctx context.Context, tenantID, deviceID, gatewayID string) (*Assertion, interfaces.CacheDirective, error) {
	if gatewayID == "" {
		return e.assertDirect(ctx, tenantID, deviceID)
	}
	return e.assertViaGateway(ctx, tenantID, deviceID, gatewayID)
}

func (e *Engine) assertDirect(ctx context.Context, tenantID, deviceID string) (*Assertion, interfaces.CacheDirective, error) {
	device, err := e.devices.GetDevice(ctx, tenantID, deviceID)
	if err != nil {
		return nil, interfaces.NoCacheDirective(), err
	}
	if !device.IsEnabled() {
		return nil, interfaces.NoCacheDirective(), interfaces.ErrNotFound
	}
	if device.IsGatewayCapable() {
		// a direct connection counts as the device acting as its own gateway
		e.trackLastVia(ctx, tenantID, deviceID, deviceID)
	}
	return e.assertion(deviceID, device), e.cacheDirective(device), nil
}

func (e *Engine) assertViaGateway(ctx context.Context, tenantID, deviceID, gatewayID string) (*Assertion, interfaces.CacheDirective, error) {
	noCache := interfaces.NoCacheDirective()

	// both records are needed, fetch them concurrently
	type lookup struct {
		device *interfaces.Device
		err    error
	}
	gatewayCh := make(chan lookup, 1)
	go func() {
		gateway, err := e.devices.GetDevice(ctx, tenantID, gatewayID)
		gatewayCh <- lookup{device: gateway, err: err}
	}()
	device, deviceErr := e.devices.GetDevice(ctx, tenantID, deviceID)
	gatewayResult := <-gatewayCh

	if deviceErr != nil {
		return nil, noCache, deviceErr
	}
	if gatewayResult.err != nil {
		return nil, noCache, gatewayResult.err
	}
	if !device.IsEnabled() || !gatewayResult.device.IsEnabled() {
		// a disabled gateway is reported exactly like an unknown one
		return nil, noCache, interfaces.ErrNotFound
	}
	if !device.Via.Contains(gatewayID) {
		e.log.Debug("gateway not authorized for device",
			slog.String("tenant_id", tenantID),
			slog.String("device_id", deviceID),
			slog.String("gateway_id", gatewayID))
		return nil, noCache, interfaces.ErrNotAuthorized
	}

	e.trackLastVia(ctx, tenantID, deviceID, gatewayID)

	return e.assertion(deviceID, device), noCache, nil
}

// trackLastVia records the gateway a device connected through. This is best
// effort, a failure must not turn a valid assertion into an error.
func (e *Engine) trackLastVia(ctx context.Context, tenantID, deviceID, gatewayID string) {
	if e.lastVia == nil {
		return
	}
	if err := e.lastVia.UpdateLastVia(ctx, tenantID, deviceID, gatewayID); err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		e.log.Warn("could not update last-via gateway for device",
			slog.String("tenant_id", tenantID),
			slog.String("device_id", deviceID),
			slog.String("gateway_id", gatewayID),
			"err", err)
	}
}

func (e *Engine) assertion(deviceID string, device *interfaces.Device) *Assertion {
	return &Assertion{
		DeviceID: deviceID,
		Via:      device.Via,
		Defaults: device.Defaults,
	}
}

// cacheDirective bounds assertion caching: results for gateway-capable
// devices must not be cached because the via set can change at any time.
func (e *Engine) cacheDirective(device *interfaces.Device) interfaces.CacheDirective {
	if device.IsGatewayCapable() || e.cfg.AssertionMaxAge <= 0 {
		return interfaces.NoCacheDirective()
	}
	return interfaces.MaxAgeDirective(e.cfg.AssertionMaxAge)
}
