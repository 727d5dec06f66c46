// Package registration implements the assert-registration operation used by
// protocol adapters to decide whether a device, or a gateway acting on its
// behalf, may publish data.
//
// An assertion succeeds for an enabled device connecting directly, or for an
// enabled gateway listed in the device's via set. Devices and gateways that
// are unknown or disabled are indistinguishable to the caller, both yield
// not-found, so a gateway cannot probe which device identifiers exist.
package registration
