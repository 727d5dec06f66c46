package interfaces

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Credential type discriminators understood by the registry. Any other value
// is treated as a generic credential type.
const (
	TypeHashedPassword = "hashed-password"
	TypePresharedKey   = "psk"
	TypeX509Cert       = "x509-cert"
)

// Hash function identifiers for hashed-password secrets.
const (
	HashFunctionBCrypt = "bcrypt"
	HashFunctionSHA256 = "sha-256"
	HashFunctionSHA512 = "sha-512"
)

// NewResourceVersion returns a fresh opaque resource version. Versions are
// only ever compared for equality.
func NewResourceVersion() string {
	return uuid.New().String()
}

// CacheDirective tells a caller how long a read result may be reused without
// re-querying the registry.
type CacheDirective struct {
	NoCache bool
	MaxAge  time.Duration
}

// NoCacheDirective returns a directive that forbids caching.
func NoCacheDirective() CacheDirective {
	return CacheDirective{NoCache: true}
}

// MaxAgeDirective returns a directive allowing results to be cached for the
// given duration.
func MaxAgeDirective(maxAge time.Duration) CacheDirective {
	return CacheDirective{MaxAge: maxAge}
}

// String renders the directive in Cache-Control header syntax.
func (d CacheDirective) String() string {
	if d.NoCache {
		return "no-cache"
	}
	return fmt.Sprintf("max-age=%d", int64(d.MaxAge.Seconds()))
}

// ViaList is the set of gateway identifiers authorized to act on behalf of a
// device. On the wire it may be encoded either as a single string or as a
// list of strings.
type ViaList []string

// UnmarshalJSON accepts both the lone-string and the list encoding.
func (v *ViaList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*v = nil
		} else {
			*v = ViaList{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("via must be a string or a list of strings")
	}
	*v = ViaList(list)
	return nil
}

// Contains reports whether the list contains the given gateway identifier.
func (v ViaList) Contains(gatewayID string) bool {
	for _, id := range v {
		if id == gatewayID {
			return true
		}
	}
	return false
}

// LastVia records the gateway (or the device itself) through which a device
// most recently connected. It is used to route downstream commands and is an
// optimization, not a correctness requirement.
type LastVia struct {
	DeviceID   string    `json:"device-id"`
	LastUpdate time.Time `json:"last-update"`
}

// Device holds a device's registration information within a tenant.
type Device struct {
	Enabled  *bool          `json:"enabled,omitempty"`
	Via      ViaList        `json:"via,omitempty"`
	Defaults map[string]any `json:"defaults,omitempty"`
	Ext      map[string]any `json:"ext,omitempty"`
	LastVia  *LastVia       `json:"last-via,omitempty"`
}

// IsEnabled reports whether the device is enabled. A device with no explicit
// enabled flag is enabled.
func (d *Device) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// IsGatewayCapable reports whether at least one gateway may act on behalf of
// the device.
func (d *Device) IsGatewayCapable() bool {
	return len(d.Via) > 0
}

// Clone returns a deep copy of the device.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	out := &Device{}
	if d.Enabled != nil {
		enabled := *d.Enabled
		out.Enabled = &enabled
	}
	if d.Via != nil {
		out.Via = append(ViaList(nil), d.Via...)
	}
	out.Defaults = cloneMap(d.Defaults)
	out.Ext = cloneMap(d.Ext)
	if d.LastVia != nil {
		lastVia := *d.LastVia
		out.LastVia = &lastVia
	}
	return out
}

// Adapter describes per-tenant protocol adapter configuration.
type Adapter struct {
	Type               string `json:"type"`
	Enabled            *bool  `json:"enabled,omitempty"`
	DeviceAuthRequired *bool  `json:"device-authentication-required,omitempty"`
}

// TrustedCA describes the certificate authority a tenant trusts for
// authenticating devices with client certificates. Exactly one of Cert and
// PublicKey must be set; both carry base64 encoded DER.
type TrustedCA struct {
	SubjectDN string `json:"subject-dn"`
	Cert      string `json:"cert,omitempty"`
	PublicKey string `json:"public-key,omitempty"`
	// KeyAlgorithm names the public key algorithm; defaults to RSA.
	KeyAlgorithm string `json:"algorithm,omitempty"`
}

// Tenant holds a tenant's configuration.
type Tenant struct {
	Enabled   *bool          `json:"enabled,omitempty"`
	Adapters  []Adapter      `json:"adapters,omitempty"`
	TrustedCA *TrustedCA     `json:"trusted-ca,omitempty"`
	Limits    map[string]any `json:"limits,omitempty"`
	Ext       map[string]any `json:"ext,omitempty"`
}

// Clone returns a deep copy of the tenant.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	out := &Tenant{}
	if t.Enabled != nil {
		enabled := *t.Enabled
		out.Enabled = &enabled
	}
	for _, a := range t.Adapters {
		adapter := a
		if a.Enabled != nil {
			enabled := *a.Enabled
			adapter.Enabled = &enabled
		}
		if a.DeviceAuthRequired != nil {
			required := *a.DeviceAuthRequired
			adapter.DeviceAuthRequired = &required
		}
		out.Adapters = append(out.Adapters, adapter)
	}
	if t.TrustedCA != nil {
		ca := *t.TrustedCA
		out.TrustedCA = &ca
	}
	out.Limits = cloneMap(t.Limits)
	out.Ext = cloneMap(t.Ext)
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
