package interfaces

import (
	"encoding/json"
	"fmt"
	"time"
)

// CommonSecret carries the fields shared by all secret variants. The auth-id
// and the type discriminator identify the credential record a secret belongs
// to; grouping by (type, auth-id) happens in the credential store.
type CommonSecret struct {
	AuthID    string     `json:"auth-id,omitempty"`
	Enabled   *bool      `json:"enabled,omitempty"`
	NotBefore *time.Time `json:"not-before,omitempty"`
	NotAfter  *time.Time `json:"not-after,omitempty"`
	Comment   string     `json:"comment,omitempty"`
}

// Common returns the shared secret fields.
func (s *CommonSecret) Common() *CommonSecret { return s }

// IsEnabled reports whether the secret is enabled. A secret with no explicit
// enabled flag is enabled.
func (s *CommonSecret) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// InValidityPeriod reports whether the given instant falls into the secret's
// not-before/not-after window.
func (s *CommonSecret) InValidityPeriod(now time.Time) bool {
	if s.NotBefore != nil && now.Before(*s.NotBefore) {
		return false
	}
	if s.NotAfter != nil && now.After(*s.NotAfter) {
		return false
	}
	return true
}

// Secret is one entry of a credential record. Concrete variants are
// PasswordSecret, PSKSecret, X509Secret and GenericSecret.
type Secret interface {
	Common() *CommonSecret
	Type() string
	Clone() Secret
}

// PasswordSecret holds a salted password hash.
type PasswordSecret struct {
	CommonSecret
	HashFunction string `json:"hash-function,omitempty"`
	PasswordHash string `json:"pwd-hash,omitempty"`
	Salt         string `json:"salt,omitempty"`
}

func (s *PasswordSecret) Type() string { return TypeHashedPassword }

func (s *PasswordSecret) Clone() Secret {
	out := *s
	out.CommonSecret = *cloneCommon(&s.CommonSecret)
	return &out
}

func (s *PasswordSecret) MarshalJSON() ([]byte, error) {
	type alias PasswordSecret
	return marshalWithType((*alias)(s), s.Type())
}

// PSKSecret holds a pre-shared key.
type PSKSecret struct {
	CommonSecret
	Key []byte `json:"key,omitempty"`
}

func (s *PSKSecret) Type() string { return TypePresharedKey }

func (s *PSKSecret) Clone() Secret {
	out := *s
	out.CommonSecret = *cloneCommon(&s.CommonSecret)
	out.Key = append([]byte(nil), s.Key...)
	return &out
}

func (s *PSKSecret) MarshalJSON() ([]byte, error) {
	type alias PSKSecret
	return marshalWithType((*alias)(s), s.Type())
}

// X509Secret asserts that a device authenticates with a client certificate
// issued by the tenant's trusted CA. It carries no secret material of its own.
type X509Secret struct {
	CommonSecret
}

func (s *X509Secret) Type() string { return TypeX509Cert }

func (s *X509Secret) Clone() Secret {
	out := *s
	out.CommonSecret = *cloneCommon(&s.CommonSecret)
	return &out
}

func (s *X509Secret) MarshalJSON() ([]byte, error) {
	type alias X509Secret
	return marshalWithType((*alias)(s), s.Type())
}

// GenericSecret represents a secret of a type the registry has no dedicated
// model for. All fields beyond the common ones are kept opaque so unknown
// credential types round-trip unchanged.
type GenericSecret struct {
	CommonSecret
	SecretType string
	Ext        map[string]any
}

func (s *GenericSecret) Type() string { return s.SecretType }

func (s *GenericSecret) Clone() Secret {
	out := *s
	out.CommonSecret = *cloneCommon(&s.CommonSecret)
	out.Ext = cloneMap(s.Ext)
	return &out
}

// commonSecretFields are the JSON keys owned by CommonSecret plus the type
// discriminator. Everything else on a generic secret goes into Ext.
var commonSecretFields = map[string]bool{
	"type": true, "auth-id": true, "enabled": true,
	"not-before": true, "not-after": true, "comment": true,
}

func (s *GenericSecret) MarshalJSON() ([]byte, error) {
	raw, err := marshalWithType(&s.CommonSecret, s.SecretType)
	if err != nil {
		return nil, err
	}
	if len(s.Ext) == 0 {
		return raw, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range s.Ext {
		if !commonSecretFields[k] {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

func (s *GenericSecret) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &s.CommonSecret); err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if t, ok := fields["type"].(string); ok {
		s.SecretType = t
	}
	for k := range fields {
		if commonSecretFields[k] {
			continue
		}
		if s.Ext == nil {
			s.Ext = map[string]any{}
		}
		s.Ext[k] = fields[k]
	}
	return nil
}

// DecodeSecret decodes a single secret object, dispatching on its "type"
// field. Unknown types decode into a GenericSecret rather than failing.
func DecodeSecret(data []byte) (Secret, error) {
	var discriminator struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &discriminator); err != nil {
		return nil, fmt.Errorf("malformed secret: %w", err)
	}
	return DecodeSecretOfType(discriminator.Type, data)
}

// DecodeSecretOfType decodes a secret object whose type is already known,
// e.g. because it is stored inside a typed credential record.
func DecodeSecretOfType(secretType string, data []byte) (Secret, error) {
	if secretType == "" {
		return nil, &ValidationError{Detail: "'type' field must be set"}
	}
	var secret Secret
	switch secretType {
	case TypeHashedPassword:
		secret = &PasswordSecret{}
	case TypePresharedKey:
		secret = &PSKSecret{}
	case TypeX509Cert:
		secret = &X509Secret{}
	default:
		secret = &GenericSecret{SecretType: secretType}
	}
	if err := json.Unmarshal(data, secret); err != nil {
		return nil, fmt.Errorf("malformed %s secret: %w", secretType, err)
	}
	return secret, nil
}

// DecodeSecrets decodes a JSON array of secret objects.
func DecodeSecrets(data []byte) ([]Secret, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed secrets array: %w", err)
	}
	secrets := make([]Secret, 0, len(raw))
	for _, entry := range raw {
		secret, err := DecodeSecret(entry)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, secret)
	}
	return secrets, nil
}

func marshalWithType(v any, secretType string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["type"] = secretType
	return json.Marshal(fields)
}

func cloneCommon(c *CommonSecret) *CommonSecret {
	out := *c
	if c.Enabled != nil {
		enabled := *c.Enabled
		out.Enabled = &enabled
	}
	if c.NotBefore != nil {
		notBefore := *c.NotBefore
		out.NotBefore = &notBefore
	}
	if c.NotAfter != nil {
		notAfter := *c.NotAfter
		out.NotAfter = &notAfter
	}
	return &out
}

// CredentialRecord groups the secrets of one (type, auth-id) pair and names
// the device they authenticate.
type CredentialRecord struct {
	AuthID   string   `json:"auth-id"`
	DeviceID string   `json:"device-id"`
	Type     string   `json:"type"`
	Secrets  []Secret `json:"secrets"`
}

// Clone returns a deep copy of the record.
func (r *CredentialRecord) Clone() *CredentialRecord {
	out := &CredentialRecord{AuthID: r.AuthID, DeviceID: r.DeviceID, Type: r.Type}
	for _, s := range r.Secrets {
		out.Secrets = append(out.Secrets, s.Clone())
	}
	return out
}

// EnabledSecrets returns a copy of the record containing only its enabled
// secrets. This is the view handed out on the adapter-facing lookup path.
func (r *CredentialRecord) EnabledSecrets() *CredentialRecord {
	out := &CredentialRecord{AuthID: r.AuthID, DeviceID: r.DeviceID, Type: r.Type}
	for _, s := range r.Secrets {
		if s.Common().IsEnabled() {
			out.Secrets = append(out.Secrets, s.Clone())
		}
	}
	return out
}

// UnmarshalJSON decodes the record, resolving each secret against the
// record's type discriminator. Secrets carrying their own "type" field are
// accepted as long as the record type takes precedence.
func (r *CredentialRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		AuthID   string            `json:"auth-id"`
		DeviceID string            `json:"device-id"`
		Type     string            `json:"type"`
		Secrets  []json.RawMessage `json:"secrets"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("malformed credential record: %w", err)
	}
	r.AuthID = aux.AuthID
	r.DeviceID = aux.DeviceID
	r.Type = aux.Type
	r.Secrets = nil
	for _, raw := range aux.Secrets {
		secret, err := DecodeSecretOfType(aux.Type, raw)
		if err != nil {
			return err
		}
		r.Secrets = append(r.Secrets, secret)
	}
	return nil
}
