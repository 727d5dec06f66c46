package validation

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/edgehive/device-registry/interfaces"
)

// DefaultKeyAlgorithm is assumed for a trusted-CA public key when the payload
// does not name one.
const DefaultKeyAlgorithm = "RSA"

// ValidateTenant checks a tenant payload against the tenant API invariants.
// It returns a *interfaces.ValidationError describing the first violation
// found, or nil.
func ValidateTenant(tenant *interfaces.Tenant) error {
	if tenant == nil {
		return &interfaces.ValidationError{Detail: "missing tenant payload"}
	}
	if err := validateAdapters(tenant.Adapters); err != nil {
		return err
	}
	if tenant.TrustedCA != nil {
		return validateTrustedCA(tenant.TrustedCA)
	}
	return nil
}

func validateAdapters(adapters []interfaces.Adapter) error {
	if adapters == nil {
		return nil
	}
	// if given, the adapters array must not be empty
	if len(adapters) == 0 {
		return &interfaces.ValidationError{Detail: "'adapters' must not be empty"}
	}
	for _, adapter := range adapters {
		if adapter.Type == "" {
			return &interfaces.ValidationError{Detail: "adapter entries must contain a 'type'"}
		}
	}
	return nil
}

func validateTrustedCA(ca *interfaces.TrustedCA) error {
	if ca.SubjectDN == "" {
		return &interfaces.ValidationError{Detail: "trusted CA requires a 'subject-dn'"}
	}

	hasCert := ca.Cert != ""
	hasKey := ca.PublicKey != ""
	switch {
	case hasCert && hasKey:
		return &interfaces.ValidationError{Detail: "trusted CA must not contain both 'cert' and 'public-key'"}
	case !hasCert && !hasKey:
		return &interfaces.ValidationError{Detail: "trusted CA requires either 'cert' or 'public-key'"}
	case hasCert:
		return validateEncodedCertificate(ca.Cert)
	default:
		algorithm := ca.KeyAlgorithm
		if algorithm == "" {
			algorithm = DefaultKeyAlgorithm
		}
		return validateEncodedPublicKey(ca.PublicKey, algorithm)
	}
}

func validateEncodedCertificate(encoded string) error {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return &interfaces.ValidationError{Detail: "trusted CA 'cert' is not valid base64"}
	}
	if _, err := x509.ParseCertificate(der); err != nil {
		return &interfaces.ValidationError{Detail: "trusted CA 'cert' is not a valid DER encoded X.509 certificate"}
	}
	return nil
}

func validateEncodedPublicKey(encoded, algorithm string) error {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return &interfaces.ValidationError{Detail: "trusted CA 'public-key' is not valid base64"}
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return &interfaces.ValidationError{Detail: "trusted CA 'public-key' is not a valid DER encoded public key"}
	}

	var keyAlgorithm string
	switch key.(type) {
	case *rsa.PublicKey:
		keyAlgorithm = "RSA"
	case *ecdsa.PublicKey:
		keyAlgorithm = "EC"
	case ed25519.PublicKey:
		keyAlgorithm = "Ed25519"
	default:
		return &interfaces.ValidationError{Detail: "trusted CA 'public-key' uses an unsupported algorithm"}
	}
	if !strings.EqualFold(keyAlgorithm, algorithm) {
		return &interfaces.ValidationError{
			Detail: fmt.Sprintf("trusted CA 'public-key' is a %s key, expected %s", keyAlgorithm, algorithm),
		}
	}
	return nil
}
