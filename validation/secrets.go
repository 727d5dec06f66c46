package validation

import (
	"fmt"

	"github.com/edgehive/device-registry/interfaces"
	"golang.org/x/crypto/bcrypt"
)

// DefaultMaxBcryptCost is the maximum bcrypt cost factor accepted when no
// explicit limit is configured. Higher costs would let a caller turn every
// connection attempt into a denial-of-service primitive.
const DefaultMaxBcryptCost = 10

// SecretValidator validates credential secrets before the store accepts them.
type SecretValidator struct {
	maxBcryptCost int
}

// NewSecretValidator creates a validator enforcing the given maximum bcrypt
// cost factor. A non-positive value selects DefaultMaxBcryptCost.
func NewSecretValidator(maxBcryptCost int) *SecretValidator {
	if maxBcryptCost <= 0 {
		maxBcryptCost = DefaultMaxBcryptCost
	}
	return &SecretValidator{maxBcryptCost: maxBcryptCost}
}

// MaxBcryptCost returns the configured cost bound.
func (v *SecretValidator) MaxBcryptCost() int { return v.maxBcryptCost }

// Validate checks a single secret. It returns a *interfaces.ValidationError
// describing the first violation found, or nil.
func (v *SecretValidator) Validate(secret interfaces.Secret) error {
	if secret.Type() == "" {
		return &interfaces.ValidationError{Detail: "'type' field must be set"}
	}

	common := secret.Common()
	if common.AuthID == "" {
		return &interfaces.ValidationError{Detail: "'auth-id' field must be set"}
	}
	if common.NotBefore != nil && common.NotAfter != nil && common.NotAfter.Before(*common.NotBefore) {
		return &interfaces.ValidationError{Detail: "'not-after' must not precede 'not-before'"}
	}

	if pwd, ok := secret.(*interfaces.PasswordSecret); ok {
		return v.validatePassword(pwd)
	}
	return nil
}

func (v *SecretValidator) validatePassword(secret *interfaces.PasswordSecret) error {
	switch secret.HashFunction {
	case interfaces.HashFunctionBCrypt, interfaces.HashFunctionSHA256, interfaces.HashFunctionSHA512:
	case "":
		return &interfaces.ValidationError{Detail: "missing hash function"}
	default:
		return &interfaces.ValidationError{Detail: fmt.Sprintf("unsupported hash function %q", secret.HashFunction)}
	}

	if secret.PasswordHash == "" {
		return &interfaces.ValidationError{Detail: "missing password hash"}
	}

	if secret.HashFunction == interfaces.HashFunctionBCrypt {
		cost, err := bcrypt.Cost([]byte(secret.PasswordHash))
		if err != nil {
			return &interfaces.ValidationError{Detail: "malformed bcrypt password hash"}
		}
		if cost > v.maxBcryptCost {
			return &interfaces.ValidationError{
				Detail: fmt.Sprintf("bcrypt hash uses too many iterations, max is %d", v.maxBcryptCost),
			}
		}
	}
	return nil
}
