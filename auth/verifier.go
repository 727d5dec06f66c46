package auth

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/crypto/bcrypt"

	"github.com/edgehive/device-registry/interfaces"
)

// Verifier checks passwords against hashed-password credential records with
// bounded concurrency.
type Verifier struct {
	slots chan struct{}
	clock interfaces.Clock
	log   *slog.Logger
}

// NewVerifier creates a verifier running at most maxConcurrent hash
// comparisons in parallel. A non-positive limit defaults to the number of
// CPUs; a nil clock falls back to the system clock.
func NewVerifier(maxConcurrent int, clock interfaces.Clock, log *slog.Logger) *Verifier {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	if clock == nil {
		clock = interfaces.SystemClock{}
	}
	return &Verifier{
		slots: make(chan struct{}, maxConcurrent),
		clock: clock,
		log:   log,
	}
}

// VerifyPassword checks the given password against a credential record's
// secrets. Secrets that are disabled or outside their validity period are
// skipped. Returns nil if any remaining secret matches and
// interfaces.ErrNotAuthorized otherwise.
func (v *Verifier) VerifyPassword(ctx context.Context, record *interfaces.CredentialRecord, password string) error {
	if record == nil || record.Type != interfaces.TypeHashedPassword {
		return fmt.Errorf("record is not a %s credential", interfaces.TypeHashedPassword)
	}

	select {
	case v.slots <- struct{}{}:
		defer func() { <-v.slots }()
	case <-ctx.Done():
		return ctx.Err()
	}

	now := v.clock.Now()
	for _, secret := range record.Secrets {
		pwd, ok := secret.(*interfaces.PasswordSecret)
		if !ok {
			continue
		}
		if !pwd.IsEnabled() || !pwd.InValidityPeriod(now) {
			continue
		}
		match, err := v.compare(pwd, password)
		if err != nil {
			v.log.Warn("skipping unusable password secret",
				slog.String("auth_id", record.AuthID),
				"err", err)
			continue
		}
		if match {
			return nil
		}
	}
	return interfaces.ErrNotAuthorized
}

func (v *Verifier) compare(secret *interfaces.PasswordSecret, password string) (bool, error) {
	switch secret.HashFunction {
	case interfaces.HashFunctionBCrypt:
		err := bcrypt.CompareHashAndPassword([]byte(secret.PasswordHash), []byte(password))
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return err == nil, err
	case interfaces.HashFunctionSHA256:
		return v.compareSalted(secret, password, func(data []byte) []byte {
			sum := sha256.Sum256(data)
			return sum[:]
		})
	case interfaces.HashFunctionSHA512:
		return v.compareSalted(secret, password, func(data []byte) []byte {
			sum := sha512.Sum512(data)
			return sum[:]
		})
	default:
		return false, fmt.Errorf("unsupported hash function %q", secret.HashFunction)
	}
}

// compareSalted implements the salted digest scheme: the stored hash is the
// base64 encoded digest of salt bytes followed by the UTF-8 password.
func (v *Verifier) compareSalted(secret *interfaces.PasswordSecret, password string, digest func([]byte) []byte) (bool, error) {
	expected, err := base64.StdEncoding.DecodeString(secret.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("stored hash is not valid base64: %w", err)
	}
	var salt []byte
	if secret.Salt != "" {
		salt, err = base64.StdEncoding.DecodeString(secret.Salt)
		if err != nil {
			return false, fmt.Errorf("stored salt is not valid base64: %w", err)
		}
	}
	computed := digest(append(salt, []byte(password)...))
	return subtle.ConstantTimeCompare(expected, computed) == 1, nil
}
