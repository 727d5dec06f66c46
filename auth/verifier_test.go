package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edgehive/device-registry/interfaces"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewVerifier(2, nil, log)
}

func bcryptRecord(t *testing.T, password string) *interfaces.CredentialRecord {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &interfaces.CredentialRecord{
		AuthID: "sensor1", DeviceID: "4711", Type: interfaces.TypeHashedPassword,
		Secrets: []interfaces.Secret{
			&interfaces.PasswordSecret{
				HashFunction: interfaces.HashFunctionBCrypt,
				PasswordHash: string(hash),
			},
		},
	}
}

func saltedSHA256Secret(password string, salt []byte) *interfaces.PasswordSecret {
	sum := sha256.Sum256(append(salt, []byte(password)...))
	return &interfaces.PasswordSecret{
		HashFunction: interfaces.HashFunctionSHA256,
		PasswordHash: base64.StdEncoding.EncodeToString(sum[:]),
		Salt:         base64.StdEncoding.EncodeToString(salt),
	}
}

func TestVerifyBcryptPassword(t *testing.T) {
	verifier := newTestVerifier(t)
	record := bcryptRecord(t, "opensesame")

	assert.NoError(t, verifier.VerifyPassword(context.Background(), record, "opensesame"))
	assert.ErrorIs(t, verifier.VerifyPassword(context.Background(), record, "wrong"),
		interfaces.ErrNotAuthorized)
}

func TestVerifySaltedSHA256Password(t *testing.T) {
	verifier := newTestVerifier(t)
	record := &interfaces.CredentialRecord{
		AuthID: "sensor1", DeviceID: "4711", Type: interfaces.TypeHashedPassword,
		Secrets: []interfaces.Secret{saltedSHA256Secret("opensesame", []byte("pepper"))},
	}

	assert.NoError(t, verifier.VerifyPassword(context.Background(), record, "opensesame"))
	assert.ErrorIs(t, verifier.VerifyPassword(context.Background(), record, "wrong"),
		interfaces.ErrNotAuthorized)
}

func TestVerifySkipsDisabledSecret(t *testing.T) {
	verifier := newTestVerifier(t)
	disabled := false
	secret := saltedSHA256Secret("opensesame", nil)
	secret.Enabled = &disabled
	record := &interfaces.CredentialRecord{
		AuthID: "sensor1", DeviceID: "4711", Type: interfaces.TypeHashedPassword,
		Secrets: []interfaces.Secret{secret},
	}

	assert.ErrorIs(t, verifier.VerifyPassword(context.Background(), record, "opensesame"),
		interfaces.ErrNotAuthorized)
}

func TestVerifyHonorsValidityPeriod(t *testing.T) {
	verifier := newTestVerifier(t)
	expired := time.Now().Add(-time.Hour)
	secret := saltedSHA256Secret("opensesame", nil)
	secret.NotAfter = &expired
	record := &interfaces.CredentialRecord{
		AuthID: "sensor1", DeviceID: "4711", Type: interfaces.TypeHashedPassword,
		Secrets: []interfaces.Secret{secret},
	}

	assert.ErrorIs(t, verifier.VerifyPassword(context.Background(), record, "opensesame"),
		interfaces.ErrNotAuthorized)
}

func TestVerifyAnyMatchingSecretSuffices(t *testing.T) {
	verifier := newTestVerifier(t)
	record := &interfaces.CredentialRecord{
		AuthID: "sensor1", DeviceID: "4711", Type: interfaces.TypeHashedPassword,
		Secrets: []interfaces.Secret{
			saltedSHA256Secret("old-secret", nil),
			saltedSHA256Secret("new-secret", nil),
		},
	}

	assert.NoError(t, verifier.VerifyPassword(context.Background(), record, "old-secret"))
	assert.NoError(t, verifier.VerifyPassword(context.Background(), record, "new-secret"))
}

func TestVerifySkipsMalformedSecret(t *testing.T) {
	verifier := newTestVerifier(t)
	record := &interfaces.CredentialRecord{
		AuthID: "sensor1", DeviceID: "4711", Type: interfaces.TypeHashedPassword,
		Secrets: []interfaces.Secret{
			&interfaces.PasswordSecret{
				HashFunction: interfaces.HashFunctionSHA256,
				PasswordHash: "%%% not base64 %%%",
			},
			saltedSHA256Secret("opensesame", nil),
		},
	}

	assert.NoError(t, verifier.VerifyPassword(context.Background(), record, "opensesame"))
}

func TestVerifyRejectsWrongRecordType(t *testing.T) {
	verifier := newTestVerifier(t)
	record := &interfaces.CredentialRecord{
		AuthID: "sensor1", DeviceID: "4711", Type: interfaces.TypePresharedKey,
	}

	assert.Error(t, verifier.VerifyPassword(context.Background(), record, "whatever"))
}

func TestVerifyRespectsCancelledContext(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := NewVerifier(1, nil, log)

	// occupy the single slot
	verifier.slots <- struct{}{}
	defer func() { <-verifier.slots }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := verifier.VerifyPassword(ctx, bcryptRecord(t, "opensesame"), "opensesame")
	assert.ErrorIs(t, err, context.Canceled)
}
