package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgehive/device-registry/credentials"
	"github.com/edgehive/device-registry/devices"
	"github.com/edgehive/device-registry/management"
	"github.com/edgehive/device-registry/registration"
	"github.com/edgehive/device-registry/tenants"
	"github.com/edgehive/device-registry/validation"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	credentialStore := credentials.NewStore(credentials.DefaultConfig(),
		validation.NewSecretValidator(validation.DefaultMaxBcryptCost), nil, log)
	deviceStore := devices.NewStore(devices.DefaultConfig(), nil, nil, log)
	tenantStore := tenants.NewStore(tenants.DefaultConfig(), nil, log)
	engine := registration.NewEngine(deviceStore, deviceStore,
		registration.Config{AssertionMaxAge: time.Minute}, log)
	dispatcher := management.NewDispatcher(credentialStore, deviceStore, tenantStore, engine, nil, log)

	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      log,
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, NewHandler(dispatcher, log))
	require.NoError(t, err)
	return srv.getRouter()
}

func doRequest(t *testing.T, router http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCredentialsEndpoints(t *testing.T) {
	router := newTestServer(t)

	secrets := []byte(`[{
		"type": "hashed-password",
		"auth-id": "sensor1",
		"hash-function": "sha-256",
		"pwd-hash": "aGFzaA=="
	}]`)

	rec := doRequest(t, router, http.MethodPut, "/v1/credentials/DEFAULT_TENANT/4711", secrets, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	version := rec.Header().Get("ETag")
	require.NotEmpty(t, version)

	rec = doRequest(t, router, http.MethodGet, "/v1/credentials/DEFAULT_TENANT/4711", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	var stored []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "sensor1", stored[0]["auth-id"])
	assert.Equal(t, true, stored[0]["enabled"])

	rec = doRequest(t, router, http.MethodGet, "/v1/credentials/DEFAULT_TENANT/hashed-password/sensor1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "max-age=300", rec.Header().Get("Cache-Control"))
	var record map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "4711", record["device-id"])

	rec = doRequest(t, router, http.MethodDelete, "/v1/credentials/DEFAULT_TENANT/4711", nil,
		map[string]string{"If-Match": "stale-version"})
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, version, rec.Header().Get("ETag"))

	rec = doRequest(t, router, http.MethodDelete, "/v1/credentials/DEFAULT_TENANT/4711", nil,
		map[string]string{"If-Match": version})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/v1/credentials/DEFAULT_TENANT/4711", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistrationEndpoint(t *testing.T) {
	router := newTestServer(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/devices/DEFAULT_TENANT/4711",
		[]byte(`{"via": ["gw-1"], "defaults": {"content-type": "application/json"}}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = doRequest(t, router, http.MethodPost, "/v1/devices/DEFAULT_TENANT/gw-1", []byte(`{}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/v1/registration/DEFAULT_TENANT/4711?via=gw-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	var assertion map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assertion))
	assert.Equal(t, "4711", assertion["device-id"])

	rec = doRequest(t, router, http.MethodGet, "/v1/registration/DEFAULT_TENANT/4711?via=gw-2", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "unknown gateway")

	rec = doRequest(t, router, http.MethodGet, "/v1/registration/DEFAULT_TENANT/gw-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "max-age=60", rec.Header().Get("Cache-Control"))
}

func TestTenantEndpoints(t *testing.T) {
	router := newTestServer(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/tenants/DEFAULT_TENANT",
		[]byte(`{"adapters": [{"type": "mqtt"}]}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	version := rec.Header().Get("ETag")
	require.NotEmpty(t, version)

	rec = doRequest(t, router, http.MethodGet, "/v1/tenants/DEFAULT_TENANT", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/v1/tenants/DEFAULT_TENANT",
		[]byte(`{"adapters": [{"type": "http"}]}`),
		map[string]string{"If-Match": "stale-version"})
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/v1/tenants/DEFAULT_TENANT", nil,
		map[string]string{"If-Match": version})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestErrorBodyShape(t *testing.T) {
	router := newTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/devices/DEFAULT_TENANT/unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not found", body["error"])
}

func TestHealthAndDrainEndpoints(t *testing.T) {
	router := newTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/livez", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/drain", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/undrain", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
