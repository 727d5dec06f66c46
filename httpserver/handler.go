package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/edgehive/device-registry/management"
	"github.com/edgehive/device-registry/metrics"
)

// Handler translates HTTP requests into management operations.
type Handler struct {
	dispatcher *management.Dispatcher
	metrics    *metrics.MetricsServer
	log        *slog.Logger
}

// NewHandler creates a handler over the given dispatcher. The server attaches
// its metrics collector when the handler is mounted.
func NewHandler(dispatcher *management.Dispatcher, log *slog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		log:        log,
	}
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, req *management.Request) {
	req.ResourceVersion = r.Header.Get("If-Match")

	resp := h.dispatcher.Dispatch(r.Context(), req)
	if h.metrics != nil {
		h.metrics.RecordOperation(req.Operation, resp.Status)
	}
	h.write(w, resp)
}

func (h *Handler) write(w http.ResponseWriter, resp *management.Response) {
	if resp.ResourceVersion != "" {
		w.Header().Set("ETag", resp.ResourceVersion)
	}
	if resp.CacheDirective != nil {
		w.Header().Set("Cache-Control", resp.CacheDirective.String())
	}

	if resp.Status >= http.StatusBadRequest {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.Status)
		json.NewEncoder(w).Encode(map[string]string{"error": resp.Detail})
		return
	}
	if resp.Payload == nil {
		w.WriteHeader(resp.Status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if err := json.NewEncoder(w).Encode(resp.Payload); err != nil {
		h.log.Error("could not encode response payload", "err", err)
	}
}

func (h *Handler) body(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "could not read request body", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

func pathParam(r *http.Request, name string) string {
	value, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return ""
	}
	return value
}

// Credentials API.

func (h *Handler) HandleCredentialsSet(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.body(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, &management.Request{
		Operation: management.OpCredentialsSet,
		TenantID:  pathParam(r, "tenant_id"),
		DeviceID:  pathParam(r, "device_id"),
		Payload:   payload,
	})
}

func (h *Handler) HandleCredentialsGet(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &management.Request{
		Operation: management.OpCredentialsGet,
		TenantID:  pathParam(r, "tenant_id"),
		DeviceID:  pathParam(r, "device_id"),
	})
}

func (h *Handler) HandleCredentialsRemove(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &management.Request{
		Operation: management.OpCredentialsRemove,
		TenantID:  pathParam(r, "tenant_id"),
		DeviceID:  pathParam(r, "device_id"),
	})
}

func (h *Handler) HandleCredentialsLookup(w http.ResponseWriter, r *http.Request) {
	var clientContext map[string]any
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		if clientContext == nil {
			clientContext = map[string]any{}
		}
		clientContext[key] = values[0]
	}
	h.dispatch(w, r, &management.Request{
		Operation:     management.OpCredentialsLookup,
		TenantID:      pathParam(r, "tenant_id"),
		CredType:      pathParam(r, "type"),
		AuthID:        pathParam(r, "auth_id"),
		ClientContext: clientContext,
	})
}

func (h *Handler) HandleCredentialsVerify(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.body(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, &management.Request{
		Operation: management.OpCredentialsVerify,
		TenantID:  pathParam(r, "tenant_id"),
		Payload:   payload,
	})
}

// Registration API.

func (h *Handler) HandleAssert(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &management.Request{
		Operation: management.OpRegistrationAssert,
		TenantID:  pathParam(r, "tenant_id"),
		DeviceID:  pathParam(r, "device_id"),
		GatewayID: r.URL.Query().Get("via"),
	})
}

// Device API.

func (h *Handler) HandleDeviceCreate(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.body(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, &management.Request{
		Operation: management.OpDeviceCreate,
		TenantID:  pathParam(r, "tenant_id"),
		DeviceID:  pathParam(r, "device_id"),
		Payload:   payload,
	})
}

func (h *Handler) HandleDeviceGet(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &management.Request{
		Operation: management.OpDeviceGet,
		TenantID:  pathParam(r, "tenant_id"),
		DeviceID:  pathParam(r, "device_id"),
	})
}

func (h *Handler) HandleDeviceUpdate(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.body(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, &management.Request{
		Operation: management.OpDeviceUpdate,
		TenantID:  pathParam(r, "tenant_id"),
		DeviceID:  pathParam(r, "device_id"),
		Payload:   payload,
	})
}

func (h *Handler) HandleDeviceDelete(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &management.Request{
		Operation: management.OpDeviceDelete,
		TenantID:  pathParam(r, "tenant_id"),
		DeviceID:  pathParam(r, "device_id"),
	})
}

// Tenant API.

func (h *Handler) HandleTenantAdd(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.body(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, &management.Request{
		Operation: management.OpTenantAdd,
		TenantID:  pathParam(r, "tenant_id"),
		Payload:   payload,
	})
}

func (h *Handler) HandleTenantGet(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &management.Request{
		Operation: management.OpTenantGet,
		TenantID:  pathParam(r, "tenant_id"),
	})
}

func (h *Handler) HandleTenantUpdate(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.body(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, &management.Request{
		Operation: management.OpTenantUpdate,
		TenantID:  pathParam(r, "tenant_id"),
		Payload:   payload,
	})
}

func (h *Handler) HandleTenantRemove(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &management.Request{
		Operation: management.OpTenantRemove,
		TenantID:  pathParam(r, "tenant_id"),
	})
}
