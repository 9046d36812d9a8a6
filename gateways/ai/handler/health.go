package handler

import (
	"net/http"
	"time"

	"github.com/xilidan/signposting/pkg/json"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	json.WriteJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	json.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.ready.Check(r.Context())
	if err != nil {
		json.WriteError(w, http.StatusServiceUnavailable, err)
		return
	}

	status := http.StatusOK
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		status = http.StatusServiceUnavailable
	}
	json.WriteProtoJSON(w, status, resp)
}
