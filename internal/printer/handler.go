package printer

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewHandler(dispatcher *Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleTest probes the area's printer. An unreachable printer is reported
// in the body with a 200; only a bad area is a client error.
func (h *Handler) HandleTest(w http.ResponseWriter, r *http.Request) {
	area, err := ParseArea(r.PathValue("area"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	probe := h.dispatcher.Test(r.Context(), area)
	h.logger.Info("printer probed", "area", area, "connected", probe.Connected)
	h.writeJSON(w, http.StatusOK, probe)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
