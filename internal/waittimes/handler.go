package waittimes

import (
	"encoding/json"
	"net/http"

	"github.com/clinicore/clinic-portal/pkg/logging"
)

// Handler serves the wait-time dashboard report.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// GetReport handles GET /wait-times.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context())
	if err != nil {
		h.logger.Error("wait-time report failed", "error", err)
		http.Error(w, "wait-time report is unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
