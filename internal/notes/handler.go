package notes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinic-portal/internal/clinicapi"
	"github.com/clinicore/clinic-portal/internal/identity"
	"github.com/clinicore/clinic-portal/pkg/logging"
)

// ChartingAPI is the slice of the clinic backend used for clinical notes.
type ChartingAPI interface {
	SubmitVitalSigns(ctx context.Context, patientID string, vitals clinicapi.VitalSigns) error
	SubmitDiagnosis(ctx context.Context, patientID string, diagnosis clinicapi.Diagnosis) error
}

// Handler exposes the clinical note forms: vital signs and diagnoses. The
// submitting clinician is stamped from the authenticated identity, never
// from the request body.
type Handler struct {
	api    ChartingAPI
	logger *logging.Logger
}

func NewHandler(api ChartingAPI, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{api: api, logger: logger}
}

// Routes mounts the notes endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/patients/{patientID}/vitals", h.SubmitVitals)
	r.Post("/patients/{patientID}/diagnoses", h.SubmitDiagnosis)
}

// SubmitVitals handles POST /notes/patients/{patientID}/vitals.
func (h *Handler) SubmitVitals(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	var vitals clinicapi.VitalSigns
	if err := json.NewDecoder(r.Body).Decode(&vitals); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := ValidateVitals(vitals); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if user, ok := identity.UserFromContext(r.Context()); ok {
		vitals.RecordedBy = user.Subject
	}

	if err := h.api.SubmitVitalSigns(r.Context(), patientID, vitals); err != nil {
		h.respondUpstreamError(w, "submit vitals", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubmitDiagnosis handles POST /notes/patients/{patientID}/diagnoses.
func (h *Handler) SubmitDiagnosis(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	var diagnosis clinicapi.Diagnosis
	if err := json.NewDecoder(r.Body).Decode(&diagnosis); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := ValidateDiagnosis(diagnosis); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	diagnosis.Code = NormalizeCode(diagnosis.Code)
	if user, ok := identity.UserFromContext(r.Context()); ok {
		diagnosis.RecordedBy = user.Subject
	}

	if err := h.api.SubmitDiagnosis(r.Context(), patientID, diagnosis); err != nil {
		h.respondUpstreamError(w, "submit diagnosis", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondUpstreamError(w http.ResponseWriter, op string, err error) {
	var apiErr *clinicapi.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		http.Error(w, apiErr.Message, apiErr.StatusCode)
		return
	}
	h.logger.Error("clinic backend call failed", "op", op, "error", err)
	http.Error(w, "charting service is unavailable", http.StatusBadGateway)
}
