package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinic-portal/internal/clinicapi"
	"github.com/clinicore/clinic-portal/pkg/logging"
)

// SchedulingAPI is the slice of the clinic backend the handler needs.
type SchedulingAPI interface {
	BookAppointment(ctx context.Context, req clinicapi.BookAppointmentRequest) (*clinicapi.Appointment, error)
	CheckInAppointment(ctx context.Context, appointmentID string) (*clinicapi.Appointment, error)
	ListAppointments(ctx context.Context, patientID string, day *time.Time) ([]clinicapi.Appointment, error)
}

// Handler exposes appointment booking and check-in. Scheduling conflicts are
// resolved by the clinic backend; this layer validates shape and surfaces
// backend messages.
type Handler struct {
	api    SchedulingAPI
	logger *logging.Logger
}

func NewHandler(api SchedulingAPI, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{api: api, logger: logger}
}

// Routes mounts the appointment endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Book)
	r.Post("/{appointmentID}/check-in", h.CheckIn)
}

// List handles GET /appointments?patient_id=...&date=YYYY-MM-DD.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if patientID == "" {
		http.Error(w, "patient_id is required", http.StatusBadRequest)
		return
	}

	var day *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = &parsed
	}

	appts, err := h.api.ListAppointments(r.Context(), patientID, day)
	if err != nil {
		h.respondUpstreamError(w, "list appointments", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"appointments": appts})
}

// Book handles POST /appointments.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req clinicapi.BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	if req.PatientID == "" {
		http.Error(w, "patient_id is required", http.StatusBadRequest)
		return
	}
	if req.ScheduledFor.IsZero() {
		http.Error(w, "scheduled_for is required", http.StatusBadRequest)
		return
	}
	if req.ScheduledFor.Before(time.Now()) {
		http.Error(w, "scheduled_for must be in the future", http.StatusBadRequest)
		return
	}

	appt, err := h.api.BookAppointment(r.Context(), req)
	if err != nil {
		h.respondUpstreamError(w, "book appointment", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appt)
}

// CheckIn handles POST /appointments/{appointmentID}/check-in.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appointmentID")

	appt, err := h.api.CheckInAppointment(r.Context(), appointmentID)
	if err != nil {
		h.respondUpstreamError(w, "check in", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appt)
}

// respondUpstreamError maps backend failures onto the portal response:
// backend 4xx messages pass through with their status, everything else is a
// 502 with a generic message.
func (h *Handler) respondUpstreamError(w http.ResponseWriter, op string, err error) {
	var apiErr *clinicapi.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		http.Error(w, apiErr.Message, apiErr.StatusCode)
		return
	}
	h.logger.Error("clinic backend call failed", "op", op, "error", err)
	http.Error(w, "scheduling service is unavailable", http.StatusBadGateway)
}
