package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/clinic-portal/internal/clinicapi"
	"github.com/clinicore/clinic-portal/internal/observability/metrics"
	"github.com/clinicore/clinic-portal/pkg/logging"
)

// AttemptLister reads the journaled attempt history.
type AttemptLister interface {
	ListByInvoice(ctx context.Context, invoiceID string) ([]AttemptRecord, error)
}

// InvoiceAPI looks up the invoice being paid.
type InvoiceAPI interface {
	GetInvoice(ctx context.Context, invoiceID string) (*clinicapi.Invoice, error)
}

// Handler exposes the checkout flow over REST. Each attempt gets its own
// Machine, addressed by a server-generated id.
type Handler struct {
	api         SessionAPI
	scripts     *ScriptLoader
	newWidget   WidgetFactory
	journal     Journal
	history     AttemptLister
	invoices    InvoiceAPI
	metrics     *metrics.CheckoutMetrics
	logger      *logging.Logger
	interval    time.Duration
	redirectURL string

	mu       sync.Mutex
	machines map[string]*Machine
}

// NewHandler creates the checkout handler.
func NewHandler(api SessionAPI, scripts *ScriptLoader, factory WidgetFactory, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		api:       api,
		scripts:   scripts,
		newWidget: factory,
		logger:    logger,
		machines:  make(map[string]*Machine),
	}
}

// WithJournal enables attempt persistence and history lookups.
func (h *Handler) WithJournal(repo *Repository) *Handler {
	h.journal = repo
	h.history = repo
	return h
}

// WithInvoices enables invoice lookups for the billing view.
func (h *Handler) WithInvoices(api InvoiceAPI) *Handler {
	h.invoices = api
	return h
}

// WithMetrics enables Prometheus instrumentation on new machines.
func (h *Handler) WithMetrics(cm *metrics.CheckoutMetrics) *Handler {
	h.metrics = cm
	return h
}

// WithInterval overrides the settlement polling interval on new machines.
func (h *Handler) WithInterval(d time.Duration) *Handler {
	h.interval = d
	return h
}

// WithRedirectURL sets the vendor redirect target on new machines.
func (h *Handler) WithRedirectURL(u string) *Handler {
	h.redirectURL = u
	return h
}

// Routes mounts the checkout endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateAttempt)
	r.Get("/{attemptID}", h.GetAttempt)
	r.Post("/{attemptID}/open", h.OpenAttempt)
	r.Post("/{attemptID}/retry", h.RetryAttempt)
	r.Delete("/{attemptID}", h.CloseAttempt)
	r.Get("/{attemptID}/events", h.StreamAttempt)
	r.Get("/invoices/{invoiceID}", h.GetInvoice)
	r.Get("/invoices/{invoiceID}/attempts", h.ListInvoiceAttempts)
}

type createAttemptRequest struct {
	InvoiceID string `json:"invoice_id"`
	Currency  string `json:"currency"`
}

type attemptResponse struct {
	ID string `json:"id"`
	Snapshot
}

// CreateAttempt handles POST /payments/checkout. It runs the attempt up to
// READY (or ERROR) before responding; the vendor handoff is a separate call.
func (h *Handler) CreateAttempt(w http.ResponseWriter, r *http.Request) {
	var req createAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.InvoiceID = strings.TrimSpace(req.InvoiceID)
	if req.InvoiceID == "" {
		http.Error(w, "invoice_id is required", http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "COP"
	}

	machine := NewMachine(h.api, h.scripts, h.newWidget, h.logger).
		WithInterval(h.interval).
		WithMetrics(h.metrics).
		WithRedirectURL(h.redirectURL)
	if h.journal != nil {
		machine.WithJournal(h.journal)
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.machines[id] = machine
	h.mu.Unlock()

	machine.Start(r.Context(), req.InvoiceID, req.Currency)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(attemptResponse{ID: id, Snapshot: machine.Snapshot()})
}

// GetAttempt handles GET /payments/checkout/{attemptID}.
func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(chi.URLParam(r, "attemptID"))
	if !ok {
		http.Error(w, "attempt not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(attemptResponse{ID: chi.URLParam(r, "attemptID"), Snapshot: machine.Snapshot()})
}

// OpenAttempt handles POST /payments/checkout/{attemptID}/open. Valid only
// while the attempt is READY; the vendor outcome arrives asynchronously.
func (h *Handler) OpenAttempt(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(chi.URLParam(r, "attemptID"))
	if !ok {
		http.Error(w, "attempt not found", http.StatusNotFound)
		return
	}
	if snap := machine.Snapshot(); snap.State != StateReady {
		http.Error(w, "attempt is not ready for checkout", http.StatusConflict)
		return
	}

	machine.OpenCheckout(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(attemptResponse{ID: chi.URLParam(r, "attemptID"), Snapshot: machine.Snapshot()})
}

// RetryAttempt handles POST /payments/checkout/{attemptID}/retry. Valid
// from a terminal failure, or from IDLE after the user dismissed the
// vendor checkout.
func (h *Handler) RetryAttempt(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(chi.URLParam(r, "attemptID"))
	if !ok {
		http.Error(w, "attempt not found", http.StatusNotFound)
		return
	}
	switch snap := machine.Snapshot(); snap.State {
	case StateDeclined, StateError:
		machine.Retry(r.Context())
	case StateIdle:
		machine.Start(r.Context(), snap.InvoiceID, snap.Currency)
	default:
		http.Error(w, "attempt is not retryable", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(attemptResponse{ID: chi.URLParam(r, "attemptID"), Snapshot: machine.Snapshot()})
}

// CloseAttempt handles DELETE /payments/checkout/{attemptID}. Refused while
// a payment may be settling.
func (h *Handler) CloseAttempt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "attemptID")
	machine, ok := h.machine(id)
	if !ok {
		http.Error(w, "attempt not found", http.StatusNotFound)
		return
	}
	if machine.Snapshot().State.InFlight() {
		http.Error(w, "a payment is in progress", http.StatusConflict)
		return
	}

	machine.Close()
	h.mu.Lock()
	delete(h.machines, id)
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// GetInvoice handles GET /payments/checkout/invoices/{invoiceID}. The
// billing view shows the invoice before a checkout attempt is created.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	if h.invoices == nil {
		http.Error(w, "invoice lookup is not enabled", http.StatusNotFound)
		return
	}
	invoice, err := h.invoices.GetInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		var apiErr *clinicapi.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			http.Error(w, apiErr.Message, apiErr.StatusCode)
			return
		}
		h.logger.Error("invoice lookup failed", "error", err)
		http.Error(w, "could not load invoice", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(invoice)
}

// ListInvoiceAttempts handles GET /payments/checkout/invoices/{invoiceID}/attempts.
func (h *Handler) ListInvoiceAttempts(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "attempt history is not enabled", http.StatusNotFound)
		return
	}
	attempts, err := h.history.ListByInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		h.logger.Error("attempt history lookup failed", "error", err)
		http.Error(w, "could not load attempt history", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"attempts": attempts})
}

func (h *Handler) machine(id string) (*Machine, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.machines[id]
	return m, ok
}
