package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicore/clinic-portal/pkg/logging"
)

var tracer = otel.Tracer("portal.internal.clinicapi")

const defaultTimeout = 15 * time.Second

// APIError is a non-success response from the clinic backend. Its Message is
// human-readable and safe to surface to the user.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinicapi: status %d: %s", e.StatusCode, e.Message)
}

// Client is a thin typed wrapper around the external clinic REST API. All
// business rules (scheduling conflicts, invoicing, authentication) live
// behind it; the client only shapes requests and decodes responses.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a clinic API client.
func NewClient(baseURL, token string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// WithTimeout overrides the HTTP client timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

// CreatePaymentSession asks the billing backend for a signed checkout
// session for one invoice.
func (c *Client) CreatePaymentSession(ctx context.Context, invoiceID, currency string) (*PaymentSession, error) {
	ctx, span := tracer.Start(ctx, "clinicapi.create_payment_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("portal.invoice_id", invoiceID),
		attribute.String("portal.currency", currency),
	)

	body := map[string]string{
		"invoice_id": invoiceID,
		"currency":   currency,
	}
	var session PaymentSession
	if err := c.do(ctx, http.MethodPost, "/payments/sessions", body, &session); err != nil {
		return nil, err
	}
	if session.Reference == "" {
		return nil, fmt.Errorf("clinicapi: session response missing reference")
	}
	return &session, nil
}

// GetPaymentStatus polls the settlement status for a session reference.
// A 404 means the backend has not observed the transaction yet and is
// reported as PENDING rather than an error.
func (c *Client) GetPaymentStatus(ctx context.Context, reference string) (*PaymentStatusRecord, error) {
	ctx, span := tracer.Start(ctx, "clinicapi.get_payment_status")
	defer span.End()
	span.SetAttributes(attribute.String("portal.reference", reference))

	var record PaymentStatusRecord
	err := c.do(ctx, http.MethodGet, "/payments/sessions/"+url.PathEscape(reference)+"/status", nil, &record)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return &PaymentStatusRecord{Status: StatusPending}, nil
		}
		return nil, err
	}
	if record.Status == "" {
		record.Status = StatusPending
	}
	return &record, nil
}

// GetInvoice fetches an invoice by id.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	var invoice Invoice
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(invoiceID), nil, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// BookAppointment creates an appointment; the backend rejects conflicts.
func (c *Client) BookAppointment(ctx context.Context, req BookAppointmentRequest) (*Appointment, error) {
	var appt Appointment
	if err := c.do(ctx, http.MethodPost, "/appointments", req, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// CheckInAppointment marks the patient as arrived.
func (c *Client) CheckInAppointment(ctx context.Context, appointmentID string) (*Appointment, error) {
	var appt Appointment
	if err := c.do(ctx, http.MethodPost, "/appointments/"+url.PathEscape(appointmentID)+"/check-in", nil, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListAppointments returns a patient's appointments, optionally for one day.
func (c *Client) ListAppointments(ctx context.Context, patientID string, day *time.Time) ([]Appointment, error) {
	q := url.Values{}
	q.Set("patient_id", patientID)
	if day != nil {
		q.Set("date", day.UTC().Format("2006-01-02"))
	}
	var out struct {
		Appointments []Appointment `json:"appointments"`
	}
	if err := c.do(ctx, http.MethodGet, "/appointments?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Appointments, nil
}

// SubmitVitalSigns records a vitals note for a patient.
func (c *Client) SubmitVitalSigns(ctx context.Context, patientID string, vitals VitalSigns) error {
	return c.do(ctx, http.MethodPost, "/patients/"+url.PathEscape(patientID)+"/vitals", vitals, nil)
}

// SubmitDiagnosis records a diagnosis note for a patient.
func (c *Client) SubmitDiagnosis(ctx context.Context, patientID string, diagnosis Diagnosis) error {
	return c.do(ctx, http.MethodPost, "/patients/"+url.PathEscape(patientID)+"/diagnoses", diagnosis, nil)
}

// GetWaitTimes fetches the per-department wait-time report.
func (c *Client) GetWaitTimes(ctx context.Context) ([]WaitTimeEntry, error) {
	var out struct {
		Departments []WaitTimeEntry `json:"departments"`
	}
	if err := c.do(ctx, http.MethodGet, "/reports/wait-times", nil, &out); err != nil {
		return nil, err
	}
	return out.Departments, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("clinicapi: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("clinicapi: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clinicapi: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("clinicapi: decode response: %w", err)
	}
	return nil
}

// readErrorMessage extracts a displayable message from an error body.
func readErrorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = "request failed"
	}
	return msg
}
