package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clinicore/clinic-portal/internal/clinicapi"
	"github.com/clinicore/clinic-portal/internal/observability/metrics"
	"github.com/clinicore/clinic-portal/internal/wompi"
	"github.com/clinicore/clinic-portal/pkg/logging"
)

// State is the checkout modal's finite-state variable.
type State string

const (
	StateIdle       State = "IDLE"
	StateCreating   State = "CREATING"
	StateReady      State = "READY"
	StateProcessing State = "PROCESSING"
	StatePolling    State = "POLLING"
	StateSuccess    State = "SUCCESS"
	StateDeclined   State = "DECLINED"
	StateError      State = "ERROR"
)

// Terminal reports whether the state ends the attempt.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateDeclined || s == StateError
}

// InFlight reports whether a payment may be settling; the UI refuses to
// discard the modal in these states.
func (s State) InFlight() bool {
	return s == StateProcessing || s == StatePolling
}

// Failure kinds reported through OnFailure, mirroring the error taxonomy:
// infrastructure failures and business rejections read differently to the
// user and offer different retry copy.
const (
	FailureInfrastructure = "infrastructure"
	FailureDeclined       = "declined"
	FailureVoided         = "voided"
)

const defaultPollInterval = 3 * time.Second

// SessionAPI is the slice of the billing backend the machine depends on.
type SessionAPI interface {
	CreatePaymentSession(ctx context.Context, invoiceID, currency string) (*clinicapi.PaymentSession, error)
	GetPaymentStatus(ctx context.Context, reference string) (*clinicapi.PaymentStatusRecord, error)
}

// Widget is one vendor checkout instance.
type Widget interface {
	Open(ctx context.Context, callback func(wompi.WidgetResult))
	Close()
}

// WidgetFactory constructs a widget for one set of signed session
// parameters; it stands in for the vendor's globally-registered
// constructor.
type WidgetFactory func(params wompi.WidgetParams) Widget

// Journal records checkout attempts and their terminal outcomes. Journal
// failures never interrupt the checkout flow.
type Journal interface {
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	RecordOutcome(ctx context.Context, reference string, state State, transactionID, message string) error
}

// Snapshot is a point-in-time view of the machine, safe to hand to HTTP
// handlers and the event stream.
type Snapshot struct {
	State         State  `json:"state"`
	InvoiceID     string `json:"invoice_id"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference,omitempty"`
	AmountInCents int64  `json:"amount_in_cents,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Machine drives one payment attempt end to end: vendor bootstrap, session
// creation, vendor checkout, settlement polling, terminal result. It owns
// the polling task and the open widget exclusively and releases both on
// every exit path.
type Machine struct {
	api       SessionAPI
	scripts   *ScriptLoader
	newWidget WidgetFactory
	journal   Journal
	metrics   *metrics.CheckoutMetrics
	logger    *logging.Logger

	interval    time.Duration
	redirectURL string
	onSuccess   func(transactionID string)
	onFailure   func(kind, message string)

	mu            sync.Mutex
	state         State
	session       *clinicapi.PaymentSession
	invoiceID     string
	currency      string
	message       string
	transactionID string
	widget        Widget
	pollCancel    context.CancelFunc
	closed        bool

	// epoch invalidates in-flight callbacks from a superseded attempt.
	// Any widget result or poll response carrying a stale epoch is
	// discarded, so a response arriving after retry() cannot race the new
	// session into a terminal state.
	epoch uint64

	subs    map[uint64]chan Snapshot
	nextSub uint64
}

// NewMachine creates a checkout machine for one invoice attempt sequence.
func NewMachine(api SessionAPI, scripts *ScriptLoader, factory WidgetFactory, logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{
		api:       api,
		scripts:   scripts,
		newWidget: factory,
		logger:    logger,
		interval:  defaultPollInterval,
		state:     StateIdle,
		subs:      make(map[uint64]chan Snapshot),
	}
}

// WithInterval overrides the settlement polling interval.
func (m *Machine) WithInterval(d time.Duration) *Machine {
	if d > 0 {
		m.interval = d
	}
	return m
}

// WithJournal enables attempt/outcome persistence.
func (m *Machine) WithJournal(j Journal) *Machine {
	m.journal = j
	return m
}

// WithMetrics enables Prometheus instrumentation.
func (m *Machine) WithMetrics(cm *metrics.CheckoutMetrics) *Machine {
	m.metrics = cm
	return m
}

// WithRedirectURL sets the vendor redirect target.
func (m *Machine) WithRedirectURL(u string) *Machine {
	m.redirectURL = u
	return m
}

// OnSuccess registers the success callback, invoked once with the
// transaction id when the payment settles.
func (m *Machine) OnSuccess(fn func(transactionID string)) *Machine {
	m.onSuccess = fn
	return m
}

// OnFailure registers the failure callback, invoked once per terminal
// failure with the failure kind and a displayable message.
func (m *Machine) OnFailure(fn func(kind, message string)) *Machine {
	m.onFailure = fn
	return m
}

// Snapshot returns the current view of the machine.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         m.state,
		InvoiceID:     m.invoiceID,
		Currency:      m.currency,
		TransactionID: m.transactionID,
		Message:       m.message,
	}
	if m.session != nil {
		snap.Reference = m.session.Reference
		snap.AmountInCents = m.session.AmountInCents
	}
	return snap
}

// Start begins the attempt: vendor bootstrap, then session creation. It is
// a no-op once the machine has left IDLE. Failures land in the ERROR state
// with a displayable message; Start never returns an error to the caller.
func (m *Machine) Start(ctx context.Context, invoiceID, currency string) {
	m.mu.Lock()
	if m.closed || m.state != StateIdle {
		m.mu.Unlock()
		return
	}
	m.invoiceID = invoiceID
	m.currency = currency
	epoch := m.epoch
	m.mu.Unlock()

	m.run(ctx, epoch, invoiceID, currency)
}

// run executes the IDLE to CREATING to READY leg for one epoch.
func (m *Machine) run(ctx context.Context, epoch uint64, invoiceID, currency string) {
	if !m.transition(epoch, StateIdle, StateCreating) {
		return
	}

	if err := m.scripts.Load(ctx); err != nil {
		m.logger.Warn("vendor bootstrap failed", "invoice_id", invoiceID, "error", err)
		m.fail(epoch, FailureInfrastructure, "payment provider is unavailable, please try again")
		return
	}

	session, err := m.api.CreatePaymentSession(ctx, invoiceID, currency)
	if err != nil {
		m.metrics.ObserveSession("error")
		m.fail(epoch, FailureInfrastructure, sessionErrorMessage(err))
		return
	}
	m.metrics.ObserveSession("created")

	m.mu.Lock()
	if epoch != m.epoch || m.state != StateCreating {
		m.mu.Unlock()
		return
	}
	m.session = session
	m.setStateLocked(StateReady)
	m.mu.Unlock()

	if m.journal != nil {
		if err := m.journal.RecordAttempt(context.Background(), AttemptRecord{
			InvoiceID:     invoiceID,
			Reference:     session.Reference,
			AmountInCents: session.AmountInCents,
			Currency:      session.Currency,
			State:         StateReady,
		}); err != nil {
			m.logger.Error("attempt journal write failed", "reference", session.Reference, "error", err)
		}
	}
}

// sessionErrorMessage prefers the backend's human-readable message.
func sessionErrorMessage(err error) string {
	var apiErr *clinicapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "could not start the payment, please try again"
}

// OpenCheckout hands the session to the vendor widget. Valid only in READY;
// a missing session or widget constructor transitions to ERROR with a
// descriptive message instead of returning an error.
func (m *Machine) OpenCheckout(ctx context.Context) {
	m.mu.Lock()
	if m.closed || m.state != StateReady {
		m.mu.Unlock()
		return
	}
	epoch := m.epoch
	session := m.session
	if session == nil {
		m.mu.Unlock()
		m.fail(epoch, FailureInfrastructure, "no active payment session")
		return
	}
	if m.newWidget == nil || !m.scripts.Loaded() {
		m.mu.Unlock()
		m.fail(epoch, FailureInfrastructure, "payment widget is not available")
		return
	}

	params := wompi.WidgetParams{
		Currency:      session.Currency,
		AmountInCents: session.AmountInCents,
		Reference:     session.Reference,
		PublicKey:     session.PublicKey,
		RedirectURL:   m.redirectURL,
	}
	params.Signature.Integrity = session.Signature

	widget := m.newWidget(params)
	m.widget = widget
	m.setStateLocked(StateProcessing)
	m.mu.Unlock()

	started := time.Now()
	// The widget outlives the HTTP request that opened it; its lifetime is
	// bounded by Close/Retry, not the caller's context.
	widget.Open(context.Background(), func(res wompi.WidgetResult) {
		m.metrics.ObserveVendorLatency("widget_open", time.Since(started).Seconds())
		m.handleWidgetResult(epoch, res)
	})
}

// handleWidgetResult turns the vendor callback into a state transition.
func (m *Machine) handleWidgetResult(epoch uint64, res wompi.WidgetResult) {
	m.mu.Lock()
	if epoch != m.epoch || m.state != StateProcessing {
		m.mu.Unlock()
		return
	}

	if res.Error != nil {
		m.mu.Unlock()
		m.fail(epoch, FailureInfrastructure, res.Error.Message)
		return
	}

	if res.Transaction == nil {
		// User dismissed the checkout: back to IDLE, silently.
		m.epoch++
		m.widget = nil
		m.session = nil
		m.message = ""
		m.transactionID = ""
		m.setStateLocked(StateIdle)
		m.mu.Unlock()
		return
	}

	reference := res.Transaction.Reference
	if reference == "" && m.session != nil {
		reference = m.session.Reference
	}
	m.transactionID = res.Transaction.ID
	m.setStateLocked(StatePolling)

	pollCtx, cancel := context.WithCancel(context.Background())
	m.pollCancel = cancel
	m.mu.Unlock()

	go m.poll(pollCtx, epoch, reference)
}

// poll queries the settlement status on a fixed interval until a terminal
// status is observed or the context is cancelled. The status query is
// idempotent; transport errors are retried on the next tick.
func (m *Machine) poll(ctx context.Context, epoch uint64, reference string) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	if m.checkStatus(ctx, epoch, reference) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.checkStatus(ctx, epoch, reference) {
				return
			}
		}
	}
}

// checkStatus performs one status query; returns true when polling should
// stop.
func (m *Machine) checkStatus(ctx context.Context, epoch uint64, reference string) bool {
	record, err := m.api.GetPaymentStatus(ctx, reference)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		m.logger.Warn("settlement poll failed", "reference", reference, "error", err)
		m.metrics.ObservePoll("transport_error")
		return false
	}
	m.metrics.ObservePoll(string(record.Status))
	return m.applyStatus(epoch, record)
}

// applyStatus feeds one settlement status into the machine; stale epochs
// are discarded.
func (m *Machine) applyStatus(epoch uint64, record *clinicapi.PaymentStatusRecord) bool {
	m.mu.Lock()
	if epoch != m.epoch || m.state != StatePolling {
		m.mu.Unlock()
		return true
	}

	switch record.Status {
	case clinicapi.StatusApproved:
		if record.TransactionID != "" {
			m.transactionID = record.TransactionID
		}
		transactionID := m.transactionID
		m.stopPollingLocked()
		m.setStateLocked(StateSuccess)
		onSuccess := m.onSuccess
		m.recordOutcomeLocked()
		m.mu.Unlock()
		m.metrics.ObserveOutcome("success")
		if onSuccess != nil {
			onSuccess(transactionID)
		}
		return true

	case clinicapi.StatusDeclined, clinicapi.StatusError:
		m.stopPollingLocked()
		m.message = "the payment was declined"
		m.setStateLocked(StateDeclined)
		onFailure := m.onFailure
		message := m.message
		m.recordOutcomeLocked()
		m.mu.Unlock()
		m.metrics.ObserveOutcome("declined")
		if onFailure != nil {
			onFailure(FailureDeclined, message)
		}
		return true

	case clinicapi.StatusVoided:
		m.stopPollingLocked()
		m.message = "the payment was voided before completion"
		m.setStateLocked(StateError)
		onFailure := m.onFailure
		message := m.message
		m.recordOutcomeLocked()
		m.mu.Unlock()
		m.metrics.ObserveOutcome("voided")
		if onFailure != nil {
			onFailure(FailureVoided, message)
		}
		return true

	default:
		// PENDING, or anything unknown: keep waiting.
		m.mu.Unlock()
		return false
	}
}

// Retry tears down the failed attempt and re-runs the full sequence from
// the vendor bootstrap. Valid only from DECLINED or ERROR.
func (m *Machine) Retry(ctx context.Context) {
	m.mu.Lock()
	if m.closed || (m.state != StateDeclined && m.state != StateError) {
		m.mu.Unlock()
		return
	}
	m.epoch++
	m.stopPollingLocked()
	if m.widget != nil {
		m.widget.Close()
		m.widget = nil
	}
	m.session = nil
	m.message = ""
	m.transactionID = ""
	m.setStateLocked(StateIdle)
	epoch := m.epoch
	invoiceID, currency := m.invoiceID, m.currency
	m.mu.Unlock()

	m.run(ctx, epoch, invoiceID, currency)
}

// Close releases the polling task and any open widget. The machine allows
// Close from any state; the HTTP layer refuses it while a payment is in
// flight.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.epoch++
	m.stopPollingLocked()
	if m.widget != nil {
		m.widget.Close()
		m.widget = nil
	}
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	m.mu.Unlock()
}

// fail moves the machine to ERROR for the given epoch, releasing resources
// and notifying the failure callback.
func (m *Machine) fail(epoch uint64, kind, message string) {
	m.mu.Lock()
	if epoch != m.epoch || m.state.Terminal() || m.closed {
		m.mu.Unlock()
		return
	}
	m.stopPollingLocked()
	if m.widget != nil {
		m.widget.Close()
		m.widget = nil
	}
	m.message = message
	m.setStateLocked(StateError)
	onFailure := m.onFailure
	m.recordOutcomeLocked()
	m.mu.Unlock()

	m.metrics.ObserveOutcome("error")
	if onFailure != nil {
		onFailure(kind, message)
	}
}

func (m *Machine) stopPollingLocked() {
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
}

// setStateLocked applies the transition and fans the snapshot out to
// subscribers. Callers hold m.mu.
func (m *Machine) setStateLocked(next State) {
	m.state = next
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber: drop rather than block a transition.
		}
	}
}

// recordOutcomeLocked persists the terminal outcome best-effort. Callers
// hold m.mu.
func (m *Machine) recordOutcomeLocked() {
	if m.journal == nil || m.session == nil {
		return
	}
	reference := m.session.Reference
	state := m.state
	transactionID := m.transactionID
	message := m.message
	journal := m.journal
	logger := m.logger
	go func() {
		if err := journal.RecordOutcome(context.Background(), reference, state, transactionID, message); err != nil {
			logger.Error("outcome journal write failed", "reference", reference, "error", err)
		}
	}()
}

// Subscribe registers a transition listener for the event stream. The
// returned cancel func must be called when the listener goes away.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan Snapshot, 8)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
}

// transition applies the state change if the machine is still on the given
// epoch and in the expected state.
func (m *Machine) transition(epoch uint64, from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch || m.state != from || m.closed {
		return false
	}
	m.setStateLocked(to)
	return true
}
