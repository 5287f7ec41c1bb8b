package clinicapi

import "time"

// PaymentStatus is the settlement status reported by the billing backend.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "PENDING"
	StatusApproved PaymentStatus = "APPROVED"
	StatusDeclined PaymentStatus = "DECLINED"
	StatusError    PaymentStatus = "ERROR"
	StatusVoided   PaymentStatus = "VOIDED"
)

// Terminal reports whether the status ends the settlement wait.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusDeclined, StatusError, StatusVoided:
		return true
	}
	return false
}

// PaymentSession is a server-issued, signed set of parameters authorizing one
// checkout attempt with the payment vendor. Immutable once received.
type PaymentSession struct {
	Reference     string `json:"reference"`
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
	Signature     string `json:"signature"`
	PublicKey     string `json:"public_key"`
}

// PaymentStatusRecord is a read-only projection of server-side settlement
// truth, keyed by the session reference.
type PaymentStatusRecord struct {
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
}

// Invoice is a billable record for medical services.
type Invoice struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patient_id"`
	AmountInCents int64     `json:"amount_in_cents"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"` // PENDING, PAID, CANCELLED
	IssuedAt      time.Time `json:"issued_at"`
}

// Appointment mirrors the scheduling backend's appointment resource.
type Appointment struct {
	ID           string     `json:"id"`
	PatientID    string     `json:"patient_id"`
	ProviderID   string     `json:"provider_id,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Reason       string     `json:"reason,omitempty"`
	Status       string     `json:"status"` // scheduled, checked_in, completed, cancelled
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
}

// BookAppointmentRequest is the booking payload; conflict detection happens
// server-side.
type BookAppointmentRequest struct {
	PatientID    string    `json:"patient_id"`
	ProviderID   string    `json:"provider_id,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Reason       string    `json:"reason,omitempty"`
}

// VitalSigns is the clinical vitals note payload.
type VitalSigns struct {
	TemperatureCelsius float64 `json:"temperature_celsius"`
	HeartRateBPM       int     `json:"heart_rate_bpm"`
	SystolicBP         int     `json:"systolic_bp"`
	DiastolicBP        int     `json:"diastolic_bp"`
	RespiratoryRate    int     `json:"respiratory_rate"`
	OxygenSaturation   int     `json:"oxygen_saturation"`
	RecordedBy         string  `json:"recorded_by,omitempty"`
}

// Diagnosis is the clinical diagnosis note payload.
type Diagnosis struct {
	Code        string `json:"code"` // ICD-10
	Description string `json:"description"`
	RecordedBy  string `json:"recorded_by,omitempty"`
}

// WaitTimeEntry is one department row of the wait-time report.
type WaitTimeEntry struct {
	Department         string  `json:"department"`
	PatientsWaiting    int     `json:"patients_waiting"`
	AverageWaitMinutes float64 `json:"average_wait_minutes"`
	LongestWaitMinutes float64 `json:"longest_wait_minutes"`
}
