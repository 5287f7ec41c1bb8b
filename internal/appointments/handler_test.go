package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinic-portal/internal/clinicapi"
)

type fakeScheduler struct {
	booked    *clinicapi.BookAppointmentRequest
	bookErr   error
	checkedIn string
	listed    []clinicapi.Appointment
	listDay   *time.Time
}

func (f *fakeScheduler) BookAppointment(ctx context.Context, req clinicapi.BookAppointmentRequest) (*clinicapi.Appointment, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	f.booked = &req
	return &clinicapi.Appointment{ID: "a1", PatientID: req.PatientID, ScheduledFor: req.ScheduledFor, Status: "scheduled"}, nil
}

func (f *fakeScheduler) CheckInAppointment(ctx context.Context, appointmentID string) (*clinicapi.Appointment, error) {
	f.checkedIn = appointmentID
	now := time.Now()
	return &clinicapi.Appointment{ID: appointmentID, Status: "checked_in", CheckedInAt: &now}, nil
}

func (f *fakeScheduler) ListAppointments(ctx context.Context, patientID string, day *time.Time) ([]clinicapi.Appointment, error) {
	f.listDay = day
	return f.listed, nil
}

func newServer(api SchedulingAPI) *httptest.Server {
	r := chi.NewRouter()
	r.Route("/appointments", NewHandler(api, nil).Routes)
	return httptest.NewServer(r)
}

func TestBookAppointment(t *testing.T) {
	fake := &fakeScheduler{}
	srv := newServer(fake)
	defer srv.Close()

	when := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	body := `{"patient_id":"p1","provider_id":"dr-2","scheduled_for":"` + when + `","reason":"follow-up"}`
	resp, err := http.Post(srv.URL+"/appointments", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if fake.booked == nil || fake.booked.ProviderID != "dr-2" {
		t.Fatalf("booking not forwarded: %+v", fake.booked)
	}
}

func TestBookAppointmentValidation(t *testing.T) {
	srv := newServer(&fakeScheduler{})
	defer srv.Close()

	cases := []struct {
		name string
		body string
	}{
		{"missing patient", `{"scheduled_for":"2030-01-01T10:00:00Z"}`},
		{"missing time", `{"patient_id":"p1"}`},
		{"past time", `{"patient_id":"p1","scheduled_for":"2020-01-01T10:00:00Z"}`},
		{"garbage", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/appointments", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestBookAppointmentConflictPassesThrough(t *testing.T) {
	fake := &fakeScheduler{bookErr: &clinicapi.APIError{StatusCode: 409, Message: "provider is booked at that time"}}
	srv := newServer(fake)
	defer srv.Close()

	when := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	resp, err := http.Post(srv.URL+"/appointments", "application/json",
		strings.NewReader(`{"patient_id":"p1","scheduled_for":"`+when+`"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 pass-through, got %d", resp.StatusCode)
	}
}

func TestBookAppointmentBackendDown(t *testing.T) {
	fake := &fakeScheduler{bookErr: errors.New("connection refused")}
	srv := newServer(fake)
	defer srv.Close()

	when := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	resp, err := http.Post(srv.URL+"/appointments", "application/json",
		strings.NewReader(`{"patient_id":"p1","scheduled_for":"`+when+`"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestListAppointments(t *testing.T) {
	fake := &fakeScheduler{listed: []clinicapi.Appointment{{ID: "a1"}, {ID: "a2"}}}
	srv := newServer(fake)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/appointments?patient_id=p1&date=2026-08-23")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Appointments []clinicapi.Appointment `json:"appointments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(parsed.Appointments) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(parsed.Appointments))
	}
	if fake.listDay == nil || fake.listDay.Format("2006-01-02") != "2026-08-23" {
		t.Fatalf("date filter not forwarded: %v", fake.listDay)
	}

	resp, err = http.Get(srv.URL + "/appointments")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without patient_id, got %d", resp.StatusCode)
	}
}

func TestCheckIn(t *testing.T) {
	fake := &fakeScheduler{}
	srv := newServer(fake)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/appointments/a1/check-in", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var appt clinicapi.Appointment
	if err := json.NewDecoder(resp.Body).Decode(&appt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fake.checkedIn != "a1" || appt.Status != "checked_in" {
		t.Fatalf("check-in not forwarded: %q %+v", fake.checkedIn, appt)
	}
}
