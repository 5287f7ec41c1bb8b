package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clinicore/clinic-portal/internal/clinicapi"
	"github.com/clinicore/clinic-portal/internal/navigation"
	"github.com/clinicore/clinic-portal/internal/notes"
)

const testSecret = "router-test-secret"

func signToken(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "u1",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type noopCharting struct{}

func (noopCharting) SubmitVitalSigns(ctx context.Context, patientID string, vitals clinicapi.VitalSigns) error {
	return nil
}

func (noopCharting) SubmitDiagnosis(ctx context.Context, patientID string, diagnosis clinicapi.Diagnosis) error {
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(&Config{
		NavigationHandler: navigation.NewHandler(nil),
		NotesHandler:      notes.NewHandler(noopCharting{}, nil),
		JWTSecret:         testSecret,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	resp.Body.Close()
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	if resp := get(t, srv.URL+"/health", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", resp.StatusCode)
	}
}

func TestPortalRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	if resp := get(t, srv.URL+"/navigation", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/navigation", "garbage"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/navigation", signToken(t, "physician")); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", resp.StatusCode)
	}
}

func TestNotesRequireClinicalRole(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/notes/patients/p1/vitals", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "billing"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for billing role on notes, got %d", resp.StatusCode)
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	srv := newTestServer(t)
	if resp := get(t, srv.URL+"/navigation", signToken(t, "superuser")); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown role, got %d", resp.StatusCode)
	}
}
