package wompi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchMerchant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/merchants/pub_test_123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":{"name":"Clinic Pagos","public_key":"pub_test_123","acceptance_token":"acc-1","accepted_currencies":["COP"]}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	merchant, err := client.FetchMerchant(context.Background(), "pub_test_123")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if merchant.Name != "Clinic Pagos" || merchant.AcceptanceToken != "acc-1" {
		t.Fatalf("unexpected merchant: %+v", merchant)
	}
}

func TestFetchMerchantNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such merchant"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	if _, err := client.FetchMerchant(context.Background(), "pub_missing"); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestWidgetOpenDeliversTransaction(t *testing.T) {
	var gotBody WidgetParams
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer pub" {
			t.Errorf("expected public-key auth, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode: %v", err)
		}
		fmt.Fprint(w, `{"data":{"id":"t1","status":"PENDING","reference":"INV-1","amount_in_cents":5000000,"created_at":"2026-08-23T10:00:00Z"}}`)
	}))
	defer srv.Close()

	params := WidgetParams{Currency: "COP", AmountInCents: 5000000, Reference: "INV-1", PublicKey: "pub"}
	params.Signature.Integrity = "sig"

	widget := NewClient(srv.URL, nil).NewWidget(params)
	results := make(chan WidgetResult, 1)
	widget.Open(context.Background(), func(res WidgetResult) { results <- res })

	select {
	case res := <-results:
		if res.Error != nil {
			t.Fatalf("unexpected widget error: %+v", res.Error)
		}
		if res.Transaction == nil || res.Transaction.ID != "t1" || res.Transaction.Reference != "INV-1" {
			t.Fatalf("unexpected transaction: %+v", res.Transaction)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("callback never fired")
	}

	if gotBody.Reference != "INV-1" || gotBody.Signature.Integrity != "sig" {
		t.Fatalf("unexpected vendor payload: %+v", gotBody)
	}
}

func TestWidgetOpenDeliversVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":{"type":"INPUT_VALIDATION_ERROR","reason":"signature mismatch"}}`)
	}))
	defer srv.Close()

	widget := NewClient(srv.URL, nil).NewWidget(WidgetParams{Reference: "INV-1", PublicKey: "pub"})
	results := make(chan WidgetResult, 1)
	widget.Open(context.Background(), func(res WidgetResult) { results <- res })

	select {
	case res := <-results:
		if res.Transaction != nil {
			t.Fatalf("expected no transaction, got %+v", res.Transaction)
		}
		if res.Error == nil || res.Error.Message != "signature mismatch" {
			t.Fatalf("expected vendor reason, got %+v", res.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("callback never fired")
	}
}

func TestWidgetCloseReportsDismissal(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, `{"data":{"id":"t1"}}`)
	}))
	defer srv.Close()
	defer close(release)

	widget := NewClient(srv.URL, nil).NewWidget(WidgetParams{Reference: "INV-1", PublicKey: "pub"})
	results := make(chan WidgetResult, 1)
	widget.Open(context.Background(), func(res WidgetResult) { results <- res })

	// Give the request a moment to be in flight, then dismiss.
	time.Sleep(50 * time.Millisecond)
	widget.Close()

	select {
	case res := <-results:
		if res.Transaction != nil || res.Error != nil {
			t.Fatalf("expected empty result for dismissal, got %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("callback never fired after close")
	}
}

func TestWidgetOpenTwice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"t1","status":"PENDING","reference":"INV-1"}}`)
	}))
	defer srv.Close()

	widget := NewClient(srv.URL, nil).NewWidget(WidgetParams{Reference: "INV-1", PublicKey: "pub"})
	first := make(chan WidgetResult, 1)
	widget.Open(context.Background(), func(res WidgetResult) { first <- res })
	<-first

	second := make(chan WidgetResult, 1)
	widget.Open(context.Background(), func(res WidgetResult) { second <- res })
	res := <-second
	if res.Error == nil || res.Error.Code != "REOPENED" {
		t.Fatalf("expected REOPENED error, got %+v", res)
	}
}
