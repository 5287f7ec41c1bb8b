package checkout

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestRepositoryRecordAttempt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithExec(mock)

	mock.ExpectExec("INSERT INTO checkout_attempts").
		WithArgs("inv-1", "INV-1", int64(5000000), "COP", "READY").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.RecordAttempt(context.Background(), AttemptRecord{
		InvoiceID:     "inv-1",
		Reference:     "INV-1",
		AmountInCents: 5000000,
		Currency:      "COP",
		State:         StateReady,
	})
	if err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryRecordOutcome(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithExec(mock)

	mock.ExpectExec("UPDATE checkout_attempts").
		WithArgs("INV-1", "SUCCESS", "t1", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := repo.RecordOutcome(context.Background(), "INV-1", StateSuccess, "t1", ""); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	mock.ExpectExec("UPDATE checkout_attempts").
		WithArgs("INV-missing", "ERROR", "", "timeout").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := repo.RecordOutcome(context.Background(), "INV-missing", StateError, "", "timeout"); err == nil {
		t.Fatalf("expected error for unknown reference")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryListByInvoice(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithExec(mock)
	now := time.Now()

	rows := pgxmock.NewRows([]string{"invoice_id", "reference", "amount_in_cents", "currency", "state", "transaction_id", "message", "created_at", "updated_at"}).
		AddRow("inv-1", "INV-1-2", int64(5000000), "COP", "SUCCESS", "t2", "", now, now).
		AddRow("inv-1", "INV-1-1", int64(5000000), "COP", "DECLINED", "t1", "the payment was declined", now.Add(-time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery("SELECT invoice_id, reference").WithArgs("inv-1").WillReturnRows(rows)

	attempts, err := repo.ListByInvoice(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if attempts[0].State != StateSuccess || attempts[1].State != StateDeclined {
		t.Fatalf("unexpected states: %s %s", attempts[0].State, attempts[1].State)
	}
	if attempts[1].Message != "the payment was declined" {
		t.Fatalf("unexpected message: %q", attempts[1].Message)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
