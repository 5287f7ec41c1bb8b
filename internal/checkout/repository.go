package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRecord is one journaled checkout attempt.
type AttemptRecord struct {
	InvoiceID     string    `json:"invoice_id"`
	Reference     string    `json:"reference"`
	AmountInCents int64     `json:"amount_in_cents"`
	Currency      string    `json:"currency"`
	State         State     `json:"state"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type attemptQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository journals checkout attempts for billing reconciliation.
type Repository struct {
	pool attemptQuerier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("checkout: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithExec(exec attemptQuerier) *Repository {
	if exec == nil {
		panic("checkout: exec required")
	}
	return &Repository{pool: exec}
}

// RecordAttempt inserts a new attempt row, or refreshes it when the same
// payment reference is attempted again.
func (r *Repository) RecordAttempt(ctx context.Context, attempt AttemptRecord) error {
	query := `
		INSERT INTO checkout_attempts (invoice_id, reference, amount_in_cents, currency, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (reference) DO UPDATE SET
		    state = EXCLUDED.state,
		    transaction_id = NULL,
		    message = NULL,
		    updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query,
		attempt.InvoiceID, attempt.Reference, attempt.AmountInCents, attempt.Currency, string(attempt.State))
	if err != nil {
		return fmt.Errorf("checkout: record attempt: %w", err)
	}
	return nil
}

// RecordOutcome stamps the terminal state on an attempt.
func (r *Repository) RecordOutcome(ctx context.Context, reference string, state State, transactionID, message string) error {
	query := `
		UPDATE checkout_attempts
		SET state = $2, transaction_id = NULLIF($3, ''), message = NULLIF($4, ''), updated_at = NOW()
		WHERE reference = $1
	`
	ct, err := r.pool.Exec(ctx, query, reference, string(state), transactionID, message)
	if err != nil {
		return fmt.Errorf("checkout: record outcome: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("checkout: record outcome: unknown reference %s", reference)
	}
	return nil
}

// ListByInvoice returns the attempt history for an invoice, newest first.
func (r *Repository) ListByInvoice(ctx context.Context, invoiceID string) ([]AttemptRecord, error) {
	query := `
		SELECT invoice_id, reference, amount_in_cents, currency, state,
		       COALESCE(transaction_id, ''), COALESCE(message, ''), created_at, updated_at
		FROM checkout_attempts
		WHERE invoice_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("checkout: list attempts: %w", err)
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		var a AttemptRecord
		var state string
		if err := rows.Scan(&a.InvoiceID, &a.Reference, &a.AmountInCents, &a.Currency, &state,
			&a.TransactionID, &a.Message, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("checkout: scan attempt: %w", err)
		}
		a.State = State(state)
		out = append(out, a)
	}
	if out == nil {
		out = []AttemptRecord{}
	}
	return out, rows.Err()
}
