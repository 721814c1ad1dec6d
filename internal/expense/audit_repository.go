package expense

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type AuditRepository struct{}

type AuditRepositoryInterface interface {
	Insert(ctx context.Context, q sqlx.ExtContext, event *Event) (bool, error)
	ListByUser(ctx context.Context, q sqlx.ExtContext, userID int) ([]*Event, error)
}

func NewAuditRepository() AuditRepositoryInterface {
	return &AuditRepository{}
}

// Insert stores event and reports whether it was new. A redelivered event is a no-op.
func (r *AuditRepository) Insert(ctx context.Context, q sqlx.ExtContext, event *Event) (bool, error) {
	query := q.Rebind(`
		INSERT INTO expense_events (event_id, operation, expense_id, user_id, amount, category, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING
	`)

	result, err := q.ExecContext(ctx, query,
		event.EventID,
		string(event.Operation),
		event.ExpenseID,
		event.UserID,
		event.Amount,
		event.Category,
		event.OccurredAt.UTC(),
	)
	if err != nil {
		return false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AuditRepository) ListByUser(ctx context.Context, q sqlx.ExtContext, userID int) ([]*Event, error) {
	events := []*Event{}
	err := sqlx.SelectContext(ctx, q, &events, q.Rebind(`
		SELECT event_id, operation, expense_id, user_id, amount, category, occurred_at
		FROM expense_events
		WHERE user_id = ?
		ORDER BY occurred_at, id
	`), userID)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		e.OccurredAt = e.OccurredAt.UTC()
	}
	return events, nil
}
