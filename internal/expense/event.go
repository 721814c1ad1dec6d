package expense

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Operation string

const (
	OpCreated Operation = "created"
	OpUpdated Operation = "updated"
	OpDeleted Operation = "deleted"
)

// Event records one committed expense mutation. EventID makes redelivery idempotent.
type Event struct {
	EventID    string    `db:"event_id" json:"event_id"`
	Operation  Operation `db:"operation" json:"operation"`
	ExpenseID  int       `db:"expense_id" json:"expense_id"`
	UserID     int       `db:"user_id" json:"user_id"`
	Amount     float64   `db:"amount" json:"amount"`
	Category   string    `db:"category" json:"category"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}

func NewEvent(op Operation, e *Expense, at time.Time) *Event {
	return &Event{
		EventID:    uuid.NewString(),
		Operation:  op,
		ExpenseID:  e.ID,
		UserID:     e.UserID,
		Amount:     e.Amount,
		Category:   e.Category,
		OccurredAt: at.UTC(),
	}
}

func (e *Event) Validate() error {
	if _, err := uuid.Parse(e.EventID); err != nil {
		return errors.New("invalid event id")
	}
	switch e.Operation {
	case OpCreated, OpUpdated, OpDeleted:
	default:
		return errors.New("unknown operation: " + string(e.Operation))
	}
	if e.ExpenseID == 0 || e.UserID == 0 {
		return errors.New("event is missing expense or user id")
	}
	return nil
}
