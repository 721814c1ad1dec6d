package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"expense_tracker/internal/expense"
	"expense_tracker/internal/utils"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// errInvalidEvent marks messages that can never succeed and must not be retried.
var errInvalidEvent = errors.New("invalid expense event")

func decodeEvent(body []byte) (*expense.Event, error) {
	var event expense.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	return &event, nil
}

// handleEvent appends event to the audit trail. Redelivered events are ignored.
func handleEvent(ctx context.Context, db *sqlx.DB, repo expense.AuditRepositoryInterface, event *expense.Event, workerID int) error {
	var inserted bool
	err := utils.WithTransaction(ctx, db, func(tx *sqlx.Tx) error {
		var err error
		inserted, err = repo.Insert(ctx, tx, event)
		return err
	})
	if err != nil {
		return err
	}

	entry := logrus.WithFields(logrus.Fields{
		"worker_id":  workerID,
		"event_id":   event.EventID,
		"operation":  event.Operation,
		"expense_id": event.ExpenseID,
		"user_id":    event.UserID,
	})
	if inserted {
		entry.Info("Expense event recorded")
	} else {
		entry.Info("Duplicate expense event ignored")
	}
	return nil
}
