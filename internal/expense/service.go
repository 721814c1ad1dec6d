package expense

import (
	"context"
	"errors"
	"strings"
	"time"

	"expense_tracker/internal/apperror"
	"expense_tracker/internal/observability"
	"expense_tracker/internal/utils"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 2 * time.Second

type ExpenseServiceInterface interface {
	CreateExpense(ctx context.Context, ownerID int, input ExpenseInput) (*Expense, error)
	ListExpenses(ctx context.Context, ownerID int, filter ListFilter) ([]*Expense, error)
	UpdateExpense(ctx context.Context, ownerID, expenseID int, input ExpenseInput) (*Expense, error)
	DeleteExpense(ctx context.Context, ownerID, expenseID int) error
	Summarize(ctx context.Context, ownerID int, groupBy string) ([]SummaryRow, error)
}

type SummaryCacher interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, messageID string, v interface{}) error
}

type ExpenseService struct {
	repo      ExpenseRepositoryInterface
	db        *sqlx.DB
	cache     SummaryCacher
	publisher EventPublisher
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewExpenseService wires the expense store. cache and publisher are optional
// and may be nil.
func NewExpenseService(
	repo ExpenseRepositoryInterface,
	db *sqlx.DB,
	cache SummaryCacher,
	publisher EventPublisher,
	metrics *observability.Metrics,
) ExpenseServiceInterface {
	return &ExpenseService{
		repo:      repo,
		db:        db,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (s *ExpenseService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *ExpenseService) CreateExpense(ctx context.Context, ownerID int, input ExpenseInput) (*Expense, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	expense := &Expense{
		Amount:      *input.Amount,
		Category:    strings.TrimSpace(input.Category),
		Description: input.Description,
		Date:        s.timestamp(),
		UserID:      ownerID,
	}

	err := utils.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := s.repo.Create(ctx, tx, expense)
		if err != nil {
			return err
		}
		expense.ID = id
		return nil
	})
	if err != nil {
		return nil, apperror.New(apperror.Internal, "failed to create expense", err)
	}

	s.afterCommit(ctx, OpCreated, expense)
	return expense, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, ownerID int, filter ListFilter) ([]*Expense, error) {
	query, err := filter.toQuery()
	if err != nil {
		return nil, err
	}

	expenses, err := s.repo.List(ctx, s.db, ownerID, query)
	if err != nil {
		return nil, apperror.New(apperror.Internal, "failed to list expenses", err)
	}
	return expenses, nil
}

// UpdateExpense replaces the editable fields and stamps the modification time.
func (s *ExpenseService) UpdateExpense(ctx context.Context, ownerID, expenseID int, input ExpenseInput) (*Expense, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	expense := &Expense{
		ID:          expenseID,
		Amount:      *input.Amount,
		Category:    strings.TrimSpace(input.Category),
		Description: input.Description,
		Date:        s.timestamp(),
		UserID:      ownerID,
	}

	err := utils.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.repo.Update(ctx, tx, expense)
	})
	if err != nil {
		return nil, translate(err, "failed to update expense")
	}

	s.afterCommit(ctx, OpUpdated, expense)
	return expense, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, ownerID, expenseID int) error {
	var deleted *Expense
	err := utils.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		existing, err := s.repo.GetByIDAndOwner(ctx, tx, expenseID, ownerID)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, expenseID, ownerID); err != nil {
			return err
		}
		deleted = existing
		return nil
	})
	if err != nil {
		return translate(err, "failed to delete expense")
	}

	s.afterCommit(ctx, OpDeleted, deleted)
	return nil
}

// afterCommit invalidates cached summaries and publishes the event. Failures
// are logged only; the mutation is already committed.
func (s *ExpenseService) afterCommit(ctx context.Context, op Operation, expense *Expense) {
	s.metrics.ExpenseMutationsTotal.WithLabelValues(string(op)).Inc()
	s.invalidateSummaries(ctx, expense.UserID)

	if s.publisher == nil {
		return
	}

	event := NewEvent(op, expense, s.now())
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishJSON(pubCtx, event.EventID, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"operation":  op,
			"expense_id": expense.ID,
		}).Warn("Failed to publish expense event")
	}
}

func translate(err error, message string) error {
	if errors.Is(err, ErrExpenseNotFound) {
		return apperror.ErrNotFound
	}
	return apperror.New(apperror.Internal, message, err)
}
