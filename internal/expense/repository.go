package expense

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"expense_tracker/internal/db"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var ErrExpenseNotFound = errors.New("expense not found")

type ExpenseRepository struct{}

type ExpenseRepositoryInterface interface {
	Create(ctx context.Context, q sqlx.ExtContext, expense *Expense) (int, error)
	GetByIDAndOwner(ctx context.Context, q sqlx.ExtContext, id, ownerID int) (*Expense, error)
	List(ctx context.Context, q sqlx.ExtContext, ownerID int, query Query) ([]*Expense, error)
	Update(ctx context.Context, q sqlx.ExtContext, expense *Expense) error
	Delete(ctx context.Context, q sqlx.ExtContext, id, ownerID int) error
	Aggregate(ctx context.Context, q sqlx.ExtContext, ownerID int, groupBy GroupBy) ([]SummaryRow, error)
}

func NewExpenseRepository() ExpenseRepositoryInterface {
	return &ExpenseRepository{}
}

const selectExpense = `SELECT id, amount, category, description, date, user_id FROM expenses`

func (r *ExpenseRepository) Create(ctx context.Context, q sqlx.ExtContext, expense *Expense) (int, error) {
	query := q.Rebind(`
		INSERT INTO expenses (amount, category, description, date, user_id)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)

	var id int
	err := sqlx.GetContext(ctx, q, &id, query,
		expense.Amount,
		expense.Category,
		expense.Description,
		expense.Date,
		expense.UserID,
	)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// GetByIDAndOwner returns ErrExpenseNotFound both for a missing id and for an id owned by someone else.
func (r *ExpenseRepository) GetByIDAndOwner(ctx context.Context, q sqlx.ExtContext, id, ownerID int) (*Expense, error) {
	var e Expense
	err := sqlx.GetContext(ctx, q, &e, q.Rebind(selectExpense+` WHERE id = ? AND user_id = ?`), id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExpenseNotFound
		}
		return nil, err
	}
	e.Date = e.Date.UTC()
	return &e, nil
}

// List returns the owner's expenses matching query, newest first.
func (r *ExpenseRepository) List(ctx context.Context, q sqlx.ExtContext, ownerID int, query Query) ([]*Expense, error) {
	where := []string{"user_id = ?"}
	args := []interface{}{ownerID}

	if query.Category != "" {
		where = append(where, `LOWER(category) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(query.Category))+"%")
	}
	if query.Month != nil {
		where = append(where, "date >= ?", "date < ?")
		args = append(args, query.Month.Start, query.Month.End)
	}

	stmt := selectExpense + " WHERE " + strings.Join(where, " AND ") + " ORDER BY date DESC, id DESC"

	expenses := []*Expense{}
	if err := sqlx.SelectContext(ctx, q, &expenses, q.Rebind(stmt), args...); err != nil {
		logrus.WithError(err).WithField("user_id", ownerID).Error("Failed to list expenses")
		return nil, err
	}
	for _, e := range expenses {
		e.Date = e.Date.UTC()
	}
	return expenses, nil
}

// Update overwrites amount, category, description and date of an owned expense.
func (r *ExpenseRepository) Update(ctx context.Context, q sqlx.ExtContext, expense *Expense) error {
	query := q.Rebind(`
		UPDATE expenses
		SET amount = ?, category = ?, description = ?, date = ?
		WHERE id = ? AND user_id = ?
	`)

	result, err := q.ExecContext(ctx, query,
		expense.Amount,
		expense.Category,
		expense.Description,
		expense.Date,
		expense.ID,
		expense.UserID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, q sqlx.ExtContext, id, ownerID int) error {
	result, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM expenses WHERE id = ? AND user_id = ?`), id, ownerID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

// Aggregate sums the owner's amounts per group key.
func (r *ExpenseRepository) Aggregate(ctx context.Context, q sqlx.ExtContext, ownerID int, groupBy GroupBy) ([]SummaryRow, error) {
	keyExpr := "category"
	if groupBy == GroupByMonth {
		keyExpr = db.MonthKeyExpr(q.DriverName(), "date")
	}

	stmt := `SELECT ` + keyExpr + ` AS group_key, SUM(amount) AS total
		FROM expenses
		WHERE user_id = ?
		GROUP BY ` + keyExpr + `
		ORDER BY group_key`

	rows := []SummaryRow{}
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(stmt), ownerID); err != nil {
		return nil, err
	}
	return rows, nil
}
