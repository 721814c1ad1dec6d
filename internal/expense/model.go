package expense

import (
	"strings"
	"time"

	"expense_tracker/internal/apperror"
)

type Expense struct {
	ID          int       `db:"id" json:"id"`
	Amount      float64   `db:"amount" json:"amount"`
	Category    string    `db:"category" json:"category"`
	Description *string   `db:"description" json:"description"`
	Date        time.Time `db:"date" json:"date"`
	UserID      int       `db:"user_id" json:"user_id"`
}

// ExpenseInput is the client-supplied part of an expense. Amount is a pointer
// so that zero passes the required check; negative amounts are accepted as-is.
type ExpenseInput struct {
	Amount      *float64 `json:"amount" binding:"required"`
	Category    string   `json:"category" binding:"required,max=100"`
	Description *string  `json:"description" binding:"omitempty,max=1000"`
}

func (in ExpenseInput) validate() error {
	if in.Amount == nil {
		return apperror.New(apperror.Validation, "Invalid request: amount failed on 'required'", nil)
	}
	if strings.TrimSpace(in.Category) == "" {
		return apperror.New(apperror.Validation, "Invalid request: category failed on 'required'", nil)
	}
	return nil
}

// ListFilter holds the raw query-string filters of a listing request.
type ListFilter struct {
	Category string `form:"category"`
	Month    string `form:"month"`
}

// MonthRange is the half-open interval [Start, End) covering one calendar month in UTC.
type MonthRange struct {
	Start time.Time
	End   time.Time
}

// ParseMonth parses YYYY-MM (a one-digit month is accepted) into its UTC range.
func ParseMonth(s string) (MonthRange, error) {
	t, err := time.Parse("2006-1", s)
	if err != nil {
		return MonthRange{}, apperror.New(apperror.InvalidFilter, apperror.ErrInvalidFilter.Message, err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return MonthRange{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// Query is a validated ListFilter. Empty Category and nil Month mean no restriction.
type Query struct {
	Category string
	Month    *MonthRange
}

func (f ListFilter) toQuery() (Query, error) {
	q := Query{Category: f.Category}
	if f.Month != "" {
		r, err := ParseMonth(f.Month)
		if err != nil {
			return Query{}, err
		}
		q.Month = &r
	}
	return q, nil
}

// escapeLike makes s match literally inside a LIKE pattern using '\' as the escape character.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
