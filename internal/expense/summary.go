package expense

import (
	"context"
	"encoding/json"
	"time"

	"expense_tracker/internal/apperror"
	"expense_tracker/internal/cache"

	"github.com/sirupsen/logrus"
)

type GroupBy string

const (
	GroupByCategory GroupBy = "category"
	GroupByMonth    GroupBy = "month"
)

// ParseGroupBy accepts "category" or "month"; empty means category.
func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(s) {
	case "", GroupByCategory:
		return GroupByCategory, nil
	case GroupByMonth:
		return GroupByMonth, nil
	default:
		return "", apperror.ErrInvalidGroupBy
	}
}

// SummaryRow is one group's total. Key is the raw category or a YYYY-MM month.
type SummaryRow struct {
	Key   string  `db:"group_key" json:"key"`
	Total float64 `db:"total" json:"total"`
}

// Summarize totals the owner's expenses per group, serving from the cache when possible.
func (s *ExpenseService) Summarize(ctx context.Context, ownerID int, groupBy string) ([]SummaryRow, error) {
	gb, err := ParseGroupBy(groupBy)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.SummaryKey(ownerID, string(gb))
	if rows, ok := s.cachedSummary(ctx, cacheKey); ok {
		s.metrics.CacheHitsTotal.WithLabelValues("summary").Inc()
		s.metrics.SummariesTotal.WithLabelValues(string(gb)).Inc()
		return rows, nil
	}
	if s.cache != nil {
		s.metrics.CacheMissesTotal.WithLabelValues("summary").Inc()
	}

	start := time.Now()
	rows, err := s.repo.Aggregate(ctx, s.db, ownerID, gb)
	if err != nil {
		return nil, apperror.New(apperror.Internal, "failed to summarize expenses", err)
	}
	s.metrics.SummaryDuration.WithLabelValues(string(gb)).Observe(time.Since(start).Seconds())
	s.metrics.SummariesTotal.WithLabelValues(string(gb)).Inc()

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, rows); err != nil {
			logrus.WithError(err).Warn("Failed to set cache for expense summary")
		}
	}

	return rows, nil
}

func (s *ExpenseService) cachedSummary(ctx context.Context, key string) ([]SummaryRow, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read expense summary from cache")
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var rows []SummaryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

// invalidateSummaries drops every cached grouping for the owner.
func (s *ExpenseService) invalidateSummaries(ctx context.Context, ownerID int) {
	if s.cache == nil {
		return
	}
	keys := []string{
		cache.SummaryKey(ownerID, string(GroupByCategory)),
		cache.SummaryKey(ownerID, string(GroupByMonth)),
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logrus.WithError(err).WithField("user_id", ownerID).Warn("Failed to invalidate summary cache")
	}
}
