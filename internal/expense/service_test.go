package expense

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"expense_tracker/internal/apperror"
	"expense_tracker/internal/cache"
	"expense_tracker/internal/db/dbtest"
	"expense_tracker/internal/observability"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryCache is an in-process SummaryCacher.
type memoryCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.data[key], nil
}

func (c *memoryCache) Set(ctx context.Context, key string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, messageID string, v interface{}) error {
	args := m.Called(ctx, messageID, v)
	return args.Error(0)
}

type serviceFixture struct {
	svc       *ExpenseService
	db        *sqlx.DB
	cache     *memoryCache
	publisher *MockPublisher
	alice     int
	bob       int
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	conn, _ := dbtest.NewSQLite(t)

	f := &serviceFixture{
		db:        conn,
		cache:     newMemoryCache(),
		publisher: new(MockPublisher),
	}
	f.svc = NewExpenseService(NewExpenseRepository(), conn, f.cache, f.publisher,
		observability.NewMetrics(prometheus.NewRegistry())).(*ExpenseService)

	for _, name := range []string{"alice", "bob"} {
		var id int
		err := conn.Get(&id, `INSERT INTO users (username, email, password, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
			name, name+"@example.com", "hash", time.Now().UTC())
		require.NoError(t, err)
		if name == "alice" {
			f.alice = id
		} else {
			f.bob = id
		}
	}
	return f
}

func amount(v float64) *float64 { return &v }

func (f *serviceFixture) create(t *testing.T, owner int, amt float64, category string) *Expense {
	t.Helper()
	e, err := f.svc.CreateExpense(context.Background(), owner, ExpenseInput{Amount: amount(amt), Category: category})
	require.NoError(t, err)
	return e
}

func TestCreateExpense_StampsDateAndPublishes(t *testing.T) {
	f := newServiceFixture(t)
	fixed := time.Date(2024, 2, 29, 10, 30, 0, 123456789, time.FixedZone("CET", 3600))
	f.svc.now = func() time.Time { return fixed }

	var published *Event
	f.publisher.On("PublishJSON", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*expense.Event")).
		Run(func(args mock.Arguments) { published = args.Get(2).(*Event) }).
		Return(nil).Once()

	desc := "Lunch"
	e, err := f.svc.CreateExpense(context.Background(), f.alice, ExpenseInput{Amount: amount(-3), Category: " food ", Description: &desc})
	require.NoError(t, err)

	assert.NotZero(t, e.ID)
	assert.Equal(t, -3.0, e.Amount)
	assert.Equal(t, "food", e.Category)
	assert.Equal(t, f.alice, e.UserID)
	assert.True(t, e.Date.Equal(fixed.Truncate(time.Microsecond)))
	assert.Equal(t, time.UTC, e.Date.Location())

	require.NotNil(t, published)
	assert.Equal(t, OpCreated, published.Operation)
	assert.Equal(t, e.ID, published.ExpenseID)
	assert.NoError(t, published.Validate())
	f.publisher.AssertExpectations(t)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.ExpenseMutationsTotal.WithLabelValues("created")))
}

func TestCreateExpense_PublishFailureDoesNotFail(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	e, err := f.svc.CreateExpense(context.Background(), f.alice, ExpenseInput{Amount: amount(1), Category: "food"})
	require.NoError(t, err)

	list, err := f.svc.ListExpenses(context.Background(), f.alice, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int{e.ID}, ids(list))
}

func TestCreateExpense_WithoutPublisherOrCache(t *testing.T) {
	conn, _ := dbtest.NewSQLite(t)
	svc := NewExpenseService(NewExpenseRepository(), conn, nil, nil, observability.NewMetrics(prometheus.NewRegistry()))

	var owner int
	require.NoError(t, conn.Get(&owner, `INSERT INTO users (username, email, password, created_at) VALUES ('u', 'u@x.io', 'h', ?) RETURNING id`, time.Now().UTC()))

	_, err := svc.CreateExpense(context.Background(), owner, ExpenseInput{Amount: amount(2), Category: "food"})
	require.NoError(t, err)

	rows, err := svc.Summarize(context.Background(), owner, "")
	require.NoError(t, err)
	assert.Equal(t, []SummaryRow{{Key: "food", Total: 2}}, rows)
}

func TestCreateExpense_Validation(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateExpense(context.Background(), f.alice, ExpenseInput{Category: "food"})
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	_, err = f.svc.CreateExpense(context.Background(), f.alice, ExpenseInput{Amount: amount(1), Category: ""})
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	f.publisher.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything)
}

func TestListExpenses_InvalidMonth(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.ListExpenses(context.Background(), f.alice, ListFilter{Month: "2024-13"})
	assert.ErrorIs(t, err, apperror.ErrInvalidFilter)
}

func TestUpdateExpense(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	e := f.create(t, f.alice, 10, "food")

	later := e.Date.Add(time.Hour)
	f.svc.now = func() time.Time { return later }

	updated, err := f.svc.UpdateExpense(context.Background(), f.alice, e.ID, ExpenseInput{Amount: amount(20), Category: "rent"})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Amount)
	assert.Equal(t, "rent", updated.Category)
	assert.True(t, updated.Date.Equal(later))

	list, err := f.svc.ListExpenses(context.Background(), f.alice, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "rent", list[0].Category)
	assert.True(t, list[0].Date.Equal(later))

	f.publisher.AssertNumberOfCalls(t, "PublishJSON", 2)
}

func TestUpdateDelete_ForeignAndMissingAreIdentical(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	e := f.create(t, f.alice, 10, "food")

	_, foreignUpdate := f.svc.UpdateExpense(context.Background(), f.bob, e.ID, ExpenseInput{Amount: amount(1), Category: "x"})
	_, missingUpdate := f.svc.UpdateExpense(context.Background(), f.alice, e.ID+100, ExpenseInput{Amount: amount(1), Category: "x"})
	foreignDelete := f.svc.DeleteExpense(context.Background(), f.bob, e.ID)
	missingDelete := f.svc.DeleteExpense(context.Background(), f.alice, e.ID+100)

	for _, err := range []error{foreignUpdate, missingUpdate, foreignDelete, missingDelete} {
		assert.ErrorIs(t, err, apperror.ErrNotFound)
		assert.Equal(t, "Expense not found", err.Error())
	}

	list, err := f.svc.ListExpenses(context.Background(), f.alice, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 10.0, list[0].Amount)

	// Only the original create was published.
	f.publisher.AssertNumberOfCalls(t, "PublishJSON", 1)
}

func TestDeleteExpense_PublishesDeletedEvent(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.MatchedBy(func(e *Event) bool {
		return e.Operation == OpCreated
	})).Return(nil).Once()
	f.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.MatchedBy(func(e *Event) bool {
		return e.Operation == OpDeleted && e.Category == "food" && e.Amount == 10
	})).Return(nil).Once()

	e := f.create(t, f.alice, 10, "food")
	require.NoError(t, f.svc.DeleteExpense(context.Background(), f.alice, e.ID))

	list, err := f.svc.ListExpenses(context.Background(), f.alice, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	f.publisher.AssertExpectations(t)
}

func TestSummarize_Totals(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.create(t, f.alice, 10, "food")
	f.create(t, f.alice, 5, "food")
	f.create(t, f.alice, 3, "transport")
	f.create(t, f.bob, 50, "food")

	rows, err := f.svc.Summarize(context.Background(), f.alice, "category")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"food": 15, "transport": 3}, totals(rows))

	_, err = f.svc.Summarize(context.Background(), f.alice, "week")
	assert.ErrorIs(t, err, apperror.ErrInvalidGroupBy)
}

func TestSummarize_CachesUntilMutation(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.create(t, f.alice, 10, "food")

	first, err := f.svc.Summarize(context.Background(), f.alice, "category")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.CacheMissesTotal.WithLabelValues("summary")))

	cached, err := f.svc.Summarize(context.Background(), f.alice, "")
	require.NoError(t, err)
	assert.Equal(t, first, cached)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.metrics.CacheHitsTotal.WithLabelValues("summary")))

	f.create(t, f.alice, 5, "food")
	assert.Contains(t, f.cache.deleted, cache.SummaryKey(f.alice, "category"))
	assert.Contains(t, f.cache.deleted, cache.SummaryKey(f.alice, "month"))

	fresh, err := f.svc.Summarize(context.Background(), f.alice, "category")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"food": 15}, totals(fresh))
}

func TestSummarize_CacheErrorFallsBackToStore(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.create(t, f.alice, 4, "food")
	f.cache.getErr = errors.New("redis timeout")

	rows, err := f.svc.Summarize(context.Background(), f.alice, "month")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 4.0, rows[0].Total)
}

func TestSummarize_OwnersDoNotShareCache(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.create(t, f.alice, 1, "food")
	f.create(t, f.bob, 2, "food")

	a, err := f.svc.Summarize(context.Background(), f.alice, "category")
	require.NoError(t, err)
	b, err := f.svc.Summarize(context.Background(), f.bob, "category")
	require.NoError(t, err)

	assert.Equal(t, 1.0, a[0].Total)
	assert.Equal(t, 2.0, b[0].Total)
}
