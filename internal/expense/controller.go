package expense

import (
	"net/http"
	"strconv"

	"expense_tracker/internal/apperror"
	"expense_tracker/internal/auth"

	"github.com/gin-gonic/gin"
)

type ExpenseController struct {
	service ExpenseServiceInterface
}

func NewExpenseController(service ExpenseServiceInterface) *ExpenseController {
	return &ExpenseController{
		service: service,
	}
}

// SetupRoutes registers the expense routes behind authMiddleware.
func (ec *ExpenseController) SetupRoutes(r gin.IRouter, authMiddleware gin.HandlerFunc) {
	expenses := r.Group("/expenses")
	expenses.Use(authMiddleware)
	{
		expenses.POST("", ec.CreateExpense)
		expenses.GET("", ec.ListExpenses)
		expenses.GET("/summary", ec.Summary)
		expenses.PUT("/:id", ec.UpdateExpense)
		expenses.DELETE("/:id", ec.DeleteExpense)
	}
}

// CreateExpense handles expense creation for the authenticated user
func (ec *ExpenseController) CreateExpense(c *gin.Context) {
	userID, ok := ownerID(c)
	if !ok {
		return
	}

	var req ExpenseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.FromBinding(err))
		return
	}

	expense, err := ec.service.CreateExpense(c.Request.Context(), userID, req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, expense)
}

// ListExpenses handles GET /expenses?category=&month=
func (ec *ExpenseController) ListExpenses(c *gin.Context) {
	userID, ok := ownerID(c)
	if !ok {
		return
	}

	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		apperror.Respond(c, apperror.FromBinding(err))
		return
	}

	expenses, err := ec.service.ListExpenses(c.Request.Context(), userID, filter)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, expenses)
}

func (ec *ExpenseController) UpdateExpense(c *gin.Context) {
	userID, ok := ownerID(c)
	if !ok {
		return
	}

	id, ok := expenseID(c)
	if !ok {
		return
	}

	var req ExpenseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.FromBinding(err))
		return
	}

	expense, err := ec.service.UpdateExpense(c.Request.Context(), userID, id, req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, expense)
}

func (ec *ExpenseController) DeleteExpense(c *gin.Context) {
	userID, ok := ownerID(c)
	if !ok {
		return
	}

	id, ok := expenseID(c)
	if !ok {
		return
	}

	if err := ec.service.DeleteExpense(c.Request.Context(), userID, id); err != nil {
		apperror.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Summary handles GET /expenses/summary?group_by=category|month. Each row is
// keyed by the grouping name, e.g. {"month": "2024-02", "total": 12.5}.
func (ec *ExpenseController) Summary(c *gin.Context) {
	userID, ok := ownerID(c)
	if !ok {
		return
	}

	groupBy, err := ParseGroupBy(c.Query("group_by"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	rows, err := ec.service.Summarize(c.Request.Context(), userID, string(groupBy))
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	resp := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, gin.H{string(groupBy): row.Key, "total": row.Total})
	}
	c.JSON(http.StatusOK, resp)
}

func ownerID(c *gin.Context) (int, bool) {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		apperror.Respond(c, apperror.ErrAuthFailure)
		return 0, false
	}
	return userID, true
}

func expenseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		apperror.Respond(c, apperror.New(apperror.Validation, "Invalid expense ID", err))
		return 0, false
	}
	return id, true
}
