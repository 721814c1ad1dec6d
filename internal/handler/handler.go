package handler

import (
	"net/http"

	"expense_tracker/internal/auth"
	"expense_tracker/internal/cache"
	"expense_tracker/internal/config"
	"expense_tracker/internal/expense"
	"expense_tracker/internal/middleware"
	"expense_tracker/internal/observability"
	"expense_tracker/internal/queue"
	"expense_tracker/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps holds the process-wide resources the HTTP layer is built from.
// Redis and Publisher are optional.
type Deps struct {
	DB        *sqlx.DB
	Config    *config.Config
	Redis     *redis.Client
	Publisher *queue.Publisher
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer
}

// SetupHandler initializes all dependencies and routes
func SetupHandler(deps Deps) (*gin.Engine, error) {
	tokens, err := auth.NewTokenService(deps.Config.JWT)
	if err != nil {
		return nil, err
	}
	vault := auth.NewPasswordVault(deps.Config.Password)

	// Interfaces stay nil unless the backing client exists.
	var summaryCache expense.SummaryCacher
	if deps.Redis != nil {
		summaryCache = cache.NewSummaryCache(deps.Redis, deps.Config.Redis.SummaryTTL)
	}
	var publisher expense.EventPublisher
	if deps.Publisher != nil {
		publisher = deps.Publisher
	}

	// Initialize repositories
	userRepo := user.NewUserRepository()
	expenseRepo := expense.NewExpenseRepository()
	auditRepo := expense.NewAuditRepository()

	// Initialize services
	userService := user.NewUserService(userRepo, deps.DB, vault, tokens, deps.Metrics)
	expenseService := expense.NewExpenseService(expenseRepo, deps.DB, summaryCache, publisher, deps.Metrics)
	auditService := expense.NewAuditService(auditRepo, deps.DB)
	resolver := user.NewResolver(tokens, userRepo, deps.DB, deps.Metrics)

	// Initialize controllers
	userController := user.NewUserController(userService)
	expenseController := expense.NewExpenseController(expenseService)
	auditController := expense.NewAuditController(auditService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.PrometheusMiddleware(deps.Metrics))

	setupRoutes(r, deps.Gatherer, middleware.AuthMiddleware(resolver), userController, expenseController, auditController)

	return r, nil
}

// setupRoutes configures all application routes
func setupRoutes(r *gin.Engine, gatherer prometheus.Gatherer, authMiddleware gin.HandlerFunc, userCtrl *user.UserController, expenseCtrl *expense.ExpenseController, auditCtrl *expense.AuditController) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to Expense Tracker"})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	userCtrl.SetupRoutes(r, authMiddleware)
	expenseCtrl.SetupRoutes(r, authMiddleware)
	auditCtrl.SetupRoutes(r, authMiddleware)
}
