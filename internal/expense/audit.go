package expense

import (
	"context"
	"net/http"

	"expense_tracker/internal/apperror"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type AuditServiceInterface interface {
	ListEvents(ctx context.Context, ownerID int) ([]*Event, error)
}

// AuditService reads the audit trail the worker records.
type AuditService struct {
	repo AuditRepositoryInterface
	db   *sqlx.DB
}

func NewAuditService(repo AuditRepositoryInterface, db *sqlx.DB) AuditServiceInterface {
	return &AuditService{repo: repo, db: db}
}

// ListEvents returns the owner's recorded mutations, oldest first.
func (s *AuditService) ListEvents(ctx context.Context, ownerID int) ([]*Event, error) {
	events, err := s.repo.ListByUser(ctx, s.db, ownerID)
	if err != nil {
		return nil, apperror.New(apperror.Internal, "failed to list expense events", err)
	}
	return events, nil
}

type AuditController struct {
	service AuditServiceInterface
}

func NewAuditController(service AuditServiceInterface) *AuditController {
	return &AuditController{service: service}
}

func (ac *AuditController) SetupRoutes(r gin.IRouter, authMiddleware gin.HandlerFunc) {
	r.GET("/expenses/events", authMiddleware, ac.ListEvents)
}

// ListEvents handles GET /expenses/events
func (ac *AuditController) ListEvents(c *gin.Context) {
	userID, ok := ownerID(c)
	if !ok {
		return
	}

	events, err := ac.service.ListEvents(c.Request.Context(), userID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}
