package user

import (
	"errors"
	"net/http"

	"expense_tracker/internal/apperror"
	"expense_tracker/internal/auth"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	userService UserServiceInterface
}

func NewUserController(userService UserServiceInterface) *UserController {
	return &UserController{
		userService: userService,
	}
}

// SetupRoutes registers the account routes. authMiddleware guards /users/me.
func (a *UserController) SetupRoutes(r gin.IRouter, authMiddleware gin.HandlerFunc) {
	users := r.Group("/users")
	{
		users.POST("/register", a.Register)
		users.POST("/login", a.Login)
		users.POST("/logout", a.Logout)
		users.GET("/me", authMiddleware, a.Me)
	}
}

// Register handles user registration
func (a *UserController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.FromBinding(err))
		return
	}

	user, err := a.userService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login handles user login and returns a bearer token
func (a *UserController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.FromBinding(err))
		return
	}

	tokens, err := a.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// Logout is acknowledged only; tokens are stateless and the client discards its copy.
func (a *UserController) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out. Discard the access token on the client."})
}

// Me returns the authenticated account.
func (a *UserController) Me(c *gin.Context) {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		apperror.Respond(c, apperror.ErrAuthFailure)
		return
	}

	user, err := a.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			apperror.Respond(c, apperror.ErrAuthFailure)
			return
		}
		apperror.Respond(c, apperror.New(apperror.Internal, "failed to load user", err))
		return
	}

	c.JSON(http.StatusOK, user)
}
