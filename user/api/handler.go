package api

import (
	"net/http"

	apperrors "campus-taskhub/backend/pkg/errors"
	"campus-taskhub/backend/pkg/jwt"
	"campus-taskhub/backend/pkg/middleware"
	"campus-taskhub/backend/user/models"
	"campus-taskhub/backend/user/service"

	"github.com/gin-gonic/gin"
)

// UserHandler handles account-related API endpoints
type UserHandler struct {
	service    *service.UserService
	jwtService *jwt.Service
}

func NewUserHandler(service *service.UserService, jwtService *jwt.Service) *UserHandler {
	return &UserHandler{service: service, jwtService: jwtService}
}

// RegisterRoutes registers the routes for the user handler
func (h *UserHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/users")
	{
		group.POST("/register", h.Register)
		group.POST("/login", h.Login)
	}

	authed := router.Group("/api/users")
	authed.Use(middleware.JWTAuth(h.jwtService))
	{
		authed.GET("/profile", h.CurrentProfile)
		authed.GET("/:id", h.GetUser)
	}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("INVALID_REQUEST", "Invalid request format"))
		return
	}

	user, token, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"user":  user,
			"token": token,
		},
	})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("INVALID_REQUEST", "Invalid request format"))
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"user":  user,
			"token": token,
		},
	})
}

// CurrentProfile returns the authenticated user's own account
func (h *UserHandler) CurrentProfile(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

// GetUser returns the public profile of any user
func (h *UserHandler) GetUser(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": profile})
}
