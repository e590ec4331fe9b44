package api

import (
	"net/http"
	"strconv"

	apperrors "campus-taskhub/backend/pkg/errors"
	"campus-taskhub/backend/pkg/jwt"
	"campus-taskhub/backend/pkg/middleware"
	"campus-taskhub/backend/task/models"
	"campus-taskhub/backend/task/service"

	"github.com/gin-gonic/gin"
)

// TaskHandler handles task lifecycle API endpoints
type TaskHandler struct {
	service    *service.TaskService
	jwtService *jwt.Service
}

func NewTaskHandler(service *service.TaskService, jwtService *jwt.Service) *TaskHandler {
	return &TaskHandler{service: service, jwtService: jwtService}
}

// RegisterRoutes registers the routes for the task handler
func (h *TaskHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/tasks")
	group.Use(middleware.JWTAuth(h.jwtService))
	{
		group.POST("", h.Publish)
		group.GET("", h.List)
		group.GET("/my/published", h.MyPublished)
		group.GET("/my/applied", h.MyApplied)
		group.GET("/my/assigned", h.MyAssigned)
		group.GET("/:id", h.Get)
		group.POST("/:id/apply", h.Apply)
		group.POST("/:id/assign", h.Assign)
	}
}

func (h *TaskHandler) Publish(c *gin.Context) {
	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("INVALID_REQUEST", "Invalid request format"))
		return
	}

	task, err := h.service.Publish(c.Request.Context(), middleware.CurrentUserID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": task})
}

func (h *TaskHandler) List(c *gin.Context) {
	status := models.TaskStatus(c.Query("status"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	tasks, err := h.service.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": tasks})
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": task})
}

func (h *TaskHandler) MyPublished(c *gin.Context) {
	tasks, err := h.service.MyPublished(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": tasks})
}

func (h *TaskHandler) MyApplied(c *gin.Context) {
	tasks, err := h.service.MyApplied(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": tasks})
}

func (h *TaskHandler) MyAssigned(c *gin.Context) {
	tasks, err := h.service.MyAssigned(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": tasks})
}

func (h *TaskHandler) Apply(c *gin.Context) {
	var req models.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("INVALID_REQUEST", "Invalid request format"))
		return
	}

	app, err := h.service.Apply(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": app})
}

func (h *TaskHandler) Assign(c *gin.Context) {
	var req models.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("INVALID_REQUEST", "Invalid request format"))
		return
	}

	task, err := h.service.Assign(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": task})
}
