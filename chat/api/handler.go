package api

import (
	"net/http"
	"strconv"

	"campus-taskhub/backend/chat/models"
	"campus-taskhub/backend/chat/service"
	apperrors "campus-taskhub/backend/pkg/errors"
	"campus-taskhub/backend/pkg/jwt"
	"campus-taskhub/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// ChatHandler handles the chat API endpoints
type ChatHandler struct {
	service    *service.ChatService
	jwtService *jwt.Service
}

func NewChatHandler(service *service.ChatService, jwtService *jwt.Service) *ChatHandler {
	return &ChatHandler{service: service, jwtService: jwtService}
}

// RegisterRoutes registers the routes for the chat handler
func (h *ChatHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/chat")
	group.Use(middleware.JWTAuth(h.jwtService))
	{
		group.POST("/send", h.Send)
		group.GET("/rooms", h.Rooms)
		group.GET("/room/:taskId/:userId", h.RoomMessages)
		group.PUT("/room/:taskId/:userId/read", h.MarkRead)
		group.DELETE("/messages/:id", h.DeleteMessage)
	}
}

// Send accepts a candidate message and runs it through the ingestion gate
func (h *ChatHandler) Send(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("INVALID_REQUEST", "Invalid request format"))
		return
	}

	message, err := h.service.SendMessage(c.Request.Context(), middleware.CurrentUserID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": message})
}

// Rooms returns the viewer's conversation list, newest first
func (h *ChatHandler) Rooms(c *gin.Context) {
	conversations, err := h.service.ListConversations(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": conversations})
}

// RoomMessages returns one page of a room's history
func (h *ChatHandler) RoomMessages(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.Error(apperrors.NewValidationError("INVALID_REQUEST", "page must be a number"))
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "0"))
	if err != nil {
		c.Error(apperrors.NewValidationError("INVALID_REQUEST", "pageSize must be a number"))
		return
	}

	result, err := h.service.RoomMessages(
		c.Request.Context(),
		middleware.CurrentUserID(c),
		c.Param("taskId"),
		c.Param("userId"),
		page,
		pageSize,
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// MarkRead marks every message addressed to the viewer in the room as read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	err := h.service.MarkRead(
		c.Request.Context(),
		middleware.CurrentUserID(c),
		c.Param("taskId"),
		c.Param("userId"),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteMessage soft-deletes one of the viewer's own messages
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	err := h.service.DeleteMessage(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
