package handler

import (
	"errors"
	"net/http"

	"dentgo-go/internal/service"
	"dentgo-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// NotificationRequest 定义了发送通知的请求体。
type NotificationRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body"`
}

// Broadcast 向所有用户发送通知。
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "AdminBroadcast", err, "title is required")
		return
	}

	count, err := h.adminService.Broadcast(req.Title, req.Body)
	if err != nil {
		respondError(c, "AdminBroadcast", err, "Failed to send notifications")
		return
	}

	log.Infof("[AdminHandler] 广播通知已发送给 %d 个用户", count)
	c.JSON(http.StatusCreated, gin.H{"recipients": count})
}

// Notify 向指定用户发送通知。
func (h *AdminHandler) Notify(c *gin.Context) {
	userID, ok := uintParam(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var req NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "AdminNotify", err, "title is required")
		return
	}

	if err := h.adminService.Notify(userID, req.Title, req.Body); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		respondError(c, "AdminNotify", err, "Failed to send notification")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recipients": 1})
}
