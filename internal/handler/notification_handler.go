package handler

import (
	"net/http"

	"dentgo-go/internal/model"
	"dentgo-go/internal/service"

	"github.com/gin-gonic/gin"
)

// NotificationHandler 负责处理用户通知相关的 API 请求。
type NotificationHandler struct {
	notificationService service.NotificationService
}

// NewNotificationHandler 创建一个新的 NotificationHandler 实例。
func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List 返回当前用户的通知，最新的在前。
func (h *NotificationHandler) List(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	items, err := h.notificationService.List(user.ID)
	if err != nil {
		respondError(c, "ListNotifications", err, "Failed to load notifications")
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	c.JSON(http.StatusOK, items)
}

// MarkSeen 将一条通知标记为已读。
func (h *NotificationHandler) MarkSeen(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}
	if err := h.notificationService.MarkSeen(user.ID, id); err != nil {
		respondError(c, "MarkNotificationSeen", err, "Failed to update notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
