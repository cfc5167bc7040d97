package handler

import (
	"net/http"

	"dentgo-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理提问与每日用量查询。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// AskRequest 定义了 POST /api/chat 的请求体结构。
type AskRequest struct {
	Prompt    string                `json:"prompt"`
	History   []service.HistoryItem `json:"history"`
	SessionID *uint                 `json:"sessionId"`
}

// Ask 把用户的问题转发给模型，并把问答写入会话。
func (h *ChatHandler) Ask(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ChatAsk", err, "Invalid request body")
		return
	}

	resp, err := h.chatService.Ask(c.Request.Context(), user, service.AskRequest{
		Prompt:    req.Prompt,
		History:   req.History,
		SessionID: req.SessionID,
	})
	if err != nil {
		respondError(c, "ChatAsk", err, "Failed to get an answer")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Count 返回当前用户当天已发送的消息数。可用 ?date=YYYY-MM-DD 指定日期。
func (h *ChatHandler) Count(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	count, err := h.chatService.Count(c.Request.Context(), user.ID, c.Query("date"))
	if err != nil {
		respondError(c, "ChatCount", err, "Failed to load usage")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
