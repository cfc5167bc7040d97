package handler

import (
	"net/http"

	"dentgo-go/internal/model"
	"dentgo-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler 负责处理会话历史相关的 API 请求。
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler 实例。
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// List 返回当前用户的全部会话，按开始时间倒序。
func (h *SessionHandler) List(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	sessions, err := h.sessionService.List(user.ID)
	if err != nil {
		respondError(c, "ListSessions", err, "Failed to load sessions")
		return
	}
	if sessions == nil {
		sessions = []model.ChatSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

// Get 返回单个会话及其全部消息。
func (h *SessionHandler) Get(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}
	session, err := h.sessionService.Get(user.ID, id)
	if err != nil {
		respondError(c, "GetSession", err, "Failed to load session")
		return
	}
	c.JSON(http.StatusOK, session)
}

// EndSessionRequest 定义了结束会话的可选请求体。
type EndSessionRequest struct {
	Title *string `json:"title"`
}

// End 结束会话并可选地设置标题。
func (h *SessionHandler) End(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	var req EndSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "EndSession", err, "Invalid request body")
			return
		}
	}

	session, err := h.sessionService.End(c.Request.Context(), user.ID, id, req.Title)
	if err != nil {
		respondError(c, "EndSession", err, "Failed to end session")
		return
	}
	c.JSON(http.StatusOK, session)
}

// Search 在当前用户已结束的会话中做全文检索。
func (h *SessionHandler) Search(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	hits, err := h.sessionService.Search(c.Request.Context(), user.ID, c.Query("q"))
	if err != nil {
		respondError(c, "SearchSessions", err, "Search failed")
		return
	}
	if hits == nil {
		hits = []model.SessionSearchHit{}
	}
	c.JSON(http.StatusOK, hits)
}
