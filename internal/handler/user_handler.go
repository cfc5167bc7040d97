package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责处理当前用户资料相关的 API 请求。
type UserHandler struct{}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me 返回当前登录用户的资料。
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
