// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"dentgo-go/internal/middleware"
	"dentgo-go/internal/model"
	"dentgo-go/internal/service"
	"dentgo-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// statusFor 把服务层哨兵错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrEmptyPrompt),
		errors.Is(err, service.ErrPaymentMethodRequired),
		errors.Is(err, service.ErrNoCustomer),
		errors.Is(err, service.ErrNoSubscription):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidCredential),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrCardNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSessionEnded):
		return http.StatusConflict
	case errors.Is(err, service.ErrDailyLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrSearchUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError 写入 {"error": msg}。5xx 时只返回通用信息，详细错误写日志。
func respondError(c *gin.Context, op string, err error, fallback string) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Errorf("%s: %v", op, err)
		if status == http.StatusInternalServerError {
			msg = fallback
		}
	} else {
		log.Warnf("%s: request rejected, error: %v", op, err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, op string, err error, msg string) {
	log.Warnf("%s: Invalid request payload, error: %v", op, err)
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// mustUser 返回当前用户。路由都挂在 AuthMiddleware 之后，取不到说明路由配置错误。
func mustUser(c *gin.Context) (*model.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return nil, false
	}
	return user, true
}

// uintParam 解析路径中的正整数 ID。
func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
