package apiclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// APIError 表示服务端返回的非 2xx 响应。
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsStatus 判断 err 是否为指定状态码的 APIError。
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsUnauthorized 判断 err 是否为 401。
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// newAPIError 优先使用 body 中的 error 字段，其次是原始文本，最后是调用方给出的默认信息。
func newAPIError(status int, body []byte, fallback string) *APIError {
	msg := strings.TrimSpace(string(body))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = payload.Error
	}
	if msg == "" {
		msg = fallback
	}
	return &APIError{Status: status, Message: msg}
}
