package service

import "errors"

// 服务层的哨兵错误，handler 根据它们映射 HTTP 状态码。
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidToken          = errors.New("invalid or expired token")
	ErrInvalidCredential     = errors.New("invalid identity credential")
	ErrUserNotFound          = errors.New("user not found")
	ErrEmptyPrompt           = errors.New("prompt is required")
	ErrSessionNotFound       = errors.New("chat session not found")
	ErrSessionEnded          = errors.New("chat session has already ended")
	ErrDailyLimitReached     = errors.New("daily free message limit reached")
	ErrCardNotFound          = errors.New("card not found")
	ErrPaymentMethodRequired = errors.New("paymentMethodId is required")
	ErrNoSubscription        = errors.New("no active subscription")
	ErrNoCustomer            = errors.New("no billing customer for user")
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrSearchUnavailable     = errors.New("search is not available")
)
