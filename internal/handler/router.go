package handler

import (
	"net/http"

	"dentgo-go/internal/middleware"
	"dentgo-go/internal/model"
	"dentgo-go/internal/service"

	"github.com/gin-gonic/gin"
)

// Services 汇总了路由需要的全部业务服务。
type Services struct {
	Auth         service.AuthService
	Chat         service.ChatService
	Session      service.SessionService
	Payment      service.PaymentService
	Notification service.NotificationService
	XRay         service.XRayService
	Admin        service.AdminService
}

// RouterOptions 是与业务无关的路由参数。
type RouterOptions struct {
	Cookies        CookieOptions
	FrontendURL    string
	AllowedOrigins []string
}

// NewRouter 创建注册了全部 API 路由的 gin 引擎。
func NewRouter(svc Services, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(opts.AllowedOrigins))

	authHandler := NewAuthHandler(svc.Auth, opts.Cookies, opts.FrontendURL)
	userHandler := NewUserHandler()
	chatHandler := NewChatHandler(svc.Chat)
	sessionHandler := NewSessionHandler(svc.Session)
	paymentHandler := NewPaymentHandler(svc.Payment)
	notificationHandler := NewNotificationHandler(svc.Notification)
	xrayHandler := NewXRayHandler(svc.XRay)
	adminHandler := NewAdminHandler(svc.Admin)
	authed := middleware.AuthMiddleware(svc.Auth)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// Auth 路由组
		auth := api.Group("/auth")
		{
			auth.GET("/csrf-token", authHandler.CSRFToken)
			auth.POST("/google", authHandler.Google)
			auth.GET("/apple", authHandler.Apple)
			auth.POST("/apple/callback", authHandler.AppleCallback)
			auth.POST("/refresh", middleware.CSRFMiddleware(), authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
			auth.DELETE("/delete", authed, authHandler.Delete)
		}

		api.GET("/users/me", authed, userHandler.Me)

		chat := api.Group("/chat", authed)
		{
			chat.POST("", chatHandler.Ask)
			chat.GET("/count", chatHandler.Count)
		}

		// 会话历史路由组
		chats := api.Group("/chats", authed)
		{
			chats.GET("", sessionHandler.List)
			chats.GET("/search", sessionHandler.Search)
			chats.GET("/:id", sessionHandler.Get)
			chats.PATCH("/:id/end", sessionHandler.End)
		}

		payments := api.Group("/payments", authed)
		{
			payments.GET("/cards", paymentHandler.ListCards)
			payments.POST("/cards", paymentHandler.AddCard)
			payments.DELETE("/cards/:id", paymentHandler.RemoveCard)
			payments.POST("/create-customer", paymentHandler.CreateCustomer)
			payments.POST("/create-setup-intent", paymentHandler.CreateSetupIntent)
			payments.POST("/create-payment-intent", paymentHandler.CreatePaymentIntent)
			payments.POST("/create-subscription", paymentHandler.CreateSubscription)
			payments.POST("/cancel-subscription", paymentHandler.CancelSubscription)
			payments.POST("/create-portal-session", paymentHandler.CreatePortalSession)
		}

		subscriptions := api.Group("/subscriptions", authed)
		{
			subscriptions.GET("", paymentHandler.ActiveSubscription)
			subscriptions.POST("", paymentHandler.CreateSubscription)
		}

		notifications := api.Group("/notifications", authed)
		{
			notifications.GET("", notificationHandler.List)
			notifications.POST("/:id/seen", notificationHandler.MarkSeen)
		}

		api.POST("/xray-upload", authed, xrayHandler.Upload)
		api.GET("/xray-upload", authed, xrayHandler.List)

		// 管理员路由组，需要同时通过认证和角色检查
		admin := api.Group("/admin", authed, middleware.RequireRole(model.RoleAdmin))
		{
			admin.POST("/notifications", adminHandler.Broadcast)
			admin.POST("/users/:userId/notifications", adminHandler.Notify)
		}
	}

	return r
}
