// Package apitest 用内存实现组装完整的 HTTP API，供 handler 与客户端测试使用。
package apitest

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"dentgo-go/internal/handler"
	"dentgo-go/internal/model"
	"dentgo-go/internal/service"
	"dentgo-go/internal/testutil"
	"dentgo-go/pkg/oidc"
	"dentgo-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// 测试中可用的 Google credential。
const (
	UserCredential  = "google-user"
	AdminCredential = "google-admin"
	PriceID         = "price_plus"
)

// Server 持有路由以及所有可供断言的内存依赖。
type Server struct {
	Engine        *gin.Engine
	Users         *testutil.UserRepo
	Chats         *testutil.ChatRepo
	Cards         *testutil.CardRepo
	Notifications *testutil.NotificationRepo
	XRays         *testutil.XRayRepo
	Usage         *testutil.UsageRepo
	Blacklist     *testutil.Blacklist
	LLM           *testutil.LLM
	Gateway       *testutil.Gateway
	Objects       *testutil.ObjectStore
	Publisher     *testutil.Publisher
}

// New 创建一个新的 Server。
func New() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		Users:         testutil.NewUserRepo(),
		Chats:         testutil.NewChatRepo(),
		Cards:         testutil.NewCardRepo(),
		Notifications: testutil.NewNotificationRepo(),
		XRays:         testutil.NewXRayRepo(),
		Usage:         testutil.NewUsageRepo(),
		Blacklist:     testutil.NewBlacklist(),
		LLM:           &testutil.LLM{Answer: "Consider a periapical radiograph."},
		Gateway:       testutil.NewGateway(),
		Objects:       testutil.NewObjectStore(),
		Publisher:     &testutil.Publisher{},
	}

	verifier := &testutil.Verifier{Identities: map[string]*oidc.Identity{
		UserCredential:  {Subject: "g-user", Email: "dr@example.com", Name: "Dr Smile"},
		AdminCredential: {Subject: "g-admin", Email: "admin@example.com", Name: "Admin"},
	}}
	jwtManager := token.NewJWTManager("apitest-secret", 1, 7)

	sessionService := service.NewSessionService(s.Chats, s.Publisher, nil)
	svc := handler.Services{
		Auth: service.NewAuthService(s.Users, s.Blacklist, jwtManager, service.AuthOptions{
			Google:           verifier,
			Apple:            verifier,
			AppleClientID:    "com.dentgo.web",
			AppleRedirectURL: "http://api.dentgo.test/api/auth/apple/callback",
			Gateway:          s.Gateway,
		}),
		Chat: service.NewChatService(s.LLM, s.Chats, s.Usage, service.ChatOptions{
			FreeMessagesPerDay: 1,
			HistoryLimit:       20,
		}),
		Session:      sessionService,
		Payment:      service.NewPaymentService(s.Gateway, s.Users, s.Cards, service.PaymentOptions{DefaultPriceID: PriceID, PortalReturnURL: "http://app.dentgo.test/"}),
		Notification: service.NewNotificationService(s.Notifications),
		XRay:         service.NewXRayService(s.Objects, s.XRays),
		Admin:        service.NewAdminService(s.Users, s.Notifications),
	}

	s.Engine = handler.NewRouter(svc, handler.RouterOptions{
		Cookies: handler.CookieOptions{
			AccessTTL:  jwtManager.AccessTokenTTL(),
			RefreshTTL: jwtManager.RefreshTokenTTL(),
		},
		FrontendURL:    "http://app.dentgo.test/",
		AllowedOrigins: []string{"http://app.dentgo.test"},
	})
	return s
}

// Start 启动一个 httptest 服务器，测试结束时自动关闭。
func (s *Server) Start(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(s.Engine)
	t.Cleanup(ts.Close)
	return ts
}

// PromoteAdmin 把用户设为管理员。
func (s *Server) PromoteAdmin(userID uint) {
	if u, ok := s.Users.Users[userID]; ok {
		u.Role = model.RoleAdmin
	}
}

// NewClient 返回一个带 cookie jar 且不跟随重定向的 http.Client。
func NewClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
