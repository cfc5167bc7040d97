package handler

import (
	"net/http"
	"time"

	"dentgo-go/internal/config"
	"dentgo-go/internal/middleware"
	"dentgo-go/internal/service"
	"dentgo-go/pkg/log"
	"dentgo-go/pkg/token"

	"github.com/gin-gonic/gin"
)

const appleStateCookie = "apple_state"

// CookieOptions 控制会话 cookie 的属性。
type CookieOptions struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthHandler 负责处理登录、刷新、登出与删除账号的 API 请求。
type AuthHandler struct {
	authService service.AuthService
	cookies     CookieOptions
	frontendURL string
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService service.AuthService, cookies CookieOptions, frontendURL string) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies, frontendURL: frontendURL}
}

// GoogleLoginRequest 定义了 Google 登录 API 的请求体结构。
type GoogleLoginRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// Google 处理 Google ID token 登录。
func (h *AuthHandler) Google(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "GoogleLogin", err, "credential is required")
		return
	}

	user, pair, err := h.authService.LoginWithGoogle(c.Request.Context(), req.Credential)
	if err != nil {
		respondError(c, "GoogleLogin", err, "Google login failed")
		return
	}

	h.setSession(c, pair)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Apple 重定向到 Apple 授权页。
func (h *AuthHandler) Apple(c *gin.Context) {
	state := token.GenerateRandomString(16)
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(appleStateCookie, state, 600, "/api/auth/apple", h.cookies.Domain, h.cookies.Secure, true)
	c.Redirect(http.StatusFound, h.authService.AppleAuthURL(state))
}

// AppleCallback 处理 Apple 以 form_post 提交的回调，成功后回到前端。
func (h *AuthHandler) AppleCallback(c *gin.Context) {
	state, err := c.Cookie(appleStateCookie)
	if err != nil || state == "" || c.PostForm("state") != state {
		log.Warnf("AppleCallback: state mismatch")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state"})
		return
	}

	_, pair, err := h.authService.LoginWithApple(c.Request.Context(), c.PostForm("id_token"))
	if err != nil {
		respondError(c, "AppleCallback", err, "Apple login failed")
		return
	}

	h.setSession(c, pair)
	c.Redirect(http.StatusFound, h.frontendURL)
}

// CSRFToken 签发 double-submit CSRF token，同时写入 cookie。
func (h *AuthHandler) CSRFToken(c *gin.Context) {
	csrf := token.GenerateRandomString(32)
	c.SetSameSite(http.SameSiteLaxMode)
	// 前端需要同时读取并回传，所以不是 HttpOnly
	c.SetCookie(middleware.CSRFCookie, csrf, int(time.Hour.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, false)
	c.JSON(http.StatusOK, gin.H{"csrfToken": csrf})
}

// Refresh 使用 refresh_token cookie 换取新的会话 cookie。
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie(middleware.RefreshTokenCookie)
	if err != nil || refresh == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No refresh token"})
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), refresh)
	if err != nil {
		h.clearSession(c)
		respondError(c, "RefreshToken", err, "Failed to refresh session")
		return
	}

	h.setSession(c, pair)
	log.Info("Token refreshed successfully")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Logout 吊销当前 token 并清除 cookie，总是返回成功。
func (h *AuthHandler) Logout(c *gin.Context) {
	refresh, _ := c.Cookie(middleware.RefreshTokenCookie)
	if err := h.authService.Logout(c.Request.Context(), middleware.AccessToken(c), refresh); err != nil {
		log.Warnf("Logout: failed to revoke tokens, error: %v", err)
	}
	h.clearSession(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Delete 永久删除当前用户的账号。
func (h *AuthHandler) Delete(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	if err := h.authService.DeleteAccount(c.Request.Context(), user); err != nil {
		respondError(c, "DeleteAccount", err, "Failed to delete account")
		return
	}
	refresh, _ := c.Cookie(middleware.RefreshTokenCookie)
	if err := h.authService.Logout(c.Request.Context(), middleware.AccessToken(c), refresh); err != nil {
		log.Warnf("DeleteAccount: failed to revoke tokens, userID: %d, error: %v", user.ID, err)
	}
	h.clearSession(c)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *AuthHandler) setSession(c *gin.Context, pair *service.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken, int(h.cookies.AccessTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, pair.RefreshToken, int(h.cookies.RefreshTTL.Seconds()), "/api/auth", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/api/auth", h.cookies.Domain, h.cookies.Secure, true)
}

// CookieOptionsFromConfig 根据配置与 JWT 有效期构造 cookie 参数。
func CookieOptionsFromConfig(cfg config.AuthConfig, jwtManager *token.JWTManager) CookieOptions {
	return CookieOptions{
		Domain:     cfg.CookieDomain,
		Secure:     cfg.CookieSecure,
		AccessTTL:  jwtManager.AccessTokenTTL(),
		RefreshTTL: jwtManager.RefreshTokenTTL(),
	}
}
