// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"dentgo-go/internal/model"
	"dentgo-go/internal/repository"
	"dentgo-go/pkg/log"
	"dentgo-go/pkg/oidc"
	"dentgo-go/pkg/payments"
	"dentgo-go/pkg/token"

	"gorm.io/gorm"
)

const appleAuthorizeURL = "https://appleid.apple.com/auth/authorize"

// IdentityVerifier 校验第三方签发的 ID token。
type IdentityVerifier interface {
	Verify(ctx context.Context, raw string) (*oidc.Identity, error)
}

// TokenPair 是一次登录或刷新后签发的 token。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService 接口定义了登录、会话与账号相关的业务操作。
type AuthService interface {
	LoginWithGoogle(ctx context.Context, credential string) (*model.User, *TokenPair, error)
	LoginWithApple(ctx context.Context, idToken string) (*model.User, *TokenPair, error)
	AppleAuthURL(state string) string
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	DeleteAccount(ctx context.Context, user *model.User) error
}

// AuthOptions 汇总了 AuthService 的可选依赖。
type AuthOptions struct {
	Google           IdentityVerifier
	Apple            IdentityVerifier
	AppleClientID    string
	AppleRedirectURL string
	// Gateway 与 Searcher 为 nil 时跳过删除账号时的外部清理
	Gateway  payments.Gateway
	Searcher SessionSearcher
}

type authService struct {
	userRepo   repository.UserRepository
	blacklist  repository.TokenBlacklist
	jwtManager *token.JWTManager
	opts       AuthOptions
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(userRepo repository.UserRepository, blacklist repository.TokenBlacklist, jwtManager *token.JWTManager, opts AuthOptions) AuthService {
	return &authService{
		userRepo:   userRepo,
		blacklist:  blacklist,
		jwtManager: jwtManager,
		opts:       opts,
	}
}

func (s *authService) LoginWithGoogle(ctx context.Context, credential string) (*model.User, *TokenPair, error) {
	return s.login(ctx, s.opts.Google, credential, false)
}

func (s *authService) LoginWithApple(ctx context.Context, idToken string) (*model.User, *TokenPair, error) {
	return s.login(ctx, s.opts.Apple, idToken, true)
}

func (s *authService) login(ctx context.Context, verifier IdentityVerifier, raw string, apple bool) (*model.User, *TokenPair, error) {
	if strings.TrimSpace(raw) == "" || verifier == nil {
		return nil, nil, ErrInvalidCredential
	}

	// 1. 校验 ID token
	identity, err := verifier.Verify(ctx, raw)
	if err != nil {
		log.Warnf("[AuthService] 第三方 ID token 校验失败: %v", err)
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	// 2. 查找或创建本地用户
	user, err := s.upsertUser(identity, apple)
	if err != nil {
		return nil, nil, err
	}

	// 3. 签发 token
	pair, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("[AuthService] 用户登录成功, userID: %d", user.ID)
	return user, pair, nil
}

// upsertUser 先按第三方 subject 查找，其次按邮箱关联已有账号，最后新建。
func (s *authService) upsertUser(identity *oidc.Identity, apple bool) (*model.User, error) {
	find := s.userRepo.FindByGoogleSubject
	if apple {
		find = s.userRepo.FindByAppleSubject
	}

	user, err := find(identity.Subject)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if user == nil && identity.Email != "" {
		user, err = s.userRepo.FindByEmail(identity.Email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if user == nil {
		if identity.Email == "" {
			return nil, fmt.Errorf("%w: missing email", ErrInvalidCredential)
		}
		user = &model.User{
			Email:   identity.Email,
			Name:    identity.Name,
			Picture: identity.Picture,
			Role:    model.RoleUser,
			Plan:    model.PlanFree,
		}
		linkSubject(user, identity.Subject, apple)
		if err := s.userRepo.Create(user); err != nil {
			return nil, err
		}
		return user, nil
	}

	linkSubject(user, identity.Subject, apple)
	if identity.Name != "" {
		user.Name = identity.Name
	}
	if identity.Picture != "" {
		user.Picture = identity.Picture
	}
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func linkSubject(user *model.User, sub string, apple bool) {
	if apple {
		user.AppleSubject = &sub
	} else {
		user.GoogleSubject = &sub
	}
}

func (s *authService) issue(user *model.User) (*TokenPair, error) {
	access, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// AppleAuthURL 返回 Apple 授权页地址，回调以 form_post 方式提交 id_token。
func (s *authService) AppleAuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", s.opts.AppleClientID)
	q.Set("redirect_uri", s.opts.AppleRedirectURL)
	q.Set("response_type", "code id_token")
	q.Set("response_mode", "form_post")
	q.Set("scope", "name email")
	q.Set("state", state)
	return appleAuthorizeURL + "?" + q.Encode()
}

// Authenticate 校验 access token 并返回对应用户。
func (s *authService) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.jwtManager.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if err := s.checkBlacklist(ctx, claims); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Refresh 校验 refresh token 并轮换出一对新 token，旧 refresh token 立即失效。
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwtManager.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if err := s.checkBlacklist(ctx, claims); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	pair, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, claims); err != nil {
		log.Warnf("[AuthService] 旧 refresh token 加入黑名单失败: %v", err)
	}
	return pair, nil
}

// Logout 将仍有效的 access/refresh token 加入黑名单，无效 token 直接忽略。
func (s *authService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	for _, raw := range []string{accessToken, refreshToken} {
		if raw == "" {
			continue
		}
		claims, err := s.jwtManager.VerifyToken(raw)
		if err != nil {
			continue
		}
		if err := s.revoke(ctx, claims); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAccount 取消付费订阅、清理搜索索引并删除用户的全部数据。
func (s *authService) DeleteAccount(ctx context.Context, user *model.User) error {
	if user.StripeSubscriptionID != nil && s.opts.Gateway != nil {
		if err := s.opts.Gateway.CancelSubscription(ctx, *user.StripeSubscriptionID); err != nil {
			log.Warnf("[AuthService] 删除账号时取消订阅失败, userID: %d, error: %v", user.ID, err)
		}
	}
	if s.opts.Searcher != nil {
		if err := s.opts.Searcher.DeleteUserSessions(ctx, user.ID); err != nil {
			log.Warnf("[AuthService] 删除账号时清理搜索索引失败, userID: %d, error: %v", user.ID, err)
		}
	}
	if err := s.userRepo.Delete(user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	log.Infof("[AuthService] 账号已删除, userID: %d", user.ID)
	return nil
}

func (s *authService) checkBlacklist(ctx context.Context, claims *token.CustomClaims) error {
	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrInvalidToken
	}
	return nil
}

func (s *authService) revoke(ctx context.Context, claims *token.CustomClaims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	return s.blacklist.Add(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}
