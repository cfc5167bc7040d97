// Package auth 维护客户端的登录状态。
package auth

import (
	"context"
	"sync"

	"dentgo-go/pkg/apiclient"
	"dentgo-go/pkg/log"
)

// API 是 Provider 依赖的接口子集，由 *apiclient.Client 实现。
type API interface {
	Me(ctx context.Context) (*apiclient.User, error)
	Refresh(ctx context.Context) error
	LoginWithGoogle(ctx context.Context, credential string) (*apiclient.User, error)
	Logout(ctx context.Context)
}

// Provider 持有当前用户。每个应用实例一个，登出时清空。
type Provider struct {
	mu           sync.RWMutex
	api          API
	user         *apiclient.User
	initializing bool
	err          error
	onLogout     []func()
}

// NewProvider 创建一个处于初始化中的 Provider。
func NewProvider(api API) *Provider {
	return &Provider{api: api, initializing: true}
}

// Bootstrap 恢复会话：先取当前用户，401 时刷新一次并重试一次，其余情况视为未登录。
func (p *Provider) Bootstrap(ctx context.Context) *apiclient.User {
	user, err := p.api.Me(ctx)
	if err != nil && apiclient.IsUnauthorized(err) {
		if refreshErr := p.api.Refresh(ctx); refreshErr == nil {
			user, err = p.api.Me(ctx)
		} else {
			log.Debugf("auth: refresh failed: %v", refreshErr)
		}
	}
	if err != nil {
		log.Debugf("auth: bootstrap ended unauthenticated: %v", err)
		user = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = user
	p.initializing = false
	return user
}

// LoginWithGoogle 用 Google credential 登录。
func (p *Provider) LoginWithGoogle(ctx context.Context, credential string) (*apiclient.User, error) {
	user, err := p.api.LoginWithGoogle(ctx, credential)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.err = err
		return nil, err
	}
	p.user = user
	p.err = nil
	p.initializing = false
	return user, nil
}

// Login 直接设置当前用户，例如 Apple 回调完成之后。
func (p *Provider) Login(user *apiclient.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = user
	p.err = nil
	p.initializing = false
}

// Logout 通知服务端登出，无论结果如何都清空用户并执行登出回调。
func (p *Provider) Logout(ctx context.Context) {
	p.api.Logout(ctx)

	p.mu.Lock()
	p.user = nil
	hooks := append([]func(){}, p.onLogout...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// OnLogout 注册登出时执行的回调。
func (p *Provider) OnLogout(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLogout = append(p.onLogout, fn)
}

// User 返回当前用户，未登录时为 nil。
func (p *Provider) User() *apiclient.User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.user
}

func (p *Provider) IsAuthenticated() bool {
	return p.User() != nil
}

func (p *Provider) Initializing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initializing
}

// Err 返回最近一次登录失败的错误。
func (p *Provider) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

func (p *Provider) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}
