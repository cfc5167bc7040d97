// Package cli 实现 dentgo 命令行客户端。
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"dentgo-go/internal/auth"
	"dentgo-go/internal/billing"
	"dentgo-go/internal/config"
	"dentgo-go/internal/localstore"
	"dentgo-go/internal/messagestore"
	"dentgo-go/internal/notify"
	"dentgo-go/pkg/apiclient"
	"dentgo-go/pkg/log"
)

var errNotLoggedIn = errors.New("not logged in, run `dentgo login` first")

// App 是一次命令执行期间共享的依赖，登出时由回调统一清理。
type App struct {
	Config   *config.ClientConfig
	Client   *apiclient.Client
	Auth     *auth.Provider
	Billing  *billing.Provider
	Messages *messagestore.Store
	Notifier notify.Notifier

	closer io.Closer
}

// Factory 根据配置构造 App，测试中替换为指向测试服务器的实现。
type Factory func(cfg *config.ClientConfig, out io.Writer) (*App, error)

// NewApp 打开本地存储并组装客户端依赖。
func NewApp(cfg *config.ClientConfig, out io.Writer) (*App, error) {
	store, err := localstore.OpenSQLite(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("打开本地存储失败: %w", err)
	}
	app, err := Assemble(cfg, store, notify.NewConsole(out))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	app.closer = store
	return app, nil
}

// Assemble 用给定的存储与通知器组装 App。
func Assemble(cfg *config.ClientConfig, storage localstore.Storage, notifier notify.Notifier, opts ...apiclient.Option) (*App, error) {
	client, err := apiclient.New(cfg.APIBase, append([]apiclient.Option{apiclient.WithStorage(storage)}, opts...)...)
	if err != nil {
		return nil, err
	}
	messages, err := messagestore.New(storage)
	if err != nil {
		return nil, err
	}

	authProvider := auth.NewProvider(client)
	billingProvider := billing.NewProvider(client, authProvider)
	authProvider.OnLogout(func() {
		if err := messages.Reset(); err != nil {
			log.Warnf("cli: reset messages on logout, error: %v", err)
		}
	})
	authProvider.OnLogout(billingProvider.Clear)

	return &App{
		Config:   cfg,
		Client:   client,
		Auth:     authProvider,
		Billing:  billingProvider,
		Messages: messages,
		Notifier: notifier,
	}, nil
}

// RequireUser 恢复会话，未登录时返回错误。
func (a *App) RequireUser(ctx context.Context) (*apiclient.User, error) {
	if user := a.Auth.User(); user != nil {
		return user, nil
	}
	user := a.Auth.Bootstrap(ctx)
	if user == nil {
		return nil, errNotLoggedIn
	}
	return user, nil
}

// Close 释放本地存储。
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
