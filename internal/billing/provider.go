// Package billing 缓存卡片与订阅状态，并封装支付相关的变更操作。
package billing

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"dentgo-go/pkg/apiclient"
)

// 缓存键。
const (
	KeyCards        = "cards"
	KeySubscription = "subscription"
)

// API 是 Provider 依赖的接口子集，由 *apiclient.Client 实现。
type API interface {
	ListCards(ctx context.Context) ([]apiclient.Card, error)
	AddCard(ctx context.Context, paymentMethodID, nickName string) (*apiclient.Card, error)
	RemoveCard(ctx context.Context, id string) error
	GetSubscription(ctx context.Context) (*apiclient.Subscription, error)
	CreateSubscription(ctx context.Context, priceID, paymentMethodID string) (*apiclient.SubscriptionIntent, error)
	CreateSetupIntent(ctx context.Context) (string, error)
	CreatePortalSession(ctx context.Context, returnURL string) (string, error)
}

// Session 报告当前是否已登录，*auth.Provider 满足该接口。
type Session interface {
	IsAuthenticated() bool
}

// CardData 是规范化后的卡片。
type CardData struct {
	ID              string
	Network         string
	Last4           string
	IsActive        bool
	PaymentMethodID string
}

// Provider 只在登录状态下拉取数据，同一个键的并发请求合并为一次。
type Provider struct {
	api     API
	session Session

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]any
	// gen 在每次失效时递增，失效前发起的请求结果不写入缓存
	gen map[string]uint64
}

func NewProvider(api API, session Session) *Provider {
	return &Provider{api: api, session: session, cache: make(map[string]any), gen: make(map[string]uint64)}
}

// Cards 返回已保存的卡片，未登录时返回空列表。
func (p *Provider) Cards(ctx context.Context) ([]CardData, error) {
	if !p.session.IsAuthenticated() {
		return []CardData{}, nil
	}
	v, err := p.query(ctx, KeyCards, func(ctx context.Context) (any, error) {
		cards, err := p.api.ListCards(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]CardData, 0, len(cards))
		for _, c := range cards {
			out = append(out, Normalize(c))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]CardData(nil), v.([]CardData)...), nil
}

// Subscription 返回当前订阅，未登录时为 nil。
func (p *Provider) Subscription(ctx context.Context) (*apiclient.Subscription, error) {
	if !p.session.IsAuthenticated() {
		return nil, nil
	}
	v, err := p.query(ctx, KeySubscription, func(ctx context.Context) (any, error) {
		return p.api.GetSubscription(ctx)
	})
	if err != nil {
		return nil, err
	}
	sub := *v.(*apiclient.Subscription)
	return &sub, nil
}

func (p *Provider) query(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	p.mu.RLock()
	v, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		p.mu.RLock()
		gen := p.gen[key]
		p.mu.RUnlock()

		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		if p.gen[key] == gen {
			p.cache[key] = v
		}
		p.mu.Unlock()
		return v, nil
	})
	return v, err
}

// AddCard 保存一张卡片并使卡片缓存失效。
func (p *Provider) AddCard(ctx context.Context, paymentMethodID, nickName string) (CardData, error) {
	card, err := p.api.AddCard(ctx, paymentMethodID, nickName)
	if err != nil {
		return CardData{}, err
	}
	p.invalidate(KeyCards)
	return Normalize(*card), nil
}

// RemoveCard 删除一张卡片并使卡片缓存失效。
func (p *Provider) RemoveCard(ctx context.Context, id string) error {
	if err := p.api.RemoveCard(ctx, id); err != nil {
		return err
	}
	p.invalidate(KeyCards)
	return nil
}

// Subscribe 创建或变更订阅并使订阅缓存失效。
func (p *Provider) Subscribe(ctx context.Context, priceID, paymentMethodID string) (*apiclient.SubscriptionIntent, error) {
	intent, err := p.api.CreateSubscription(ctx, priceID, paymentMethodID)
	if err != nil {
		return nil, err
	}
	p.invalidate(KeySubscription)
	return intent, nil
}

func (p *Provider) CreateSetupIntent(ctx context.Context) (string, error) {
	return p.api.CreateSetupIntent(ctx)
}

func (p *Provider) CreatePortalSession(ctx context.Context, returnURL string) (string, error) {
	return p.api.CreatePortalSession(ctx, returnURL)
}

// Refresh 使两个缓存都失效。
func (p *Provider) Refresh() {
	p.invalidate(KeyCards, KeySubscription)
}

// Prefetch 在登录后预取卡片和订阅。
func (p *Provider) Prefetch(ctx context.Context) error {
	if _, err := p.Cards(ctx); err != nil {
		return err
	}
	_, err := p.Subscription(ctx)
	return err
}

// Clear 在登出时清空缓存。
func (p *Provider) Clear() {
	p.Refresh()
}

func (p *Provider) invalidate(keys ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		delete(p.cache, k)
		p.gen[k]++
		p.group.Forget(k)
	}
}

// Normalize 把服务端卡片转换成展示用的 CardData。
func Normalize(c apiclient.Card) CardData {
	last4 := c.Last4
	if last4 == "" {
		last4 = c.PaymentMethodID
		if len(last4) > 4 {
			last4 = last4[len(last4)-4:]
		}
	}
	network := c.Brand
	if network == "" && c.NickName != nil && *c.NickName != "" {
		network = *c.NickName
	}
	if network == "" {
		network = "unknown"
	}
	return CardData{
		ID:              c.ID,
		Network:         network,
		Last4:           last4,
		IsActive:        true,
		PaymentMethodID: c.PaymentMethodID,
	}
}
