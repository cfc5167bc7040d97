package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"dentgo-go/pkg/llm"
	"dentgo-go/pkg/oidc"
	"dentgo-go/pkg/payments"
	"dentgo-go/pkg/tasks"
)

// LLM 是 llm.Client 的假实现，记录每次调用的消息。
type LLM struct {
	mu     sync.Mutex
	Answer string
	Err    error
	Calls  [][]llm.Message
}

func (f *LLM) Chat(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, append([]llm.Message(nil), messages...))
	if f.Err != nil {
		return "", f.Err
	}
	return f.Answer, nil
}

// Verifier 按原始 token 查表返回身份。
type Verifier struct {
	Identities map[string]*oidc.Identity
}

func (v *Verifier) Verify(_ context.Context, raw string) (*oidc.Identity, error) {
	id, ok := v.Identities[raw]
	if !ok {
		return nil, errors.New("unknown token")
	}
	cp := *id
	return &cp, nil
}

// Gateway 是 payments.Gateway 的假实现。
type Gateway struct {
	mu            sync.Mutex
	Customers     int
	Cards         map[string]payments.CardDetails
	Detached      []string
	Canceled      []string
	Subscriptions map[string]*payments.Subscription
	// NextSubscription 是下一次 CreateSubscription 的返回值
	NextSubscription *payments.Subscription
	Err              error
	LastPriceID      string
	LastPMID         string
}

func NewGateway() *Gateway {
	return &Gateway{
		Cards:         map[string]payments.CardDetails{},
		Subscriptions: map[string]*payments.Subscription{},
	}
}

func (g *Gateway) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	g.Customers++
	return fmt.Sprintf("cus_%d", g.Customers), nil
}

func (g *Gateway) CreateSetupIntent(_ context.Context, customerID string) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	return "seti_secret_" + customerID, nil
}

func (g *Gateway) CreatePaymentIntent(_ context.Context, customerID string, amount int64, _ string) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	return fmt.Sprintf("pi_secret_%s_%d", customerID, amount), nil
}

func (g *Gateway) GetCard(_ context.Context, paymentMethodID string) (payments.CardDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return payments.CardDetails{}, g.Err
	}
	return g.Cards[paymentMethodID], nil
}

func (g *Gateway) DetachPaymentMethod(_ context.Context, paymentMethodID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Detached = append(g.Detached, paymentMethodID)
	return nil
}

func (g *Gateway) CreateSubscription(_ context.Context, _, priceID, paymentMethodID string) (*payments.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.LastPriceID = priceID
	g.LastPMID = paymentMethodID
	sub := g.NextSubscription
	if sub == nil {
		sub = &payments.Subscription{ID: "sub_1", Status: "active", CurrentPeriodEnd: 1900000000}
	}
	cp := *sub
	g.Subscriptions[cp.ID] = &cp
	return &cp, nil
}

func (g *Gateway) GetSubscription(_ context.Context, subscriptionID string) (*payments.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.Subscriptions[subscriptionID]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	cp := *sub
	return &cp, nil
}

func (g *Gateway) CancelSubscription(_ context.Context, subscriptionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Canceled = append(g.Canceled, subscriptionID)
	delete(g.Subscriptions, subscriptionID)
	return nil
}

func (g *Gateway) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.example.com/" + customerID + "?return=" + returnURL, nil
}

// ObjectStore 是 storage.ObjectStore 的内存实现。
type ObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	PutErr  error
}

func NewObjectStore() *ObjectStore { return &ObjectStore{Objects: map[string][]byte{}} }

func (s *ObjectStore) Put(_ context.Context, objectName string, r io.Reader, _ int64, _ string) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects[objectName] = buf.Bytes()
	return nil
}

func (s *ObjectStore) PresignedURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://objects.example.com/" + objectName, nil
}

func (s *ObjectStore) Remove(_ context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Objects, objectName)
	return nil
}

// Publisher 记录发布的会话索引任务。
type Publisher struct {
	mu    sync.Mutex
	Tasks []tasks.SessionIndexTask
	Err   error
}

func (p *Publisher) PublishSessionTask(_ context.Context, task tasks.SessionIndexTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Tasks = append(p.Tasks, task)
	return nil
}
