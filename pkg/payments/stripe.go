// Package payments 封装了与支付处理方 (Stripe) 的交互。
package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// CardDetails 是从支付方式中读取的展示信息。
type CardDetails struct {
	Brand string
	Last4 string
}

// Subscription 是服务层关心的订阅字段。
type Subscription struct {
	ID               string
	Status           string
	ClientSecret     string
	CurrentPeriodEnd int64
	CancelAt         int64
}

// Gateway 定义了服务层使用的全部支付操作。
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateSetupIntent(ctx context.Context, customerID string) (string, error)
	CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency string) (string, error)
	GetCard(ctx context.Context, paymentMethodID string) (CardDetails, error)
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error
	CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// StripeGateway 是基于 stripe-go 的 Gateway 实现。
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway 创建一个 StripeGateway。backends 为 nil 时使用 Stripe 官方地址。
func NewStripeGateway(secretKey string, backends *stripe.Backends) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreateSetupIntent(ctx context.Context, customerID string) (string, error) {
	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	si, err := g.api.SetupIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("create setup intent: %w", err)
	}
	return si.ClientSecret, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ClientSecret, nil
}

func (g *StripeGateway) GetCard(ctx context.Context, paymentMethodID string) (CardDetails, error) {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx
	pm, err := g.api.PaymentMethods.Get(paymentMethodID, params)
	if err != nil {
		return CardDetails{}, fmt.Errorf("get payment method: %w", err)
	}
	if pm.Card == nil {
		return CardDetails{}, nil
	}
	return CardDetails{Brand: string(pm.Card.Brand), Last4: pm.Card.Last4}, nil
}

func (g *StripeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx
	if _, err := g.api.PaymentMethods.Detach(paymentMethodID, params); err != nil {
		return fmt.Errorf("detach payment method: %w", err)
	}
	return nil
}

// CreateSubscription 以 default_incomplete 创建订阅，需要 3DS 时返回 client secret。
func (g *StripeGateway) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	if paymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(paymentMethodID)
	}
	params.AddExpand("latest_invoice.payment_intent")
	params.Context = ctx
	s, err := g.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return toSubscription(s), nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return toSubscription(s), nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := g.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

func toSubscription(s *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:               s.ID,
		Status:           string(s.Status),
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		CancelAt:         s.CancelAt,
	}
	if s.LatestInvoice != nil && s.LatestInvoice.PaymentIntent != nil {
		out.ClientSecret = s.LatestInvoice.PaymentIntent.ClientSecret
	}
	return out
}
