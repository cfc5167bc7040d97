// Package wizard 实现订阅向导：选择套餐、添加支付方式、确认、完成。
package wizard

import (
	"context"
	"errors"
	"fmt"

	"dentgo-go/internal/billing"
	"dentgo-go/internal/notify"
	"dentgo-go/pkg/apiclient"
)

// FreePriceID 用于降级到 Basic 套餐。
const FreePriceID = "FREE"

var ErrInvalidTransition = errors.New("invalid wizard transition")

// Step 是向导的当前步骤。
type Step int

const (
	StepChoose Step = iota
	StepPayment
	StepReview
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepChoose:
		return "choose"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	case StepSuccess:
		return "success"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

type event int

const (
	evChoose event = iota
	evChooseWithCard
	evCardSaved
	evNeedCard
	evSubscribed
	evBack
)

type transitionKey struct {
	from  Step
	plan  Plan
	event event
}

// 付款步骤只出现在 Plus 的条目里，Basic 永远进不去。
var transitions = map[transitionKey]Step{
	{StepChoose, PlanBasic, evChoose}:        StepReview,
	{StepChoose, PlanPlus, evChoose}:         StepPayment,
	{StepChoose, PlanPlus, evChooseWithCard}: StepReview,

	{StepPayment, PlanPlus, evCardSaved}: StepReview,
	{StepPayment, PlanPlus, evBack}:      StepChoose,

	{StepReview, PlanBasic, evSubscribed}: StepSuccess,
	{StepReview, PlanPlus, evSubscribed}:  StepSuccess,
	{StepReview, PlanPlus, evNeedCard}:    StepPayment,
	{StepReview, PlanBasic, evBack}:       StepChoose,
	{StepReview, PlanPlus, evBack}:        StepPayment,
}

// Billing 是向导依赖的支付操作，*billing.Provider 满足该接口。
type Billing interface {
	Cards(ctx context.Context) ([]billing.CardData, error)
	CreateSetupIntent(ctx context.Context) (string, error)
	AddCard(ctx context.Context, paymentMethodID, nickName string) (billing.CardData, error)
	Subscribe(ctx context.Context, priceID, paymentMethodID string) (*apiclient.SubscriptionIntent, error)
}

// PaymentCollector 用 setup intent 收集支付方式，返回 payment method ID。
type PaymentCollector interface {
	Collect(ctx context.Context, clientSecret string) (string, error)
}

// PaymentConfirmer 在订阅需要额外验证时完成客户端确认。
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, clientSecret string) error
}

// Options 配置向导使用的价格 ID。
type Options struct {
	PriceID  string
	NickName string
}

// Wizard 是一次订阅流程，失败时停留在当前步骤，不回滚已完成的操作。
type Wizard struct {
	billing   Billing
	collector PaymentCollector
	confirmer PaymentConfirmer
	notifier  notify.Notifier
	opts      Options

	step          Step
	plan          Plan
	paymentMethod string
	visited       []Step
}

func New(b Billing, collector PaymentCollector, confirmer PaymentConfirmer, notifier notify.Notifier, opts Options) *Wizard {
	return &Wizard{
		billing:   b,
		collector: collector,
		confirmer: confirmer,
		notifier:  notifier,
		opts:      opts,
		step:      StepChoose,
		visited:   []Step{StepChoose},
	}
}

func (w *Wizard) Step() Step { return w.step }
func (w *Wizard) Plan() Plan { return w.plan }

// PaymentMethod 返回确认时使用的支付方式。
func (w *Wizard) PaymentMethod() string { return w.paymentMethod }

// SelectPaymentMethod 指定确认时使用的已保存支付方式。
func (w *Wizard) SelectPaymentMethod(id string) { w.paymentMethod = id }

// Visited 返回进入过的所有步骤，按顺序。
func (w *Wizard) Visited() []Step {
	return append([]Step(nil), w.visited...)
}

func (w *Wizard) fire(ev event) error {
	next, ok := transitions[transitionKey{w.step, w.plan, ev}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrInvalidTransition, w.step, w.plan)
	}
	w.step = next
	w.visited = append(w.visited, next)
	return nil
}

// ChoosePlan 选择套餐。Plus 已有卡片时直接进入确认。
func (w *Wizard) ChoosePlan(ctx context.Context, plan Plan) error {
	if w.step != StepChoose {
		return fmt.Errorf("%w: choose plan at %s", ErrInvalidTransition, w.step)
	}
	if plan != PlanBasic && plan != PlanPlus {
		return fmt.Errorf("%w: plan %s", ErrInvalidTransition, plan)
	}
	w.plan = plan
	if plan == PlanBasic {
		return w.fire(evChoose)
	}

	if w.paymentMethod == "" {
		cards, err := w.billing.Cards(ctx)
		if err != nil {
			notify.Error(w.notifier, messageOf(err, "Failed to load cards"))
			return err
		}
		if len(cards) > 0 {
			w.paymentMethod = cards[0].PaymentMethodID
		}
	}
	if w.paymentMethod != "" {
		return w.fire(evChooseWithCard)
	}
	return w.fire(evChoose)
}

// SubmitPayment 在付款步骤创建 setup intent、收集并保存卡片。
func (w *Wizard) SubmitPayment(ctx context.Context) error {
	if w.step != StepPayment {
		return fmt.Errorf("%w: submit payment at %s", ErrInvalidTransition, w.step)
	}

	// 1. 创建 setup intent
	secret, err := w.billing.CreateSetupIntent(ctx)
	if err != nil {
		notify.Error(w.notifier, messageOf(err, "Failed to start card setup"))
		return err
	}

	// 2. 收集支付方式
	pm, err := w.collector.Collect(ctx, secret)
	if err != nil {
		notify.Error(w.notifier, messageOf(err, "Card setup failed"))
		return err
	}

	// 3. 保存卡片
	card, err := w.billing.AddCard(ctx, pm, w.opts.NickName)
	if err != nil {
		notify.Error(w.notifier, messageOf(err, "Failed to save card"))
		return err
	}
	w.paymentMethod = card.PaymentMethodID
	notify.Success(w.notifier, "Card added successfully!")
	return w.fire(evCardSaved)
}

// Confirm 在确认步骤提交订阅。
func (w *Wizard) Confirm(ctx context.Context) error {
	if w.step != StepReview {
		return fmt.Errorf("%w: confirm at %s", ErrInvalidTransition, w.step)
	}

	if w.plan == PlanBasic {
		if _, err := w.billing.Subscribe(ctx, FreePriceID, ""); err != nil {
			notify.Error(w.notifier, messageOf(err, "Subscription failed"))
			return err
		}
		notify.Success(w.notifier, "Basic plan activated!")
		return w.fire(evSubscribed)
	}

	if w.paymentMethod == "" {
		notify.Info(w.notifier, "Let’s add your first card!")
		return w.fire(evNeedCard)
	}

	intent, err := w.billing.Subscribe(ctx, w.opts.PriceID, w.paymentMethod)
	if err != nil {
		notify.Error(w.notifier, messageOf(err, "Subscription failed"))
		return err
	}
	if intent.Status == apiclient.StatusRequiresAction && intent.ClientSecret != "" {
		if err := w.confirmer.ConfirmPayment(ctx, intent.ClientSecret); err != nil {
			notify.Error(w.notifier, messageOf(err, "Payment confirmation failed"))
			return err
		}
	}
	notify.Success(w.notifier, "Subscription successful!")
	return w.fire(evSubscribed)
}

// Back 返回上一步。
func (w *Wizard) Back() error {
	return w.fire(evBack)
}

func messageOf(err error, fallback string) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
