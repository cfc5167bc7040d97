package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dentgo-go/internal/model"
	"dentgo-go/internal/repository"
	"dentgo-go/pkg/log"
	"dentgo-go/pkg/payments"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FreePriceID 是降级到 Basic 套餐时客户端提交的 priceId。
const FreePriceID = "FREE"

const (
	statusRequiresAction = "requires_action"
	statusActive         = "active"
	statusCanceled       = "canceled"
)

// PaymentService 定义了卡片与订阅相关的业务操作。
type PaymentService interface {
	EnsureCustomer(ctx context.Context, user *model.User) (string, error)
	CreateSetupIntent(ctx context.Context, user *model.User) (string, error)
	CreatePaymentIntent(ctx context.Context, user *model.User, amount int64) (string, error)
	ListCards(user *model.User) ([]model.Card, error)
	AddCard(ctx context.Context, user *model.User, paymentMethodID string, nickName *string) (*model.Card, error)
	RemoveCard(ctx context.Context, user *model.User, cardID string) error
	CreateSubscription(ctx context.Context, user *model.User, priceID, paymentMethodID string) (*model.SubscriptionIntent, error)
	CancelSubscription(ctx context.Context, user *model.User) error
	CreatePortalSession(ctx context.Context, user *model.User, returnURL string) (string, error)
	ActiveSubscription(ctx context.Context, user *model.User) (*model.ActiveSubscription, error)
}

// PaymentOptions 是支付相关的配置。
type PaymentOptions struct {
	DefaultPriceID  string
	PortalReturnURL string
	Currency        string
}

type paymentService struct {
	gateway  payments.Gateway
	userRepo repository.UserRepository
	cardRepo repository.CardRepository
	opts     PaymentOptions
}

// NewPaymentService 创建一个新的 PaymentService 实例。
func NewPaymentService(gateway payments.Gateway, userRepo repository.UserRepository, cardRepo repository.CardRepository, opts PaymentOptions) PaymentService {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	return &paymentService{
		gateway:  gateway,
		userRepo: userRepo,
		cardRepo: cardRepo,
		opts:     opts,
	}
}

// EnsureCustomer 返回用户的 Stripe customer，不存在时创建并保存。
func (s *paymentService) EnsureCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	customerID, err := s.gateway.CreateCustomer(ctx, user.Email, user.Name)
	if err != nil {
		return "", err
	}
	user.StripeCustomerID = &customerID
	if err := s.userRepo.Update(user); err != nil {
		return "", fmt.Errorf("failed to save customer id: %w", err)
	}
	log.Infof("[PaymentService] 已为用户创建 customer, userID: %d", user.ID)
	return customerID, nil
}

func (s *paymentService) CreateSetupIntent(ctx context.Context, user *model.User) (string, error) {
	customerID, err := s.EnsureCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	return s.gateway.CreateSetupIntent(ctx, customerID)
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, user *model.User, amount int64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	customerID, err := s.EnsureCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	return s.gateway.CreatePaymentIntent(ctx, customerID, amount, s.opts.Currency)
}

func (s *paymentService) ListCards(user *model.User) ([]model.Card, error) {
	cards, err := s.cardRepo.ListByUser(user.ID)
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []model.Card{}
	}
	return cards, nil
}

// AddCard 保存一张已通过 setup intent 绑定的卡，品牌与后四位取自 Stripe。
func (s *paymentService) AddCard(ctx context.Context, user *model.User, paymentMethodID string, nickName *string) (*model.Card, error) {
	paymentMethodID = strings.TrimSpace(paymentMethodID)
	if paymentMethodID == "" {
		return nil, ErrPaymentMethodRequired
	}
	details, err := s.gateway.GetCard(ctx, paymentMethodID)
	if err != nil {
		return nil, err
	}
	if nickName != nil && strings.TrimSpace(*nickName) == "" {
		nickName = nil
	}
	card := &model.Card{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		PaymentMethodID: paymentMethodID,
		NickName:        nickName,
		Brand:           details.Brand,
		Last4:           details.Last4,
	}
	if err := s.cardRepo.Create(card); err != nil {
		return nil, fmt.Errorf("failed to save card: %w", err)
	}
	return card, nil
}

func (s *paymentService) RemoveCard(ctx context.Context, user *model.User, cardID string) error {
	card, err := s.cardRepo.FindByID(cardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCardNotFound
		}
		return err
	}
	if card.UserID != user.ID {
		return ErrCardNotFound
	}
	// 支付方式可能已在 Stripe 侧解绑，本地记录照常删除
	if err := s.gateway.DetachPaymentMethod(ctx, card.PaymentMethodID); err != nil {
		log.Warnf("[PaymentService] 解绑支付方式失败, cardID: %s, error: %v", cardID, err)
	}
	return s.cardRepo.Delete(cardID)
}

// CreateSubscription 订阅 Plus 套餐；priceId 为 FREE 时取消现有订阅并降级。
func (s *paymentService) CreateSubscription(ctx context.Context, user *model.User, priceID, paymentMethodID string) (*model.SubscriptionIntent, error) {
	if priceID == FreePriceID {
		if err := s.downgrade(ctx, user); err != nil {
			return nil, err
		}
		return &model.SubscriptionIntent{Status: statusActive}, nil
	}
	if priceID == "" {
		priceID = s.opts.DefaultPriceID
	}
	if priceID == "" {
		return nil, fmt.Errorf("%w: priceId is required", ErrInvalidInput)
	}

	// 1. 未指定支付方式时使用第一张已保存的卡
	if paymentMethodID == "" {
		cards, err := s.cardRepo.ListByUser(user.ID)
		if err != nil {
			return nil, err
		}
		if len(cards) == 0 {
			return nil, ErrPaymentMethodRequired
		}
		paymentMethodID = cards[0].PaymentMethodID
	}

	// 2. 创建订阅
	customerID, err := s.EnsureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}
	sub, err := s.gateway.CreateSubscription(ctx, customerID, priceID, paymentMethodID)
	if err != nil {
		return nil, err
	}

	// 3. 同步到本地镜像
	user.StripeSubscriptionID = &sub.ID
	user.SubscriptionStatus = sub.Status
	if sub.CurrentPeriodEnd > 0 {
		end := sub.CurrentPeriodEnd
		user.CurrentPeriodEnd = &end
	}
	if sub.Status == statusActive || sub.Status == "trialing" {
		user.Plan = model.PlanPlus
	}
	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	status := sub.Status
	if sub.Status == "incomplete" && sub.ClientSecret != "" {
		status = statusRequiresAction
	}
	log.Infof("[PaymentService] 订阅已创建, userID: %d, status: %s", user.ID, status)
	return &model.SubscriptionIntent{
		ClientSecret:   sub.ClientSecret,
		SubscriptionID: sub.ID,
		Status:         status,
	}, nil
}

func (s *paymentService) CancelSubscription(ctx context.Context, user *model.User) error {
	if user.StripeSubscriptionID == nil {
		return ErrNoSubscription
	}
	return s.downgrade(ctx, user)
}

func (s *paymentService) downgrade(ctx context.Context, user *model.User) error {
	if user.StripeSubscriptionID != nil {
		if err := s.gateway.CancelSubscription(ctx, *user.StripeSubscriptionID); err != nil {
			return err
		}
	}
	user.StripeSubscriptionID = nil
	user.Plan = model.PlanFree
	user.SubscriptionStatus = statusCanceled
	user.CurrentPeriodEnd = nil
	user.CancelAt = nil
	return s.userRepo.Update(user)
}

func (s *paymentService) CreatePortalSession(ctx context.Context, user *model.User, returnURL string) (string, error) {
	if user.StripeCustomerID == nil {
		return "", ErrNoCustomer
	}
	if returnURL == "" {
		returnURL = s.opts.PortalReturnURL
	}
	return s.gateway.CreatePortalSession(ctx, *user.StripeCustomerID, returnURL)
}

// ActiveSubscription 返回订阅状态，有订阅时先从 Stripe 刷新镜像。
func (s *paymentService) ActiveSubscription(ctx context.Context, user *model.User) (*model.ActiveSubscription, error) {
	if user.StripeSubscriptionID != nil {
		sub, err := s.gateway.GetSubscription(ctx, *user.StripeSubscriptionID)
		if err != nil {
			log.Warnf("[PaymentService] 刷新订阅状态失败, userID: %d, error: %v", user.ID, err)
		} else {
			s.syncSubscription(user, sub)
		}
	}

	out := &model.ActiveSubscription{
		SubscriptionID:   user.StripeSubscriptionID,
		Status:           user.SubscriptionStatus,
		CurrentPeriodEnd: user.CurrentPeriodEnd,
		CancelAt:         user.CancelAt,
		Plan:             model.PlanFree,
	}
	if user.IsPlus() {
		out.Plan = model.PlanPlus
	}
	if out.Status == "" {
		out.Status = "none"
	}
	return out, nil
}

func (s *paymentService) syncSubscription(user *model.User, sub *payments.Subscription) {
	user.SubscriptionStatus = sub.Status
	if sub.CurrentPeriodEnd > 0 {
		end := sub.CurrentPeriodEnd
		user.CurrentPeriodEnd = &end
	}
	if sub.CancelAt > 0 {
		at := sub.CancelAt
		user.CancelAt = &at
	} else {
		user.CancelAt = nil
	}
	switch sub.Status {
	case statusActive, "trialing":
		user.Plan = model.PlanPlus
	case statusCanceled, "incomplete_expired":
		user.Plan = model.PlanFree
		user.StripeSubscriptionID = nil
	}
	if err := s.userRepo.Update(user); err != nil {
		log.Warnf("[PaymentService] 保存订阅状态失败, userID: %d, error: %v", user.ID, err)
	}
}
