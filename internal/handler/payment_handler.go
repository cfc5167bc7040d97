package handler

import (
	"net/http"

	"dentgo-go/internal/model"
	"dentgo-go/internal/service"
	"dentgo-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// PaymentHandler 负责处理卡片、支付与订阅相关的 API 请求。
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler 创建一个新的 PaymentHandler 实例。
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// ListCards 返回当前用户保存的卡片。
func (h *PaymentHandler) ListCards(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	cards, err := h.paymentService.ListCards(user)
	if err != nil {
		respondError(c, "ListCards", err, "Failed to load cards")
		return
	}
	if cards == nil {
		cards = []model.Card{}
	}
	c.JSON(http.StatusOK, cards)
}

// AddCardRequest 定义了保存卡片的请求体。
type AddCardRequest struct {
	PaymentMethodID string  `json:"paymentMethodId" binding:"required"`
	NickName        *string `json:"nickName"`
}

// AddCard 保存一张已通过 SetupIntent 确认的卡片。
func (h *PaymentHandler) AddCard(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req AddCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "AddCard", err, "paymentMethodId is required")
		return
	}
	card, err := h.paymentService.AddCard(c.Request.Context(), user, req.PaymentMethodID, req.NickName)
	if err != nil {
		respondError(c, "AddCard", err, "Failed to save card")
		return
	}
	c.JSON(http.StatusCreated, card)
}

// RemoveCard 删除一张卡片。
func (h *PaymentHandler) RemoveCard(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	if err := h.paymentService.RemoveCard(c.Request.Context(), user, c.Param("id")); err != nil {
		respondError(c, "RemoveCard", err, "Failed to remove card")
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateCustomer 确保当前用户在 Stripe 中有对应的 customer。
func (h *PaymentHandler) CreateCustomer(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	customerID, err := h.paymentService.EnsureCustomer(c.Request.Context(), user)
	if err != nil {
		respondError(c, "CreateCustomer", err, "Failed to create customer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"customerId": customerID})
}

// CreateSetupIntent 创建用于保存卡片的 SetupIntent。
func (h *PaymentHandler) CreateSetupIntent(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	secret, err := h.paymentService.CreateSetupIntent(c.Request.Context(), user)
	if err != nil {
		respondError(c, "CreateSetupIntent", err, "Failed to create setup intent")
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientSecret": secret})
}

// PaymentIntentRequest 定义了一次性付款的请求体，金额以最小货币单位计。
type PaymentIntentRequest struct {
	Amount int64 `json:"amount"`
}

// CreatePaymentIntent 创建一次性付款的 PaymentIntent。
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "CreatePaymentIntent", err, "amount is required")
		return
	}
	secret, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), user, req.Amount)
	if err != nil {
		respondError(c, "CreatePaymentIntent", err, "Failed to create payment intent")
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientSecret": secret})
}

// SubscriptionRequest 定义了创建订阅的请求体。
type SubscriptionRequest struct {
	PriceID         string `json:"priceId"`
	PaymentMethodID string `json:"paymentMethodId"`
}

// CreateSubscription 创建或切换订阅。priceId 为 FREE 时降级为免费套餐。
func (h *PaymentHandler) CreateSubscription(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "CreateSubscription", err, "Invalid request body")
		return
	}
	intent, err := h.paymentService.CreateSubscription(c.Request.Context(), user, req.PriceID, req.PaymentMethodID)
	if err != nil {
		respondError(c, "CreateSubscription", err, "Failed to create subscription")
		return
	}
	log.Infof("[PaymentHandler] 用户 %d 的订阅状态: %s", user.ID, intent.Status)
	c.JSON(http.StatusOK, intent)
}

// CancelSubscription 取消当前订阅。
func (h *PaymentHandler) CancelSubscription(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	if err := h.paymentService.CancelSubscription(c.Request.Context(), user); err != nil {
		respondError(c, "CancelSubscription", err, "Failed to cancel subscription")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

// PortalRequest 定义了创建账单门户会话的可选请求体。
type PortalRequest struct {
	ReturnURL string `json:"returnUrl"`
}

// CreatePortalSession 创建 Stripe 账单门户会话。
func (h *PaymentHandler) CreatePortalSession(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req PortalRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "CreatePortalSession", err, "Invalid request body")
			return
		}
	}
	url, err := h.paymentService.CreatePortalSession(c.Request.Context(), user, req.ReturnURL)
	if err != nil {
		respondError(c, "CreatePortalSession", err, "Failed to create portal session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ActiveSubscription 返回当前订阅状态。
func (h *PaymentHandler) ActiveSubscription(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	sub, err := h.paymentService.ActiveSubscription(c.Request.Context(), user)
	if err != nil {
		respondError(c, "ActiveSubscription", err, "Failed to load subscription")
		return
	}
	c.JSON(http.StatusOK, sub)
}
