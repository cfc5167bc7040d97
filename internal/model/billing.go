package model

import "time"

// Card 对应于 cards 表，镜像 Stripe 中保存的支付方式。
type Card struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"-"`
	PaymentMethodID string    `gorm:"type:varchar(255);not null" json:"paymentMethodId"`
	NickName        *string   `gorm:"type:varchar(100)" json:"nickName"`
	Brand           string    `gorm:"type:varchar(40)" json:"brand,omitempty"`
	Last4           string    `gorm:"type:varchar(4)" json:"last4,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Card) TableName() string {
	return "cards"
}

// ActiveSubscription 是 GET /api/subscriptions 的响应体。
type ActiveSubscription struct {
	SubscriptionID   *string `json:"subscriptionId"`
	Status           string  `json:"status"`
	CurrentPeriodEnd *int64  `json:"currentPeriodEnd"`
	CancelAt         *int64  `json:"cancelAt,omitempty"`
	Plan             string  `json:"plan"`
}

// SubscriptionIntent 是创建订阅后返回给客户端的数据。
type SubscriptionIntent struct {
	ClientSecret   string `json:"clientSecret"`
	SubscriptionID string `json:"subscriptionId"`
	Status         string `json:"status"`
}
