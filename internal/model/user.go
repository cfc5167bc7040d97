// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	PlanFree = "FREE"
	PlanPlus = "PLUS"
)

// User 对应于数据库中的 users 表。
// 账号只通过 Google / Apple 登录创建，因此没有密码字段。
type User struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Email   string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name    string `gorm:"type:varchar(255)" json:"name"`
	Picture string `gorm:"type:varchar(512)" json:"picture,omitempty"`
	Role    string `gorm:"type:varchar(20);not null;default:USER" json:"role"`

	GoogleSubject *string `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	AppleSubject  *string `gorm:"type:varchar(255);uniqueIndex" json:"-"`

	// 订阅状态，Stripe 是权威来源，这里只是镜像
	StripeCustomerID     *string `gorm:"type:varchar(255)" json:"-"`
	StripeSubscriptionID *string `gorm:"type:varchar(255)" json:"-"`
	Plan                 string  `gorm:"type:varchar(10);not null;default:FREE" json:"-"`
	SubscriptionStatus   string  `gorm:"type:varchar(40)" json:"-"`
	CurrentPeriodEnd     *int64  `json:"-"`
	CancelAt             *int64  `json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// IsPlus 判断用户当前是否处于付费套餐。
func (u *User) IsPlus() bool {
	return u.Plan == PlanPlus || u.StripeSubscriptionID != nil
}
