package model

import (
	"encoding/json"
	"time"
)

const (
	MessageRoleUser      = "USER"
	MessageRoleAssistant = "ASSISTANT"
)

// ChatSession 代表一次问诊对话，服务端拥有其生命周期。
type ChatSession struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	UserID    uint          `gorm:"index;not null" json:"-"`
	Title     *string       `gorm:"type:varchar(255)" json:"title,omitempty"`
	StartedAt time.Time     `gorm:"not null" json:"startedAt"`
	EndedAt   *time.Time    `json:"endedAt"`
	Messages  []ChatMessage `gorm:"foreignKey:SessionID" json:"messages"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// IsEnded 表示会话是否已结束。已结束的会话不再接受新消息。
func (s ChatSession) IsEnded() bool {
	return s.EndedAt != nil
}

// MarshalJSON 额外输出 isEnded 字段。
func (s ChatSession) MarshalJSON() ([]byte, error) {
	type alias ChatSession
	return json.Marshal(struct {
		alias
		IsEnded bool `json:"isEnded"`
	}{alias(s), s.IsEnded()})
}

// ChatMessage 代表会话中的单条消息。
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID uint      `gorm:"index;not null" json:"-"`
	Role      string    `gorm:"type:varchar(10);not null" json:"role"` // "USER" 或 "ASSISTANT"
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
