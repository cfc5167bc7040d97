package repository

import (
	"time"

	"dentgo-go/internal/model"

	"gorm.io/gorm"
)

// ChatRepository 定义了会话与消息的持久化操作。
type ChatRepository interface {
	CreateSession(session *model.ChatSession) error
	FindSession(sessionID uint) (*model.ChatSession, error)
	ListSessions(userID uint) ([]model.ChatSession, error)
	AddMessages(messages ...*model.ChatMessage) error
	EndSession(sessionID uint, title *string, endedAt time.Time) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateSession(session *model.ChatSession) error {
	return r.db.Create(session).Error
}

// FindSession 查找会话并按时间顺序预加载消息。
func (r *chatRepository) FindSession(sessionID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	}).First(&session, sessionID).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions 返回用户的全部会话，最新的在前，不含消息。
func (r *chatRepository) ListSessions(userID uint) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.db.Where("user_id = ?", userID).Order("started_at DESC, id DESC").Find(&sessions).Error
	return sessions, err
}

func (r *chatRepository) AddMessages(messages ...*model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	return r.db.Create(messages).Error
}

func (r *chatRepository) EndSession(sessionID uint, title *string, endedAt time.Time) error {
	updates := map[string]interface{}{"ended_at": endedAt}
	if title != nil {
		updates["title"] = *title
	}
	return r.db.Model(&model.ChatSession{}).Where("id = ?", sessionID).Updates(updates).Error
}
