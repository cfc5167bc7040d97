package repository

import (
	"dentgo-go/internal/model"

	"gorm.io/gorm"
)

// NotificationRepository 定义了通知的持久化操作。
type NotificationRepository interface {
	CreateBatch(notifications []*model.Notification) error
	ListByUser(userID uint) ([]model.Notification, error)
	MarkSeen(userID, notificationID uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建一个新的 NotificationRepository 实例。
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateBatch(notifications []*model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.CreateInBatches(notifications, 100).Error
}

// ListByUser 返回用户的通知，最新的在前。
func (r *notificationRepository) ListByUser(userID uint) ([]model.Notification, error) {
	var list []model.Notification
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

// MarkSeen 标记一条通知为已读。通知不属于该用户时返回 gorm.ErrRecordNotFound。
func (r *notificationRepository) MarkSeen(userID, notificationID uint) error {
	res := r.db.Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("seen", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
