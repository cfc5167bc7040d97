package service

import (
	"errors"

	"dentgo-go/internal/model"
	"dentgo-go/internal/repository"

	"gorm.io/gorm"
)

// NotificationService 定义了用户通知相关的业务操作。
type NotificationService interface {
	List(userID uint) ([]model.Notification, error)
	MarkSeen(userID, notificationID uint) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

// NewNotificationService 创建一个新的 NotificationService 实例。
func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

func (s *notificationService) List(userID uint) ([]model.Notification, error) {
	list, err := s.repo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

func (s *notificationService) MarkSeen(userID, notificationID uint) error {
	if err := s.repo.MarkSeen(userID, notificationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}
