package service

import (
	"fmt"
	"strings"

	"dentgo-go/internal/model"
	"dentgo-go/internal/repository"
	"dentgo-go/pkg/log"
)

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	// Broadcast 向所有用户发送一条通知，返回收件人数量。
	Broadcast(title, body string) (int, error)
	// Notify 向单个用户发送一条通知。
	Notify(userID uint, title, body string) error
}

type adminService struct {
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(userRepo repository.UserRepository, notificationRepo repository.NotificationRepository) AdminService {
	return &adminService{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
	}
}

func (s *adminService) Broadcast(title, body string) (int, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	ids, err := s.userRepo.FindAllIDs()
	if err != nil {
		return 0, err
	}
	list := make([]*model.Notification, 0, len(ids))
	for _, id := range ids {
		list = append(list, &model.Notification{UserID: id, Title: title, Body: body})
	}
	if err := s.notificationRepo.CreateBatch(list); err != nil {
		return 0, fmt.Errorf("failed to create notifications: %w", err)
	}
	log.Infof("[AdminService] 已广播通知 '%s' 给 %d 个用户", title, len(list))
	return len(list), nil
}

func (s *adminService) Notify(userID uint, title, body string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if _, err := s.userRepo.FindByID(userID); err != nil {
		return ErrUserNotFound
	}
	return s.notificationRepo.CreateBatch([]*model.Notification{{UserID: userID, Title: title, Body: body}})
}
