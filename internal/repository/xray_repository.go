package repository

import (
	"dentgo-go/internal/model"

	"gorm.io/gorm"
)

// XRayRepository 定义了 X 光片上传记录的持久化操作。
type XRayRepository interface {
	Create(upload *model.XRayUpload) error
	ListByUser(userID uint) ([]model.XRayUpload, error)
}

type xrayRepository struct {
	db *gorm.DB
}

// NewXRayRepository 创建一个新的 XRayRepository 实例。
func NewXRayRepository(db *gorm.DB) XRayRepository {
	return &xrayRepository{db: db}
}

func (r *xrayRepository) Create(upload *model.XRayUpload) error {
	return r.db.Create(upload).Error
}

func (r *xrayRepository) ListByUser(userID uint) ([]model.XRayUpload, error) {
	var list []model.XRayUpload
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error
	return list, err
}
