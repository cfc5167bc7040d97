package repository

import (
	"dentgo-go/internal/model"

	"gorm.io/gorm"
)

// CardRepository 定义了已保存卡片的持久化操作。
type CardRepository interface {
	Create(card *model.Card) error
	ListByUser(userID uint) ([]model.Card, error)
	FindByID(cardID string) (*model.Card, error)
	Delete(cardID string) error
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository 创建一个新的 CardRepository 实例。
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) Create(card *model.Card) error {
	return r.db.Create(card).Error
}

func (r *cardRepository) ListByUser(userID uint) ([]model.Card, error) {
	var cards []model.Card
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&cards).Error
	return cards, err
}

func (r *cardRepository) FindByID(cardID string) (*model.Card, error) {
	var card model.Card
	if err := r.db.Where("id = ?", cardID).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *cardRepository) Delete(cardID string) error {
	return r.db.Where("id = ?", cardID).Delete(&model.Card{}).Error
}
