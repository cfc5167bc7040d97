// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"dentgo-go/internal/model"

	"gorm.io/gorm"
)

// UserRepository 接口定义了用户数据的持久化操作。
type UserRepository interface {
	Create(user *model.User) error
	Update(user *model.User) error
	FindByID(userID uint) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	FindByGoogleSubject(sub string) (*model.User, error)
	FindByAppleSubject(sub string) (*model.User, error)
	FindAllIDs() ([]uint, error)
	Delete(userID uint) error
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 在数据库中创建一个新的用户记录。
func (r *userRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// Update 更新数据库中一个已存在的用户记录。
func (r *userRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

// FindByID 根据用户 ID 从数据库中查找一个用户。
func (r *userRepository) FindByID(userID uint) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*model.User, error) {
	return r.findBy("email = ?", email)
}

func (r *userRepository) FindByGoogleSubject(sub string) (*model.User, error) {
	return r.findBy("google_subject = ?", sub)
}

func (r *userRepository) FindByAppleSubject(sub string) (*model.User, error) {
	return r.findBy("apple_subject = ?", sub)
}

func (r *userRepository) findBy(query string, arg interface{}) (*model.User, error) {
	var user model.User
	if err := r.db.Where(query, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindAllIDs 返回所有用户的 ID，用于广播通知。
func (r *userRepository) FindAllIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.User{}).Pluck("id", &ids).Error
	return ids, err
}

// Delete 在一个事务中删除用户及其全部关联数据。
func (r *userRepository) Delete(userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		sessionIDs := tx.Model(&model.ChatSession{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("session_id IN (?)", sessionIDs).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		for _, m := range []interface{}{&model.ChatSession{}, &model.Card{}, &model.Notification{}, &model.XRayUpload{}} {
			if err := tx.Where("user_id = ?", userID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.User{}, userID).Error
	})
}
