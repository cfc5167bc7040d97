package model

import "time"

// Notification 对应于 notifications 表。
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"-"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	Seen      bool      `gorm:"not null;default:false" json:"seen"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

// XRayUpload 记录一次 X 光片上传，文件本体存放在 MinIO。
type XRayUpload struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"-"`
	PatientName string    `gorm:"type:varchar(255);not null" json:"patientName"`
	ObjectName  string    `gorm:"type:varchar(512);not null" json:"objectName"`
	ContentType string    `gorm:"type:varchar(100)" json:"contentType"`
	Size        int64     `gorm:"not null" json:"size"`
	URL         string    `gorm:"-" json:"url,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (XRayUpload) TableName() string {
	return "xray_uploads"
}
