package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"dentgo-go/internal/model"
	"dentgo-go/internal/repository"
	"dentgo-go/pkg/log"
	"dentgo-go/pkg/storage"

	"github.com/google/uuid"
)

// MaxXRaySize 是单张 X 光片的大小上限。
const MaxXRaySize = 20 << 20

const presignExpiry = time.Hour

// XRayFile 是一次上传的文件内容与元数据。
type XRayFile struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// XRayService 定义了 X 光片上传相关的业务操作。
type XRayService interface {
	Upload(ctx context.Context, user *model.User, patientName string, file XRayFile) (*model.XRayUpload, error)
	List(ctx context.Context, user *model.User) ([]model.XRayUpload, error)
}

type xrayService struct {
	store storage.ObjectStore
	repo  repository.XRayRepository
}

// NewXRayService 创建一个新的 XRayService 实例。
func NewXRayService(store storage.ObjectStore, repo repository.XRayRepository) XRayService {
	return &xrayService{store: store, repo: repo}
}

func (s *xrayService) Upload(ctx context.Context, user *model.User, patientName string, file XRayFile) (*model.XRayUpload, error) {
	patientName = strings.TrimSpace(patientName)
	if patientName == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrInvalidInput)
	}
	if file.Size <= 0 || file.Reader == nil {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidInput)
	}
	if file.Size > MaxXRaySize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidInput, MaxXRaySize)
	}
	if !strings.HasPrefix(file.ContentType, "image/") {
		return nil, fmt.Errorf("%w: file must be an image", ErrInvalidInput)
	}

	// 1. 写入对象存储
	objectName := fmt.Sprintf("xrays/%d/%s%s", user.ID, uuid.NewString(), strings.ToLower(filepath.Ext(file.FileName)))
	if err := s.store.Put(ctx, objectName, file.Reader, file.Size, file.ContentType); err != nil {
		log.Errorf("[XRayService] 上传到对象存储失败, object: %s, error: %v", objectName, err)
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	// 2. 保存记录，失败时清理已上传的对象
	upload := &model.XRayUpload{
		UserID:      user.ID,
		PatientName: patientName,
		ObjectName:  objectName,
		ContentType: file.ContentType,
		Size:        file.Size,
	}
	if err := s.repo.Create(upload); err != nil {
		_ = s.store.Remove(ctx, objectName)
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	s.attachURL(ctx, upload)
	return upload, nil
}

func (s *xrayService) List(ctx context.Context, user *model.User) ([]model.XRayUpload, error) {
	list, err := s.repo.ListByUser(user.ID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.XRayUpload{}
	}
	for i := range list {
		s.attachURL(ctx, &list[i])
	}
	return list, nil
}

func (s *xrayService) attachURL(ctx context.Context, upload *model.XRayUpload) {
	url, err := s.store.PresignedURL(ctx, upload.ObjectName, presignExpiry)
	if err != nil {
		log.Warnf("[XRayService] 生成预签名 URL 失败, object: %s, error: %v", upload.ObjectName, err)
		return
	}
	upload.URL = url
}
