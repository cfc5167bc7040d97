package handler

import (
	"net/http"

	"dentgo-go/internal/model"
	"dentgo-go/internal/service"
	"dentgo-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// XRayHandler 负责处理 X 光片上传相关的 API 请求。
type XRayHandler struct {
	xrayService service.XRayService
}

// NewXRayHandler 创建一个新的 XRayHandler 实例。
func NewXRayHandler(xrayService service.XRayService) *XRayHandler {
	return &XRayHandler{xrayService: xrayService}
}

// Upload 处理 multipart 上传，字段为 name 和 image。
func (h *XRayHandler) Upload(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxXRaySize+1<<20)
	fileHeader, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "XRayUpload", err, "image is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Errorf("XRayUpload: 无法打开上传的文件, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	upload, err := h.xrayService.Upload(c.Request.Context(), user, c.PostForm("name"), service.XRayFile{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      file,
	})
	if err != nil {
		respondError(c, "XRayUpload", err, "Failed to store x-ray")
		return
	}

	log.Infof("[XRayHandler] 用户 %d 上传了 X 光片 %s", user.ID, upload.ObjectName)
	c.JSON(http.StatusCreated, upload)
}

// List 返回当前用户上传过的 X 光片。
func (h *XRayHandler) List(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	uploads, err := h.xrayService.List(c.Request.Context(), user)
	if err != nil {
		respondError(c, "ListXRays", err, "Failed to load uploads")
		return
	}
	if uploads == nil {
		uploads = []model.XRayUpload{}
	}
	c.JSON(http.StatusOK, uploads)
}
