package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dentgo-go/internal/model"
	"dentgo-go/internal/testutil"
)

func TestXRayUpload(t *testing.T) {
	store := testutil.NewObjectStore()
	repo := testutil.NewXRayRepo()
	svc := NewXRayService(store, repo)
	user := &model.User{ID: 3}

	upload, err := svc.Upload(context.Background(), user, " Jane Doe ", XRayFile{
		FileName:    "Bitewing.PNG",
		ContentType: "image/png",
		Size:        4,
		Reader:      strings.NewReader("\x89PNG"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if upload.PatientName != "Jane Doe" || !strings.HasPrefix(upload.ObjectName, "xrays/3/") || !strings.HasSuffix(upload.ObjectName, ".png") {
		t.Errorf("Upload() = %+v", upload)
	}
	if upload.URL == "" {
		t.Error("Upload() URL is empty")
	}
	if _, ok := store.Objects[upload.ObjectName]; !ok {
		t.Error("object was not stored")
	}

	list, _ := svc.List(context.Background(), user)
	if len(list) != 1 || list[0].URL == "" {
		t.Errorf("List() = %+v", list)
	}
}

func TestXRayUploadValidation(t *testing.T) {
	svc := NewXRayService(testutil.NewObjectStore(), testutil.NewXRayRepo())
	user := &model.User{ID: 3}
	tests := []struct {
		name    string
		patient string
		file    XRayFile
	}{
		{"missing patient", "", XRayFile{ContentType: "image/png", Size: 1, Reader: strings.NewReader("x")}},
		{"empty file", "Jane", XRayFile{ContentType: "image/png"}},
		{"not an image", "Jane", XRayFile{ContentType: "application/pdf", Size: 1, Reader: strings.NewReader("x")}},
		{"too large", "Jane", XRayFile{ContentType: "image/png", Size: MaxXRaySize + 1, Reader: strings.NewReader("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Upload(context.Background(), user, tt.patient, tt.file); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Upload() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestXRayUploadStoreFailure(t *testing.T) {
	store := testutil.NewObjectStore()
	store.PutErr = errors.New("minio down")
	repo := testutil.NewXRayRepo()
	svc := NewXRayService(store, repo)

	_, err := svc.Upload(context.Background(), &model.User{ID: 1}, "Jane", XRayFile{ContentType: "image/jpeg", Size: 1, Reader: strings.NewReader("x")})
	if err == nil {
		t.Fatal("Upload() error = nil, want error")
	}
	if len(repo.Uploads) != 0 {
		t.Errorf("uploads saved = %d, want 0", len(repo.Uploads))
	}
}
