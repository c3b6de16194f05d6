package gcsuploader

import (
	"context"

	"google.golang.org/api/option"

	"github.com/dvloznov/inbox-ledger/internal/gcs"
)

// Re-export interface from shared package
type StorageService = gcs.StorageService

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct {
	opts []option.ClientOption
}

// NewGCSStorageService creates a new instance of GCSStorageService. Without
// options the client uses Application Default Credentials.
func NewGCSStorageService(opts ...option.ClientOption) *GCSStorageService {
	return &GCSStorageService{opts: opts}
}

// UploadFile delegates to UploadFile.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return UploadFile(ctx, bucketName, objectName, filePath, s.opts...)
}

// FetchFromGCS delegates to FetchFromGCS.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI, s.opts...)
}
