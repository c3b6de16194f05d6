package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/dvloznov/inbox-ledger/internal/logger"
)

// UploadFile uploads a local file to a GCS bucket under the given object name.
func UploadFile(ctx context.Context, bucketName, objectName, filePath string, opts ...option.ClientOption) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("UploadFile: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentTypeFor(objectName)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize upload: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Debug().
		Str("bucket", bucketName).
		Str("object", objectName).
		Msg("Uploaded file to GCS")
	return nil
}

// FetchFromGCS downloads the object bytes from the given GCS URI. A missing
// object yields an error matching storage.ErrObjectNotExist.
func FetchFromGCS(ctx context.Context, gcsURI string, opts ...option.ClientOption) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading bytes: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Debug().
		Str("gcs_uri", gcsURI).
		Int("bytes", len(data)).
		Msg("Fetched object from GCS")
	return data, nil
}

// IsGCSURI reports whether s names a GCS object.
func IsGCSURI(s string) bool {
	return strings.HasPrefix(s, "gs://")
}

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object path.
func ParseGCSURI(gcsURI string) (string, string, error) {
	if !IsGCSURI(gcsURI) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

func contentTypeFor(objectName string) string {
	switch {
	case strings.HasSuffix(objectName, ".csv"):
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
