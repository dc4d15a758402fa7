// Package imagestore uploads product and business images to the bucket and releases them.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	apperrors "business-inventory/internal/common/errors"
	"business-inventory/internal/common/logger"
	"business-inventory/internal/common/metrics"
)

// Folder groups objects by owner kind.
type Folder string

const (
	FolderProducts   Folder = "products"
	FolderBusinesses Folder = "businesses"
)

const DefaultMaxSize int64 = 5 * 1024 * 1024

// allowedTypes maps accepted content types to the extension used when the file name has none.
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

const msgInvalidType = "Tipo de archivo no válido. Solo se permiten imágenes (JPEG, PNG, WEBP, GIF)"

func tooLargeMessage(maxSize int64) string {
	if maxSize%(1<<20) == 0 {
		return fmt.Sprintf("La imagen es demasiado grande. El tamaño máximo es %dMB", maxSize>>20)
	}
	return fmt.Sprintf("La imagen es demasiado grande. El tamaño máximo es %dKB", maxSize>>10)
}

// TooLarge is the IMAGE_INVALID error for an upload of size bytes over maxSize.
// size may be -1 when the upload was cut off before its size was known.
func TooLarge(maxSize, size int64) error {
	return apperrors.NewImageInvalidError(tooLargeMessage(maxSize), fmt.Sprintf("size: %d", size))
}

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)
}

// Upload is an image submitted by the user.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Store struct {
	api     ObjectAPI
	bucket  string
	baseURL string
	maxSize int64
	log     logger.Logger
	now     func() time.Time
	random  func() string
}

type Config struct {
	Bucket string
	// PublicBaseURL is the origin objects are served from; the bucket name is appended
	// as the first path segment.
	PublicBaseURL string
	Region        string
	MaxSize       int64
}

func New(api ObjectAPI, cfg Config, log logger.Logger) *Store {
	base := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		api:     api,
		bucket:  cfg.Bucket,
		baseURL: base,
		maxSize: maxSize,
		log:     log.WithFields(map[string]interface{}{"component": "imagestore", "bucket": cfg.Bucket}),
		now:     time.Now,
		random: func() string {
			return strings.SplitN(uuid.NewString(), "-", 2)[0]
		},
	}
}

// Validate checks type and size before anything is sent.
func (s *Store) Validate(contentType string, size int64) error {
	if _, ok := allowedTypes[strings.ToLower(contentType)]; !ok {
		return apperrors.NewImageInvalidError(msgInvalidType, "contentType: "+contentType)
	}
	if size > s.maxSize {
		return TooLarge(s.maxSize, size)
	}
	return nil
}

// Upload validates and stores the image under folder, returning its public URL.
func (s *Store) Upload(ctx context.Context, up Upload, folder Folder) (string, error) {
	if err := s.Validate(up.ContentType, up.Size); err != nil {
		metrics.ImageOperations.WithLabelValues("upload", "rejected").Inc()
		return "", err
	}

	key := s.objectKey(up, folder)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        awssdk.String(s.bucket),
		Key:           awssdk.String(key),
		Body:          up.Body,
		ContentType:   awssdk.String(up.ContentType),
		ContentLength: awssdk.Int64(up.Size),
		CacheControl:  awssdk.String("max-age=3600"),
	})
	if err != nil {
		metrics.ImageOperations.WithLabelValues("upload", "failed").Inc()
		s.log.Error("image upload failed", map[string]interface{}{"key": key, "error": err.Error()})
		return "", apperrors.NewImageUploadFailedError(err)
	}

	metrics.ImageOperations.WithLabelValues("upload", "ok").Inc()
	return s.PublicURL(key), nil
}

// PublicURL returns the URL an object key is served from.
func (s *Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
}

// Delete releases the object behind publicURL. URLs that do not point into the bucket are
// skipped. Failures are logged and never returned.
func (s *Store) Delete(ctx context.Context, publicURL string) {
	if publicURL == "" {
		return
	}
	key, ok := s.KeyFromURL(publicURL)
	if !ok {
		s.log.Warn("image url does not belong to bucket, skipping deletion", map[string]interface{}{"url": publicURL})
		metrics.ImageOperations.WithLabelValues("delete", "skipped").Inc()
		return
	}

	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awssdk.String(s.bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		metrics.ImageOperations.WithLabelValues("delete", "failed").Inc()
		stdErr := apperrors.NewImageDeleteFailedError(publicURL, err)
		s.log.Error("image delete failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		return
	}
	metrics.ImageOperations.WithLabelValues("delete", "ok").Inc()
}

// KeyFromURL finds the bucket segment in the URL path and returns everything after it.
func (s *Store) KeyFromURL(publicURL string) (string, bool) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", false
	}
	parts := strings.Split(u.Path, "/")
	for i, part := range parts {
		if part == s.bucket {
			key := strings.Join(parts[i+1:], "/")
			return key, key != ""
		}
	}
	return "", false
}

func (s *Store) objectKey(up Upload, folder Folder) string {
	ext := ""
	if i := strings.LastIndex(up.Name, "."); i >= 0 && i < len(up.Name)-1 {
		ext = strings.ToLower(up.Name[i+1:])
	} else {
		ext = allowedTypes[strings.ToLower(up.ContentType)]
	}
	return fmt.Sprintf("%s/%d-%s.%s", folder, s.now().UnixMilli(), s.random(), ext)
}
