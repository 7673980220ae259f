package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/pkg/errors"
)

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid request")
)

// ObjectStore reads and writes whole objects in the snapshot bucket.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type openFunc func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

type minioRepository struct {
	client *MinIOClient
	logger logging.Logger
	open   openFunc
}

// NewObjectStore returns an ObjectStore over the client's bucket.
func NewObjectStore(client *MinIOClient, logger logging.Logger) ObjectStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &minioRepository{client: client, logger: logger.Named("minio")}
	r.open = func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
		api, err := client.api()
		if err != nil {
			return nil, err
		}
		return api.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	}
	return r
}

// JoinKey joins prefix and name with a single slash.
func JoinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

func (r *minioRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidRequest.WithDetail("empty object key")
	}
	rc, err := r.open(ctx, r.client.Bucket(), key)
	if err != nil {
		return nil, r.mapError(err, key)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, r.mapError(err, key)
	}
	r.logger.Debug("object downloaded", logging.String("key", key), logging.Int("bytes", len(data)))
	return data, nil
}

func (r *minioRepository) mapError(err error, key string) error {
	if errors.IsCode(err, errors.ErrCodeInternal) {
		return err
	}
	if isNoSuchKey(err) {
		return ErrObjectNotFound.WithDetail(key).WithCause(err)
	}
	return errors.Wrap(err, errors.ErrCodeExternalService, "minio request failed").WithDetail(key)
}

func (r *minioRepository) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrInvalidRequest.WithDetail("empty object key")
	}
	api, err := r.client.api()
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := api.PutObject(ctx, r.client.Bucket(), key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return r.mapError(err, key)
	}
	r.logger.Info("object uploaded",
		logging.String("key", key),
		logging.Int64("size", info.Size),
		logging.String("etag", info.ETag))
	return nil
}

func (r *minioRepository) Exists(ctx context.Context, key string) (bool, error) {
	api, err := r.client.api()
	if err != nil {
		return false, err
	}
	if _, err := api.StatObject(ctx, r.client.Bucket(), key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, r.mapError(err, key)
	}
	return true, nil
}

func (r *minioRepository) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	api, err := r.client.api()
	if err != nil {
		return nil, err
	}
	var out []ObjectInfo
	for obj := range api.ListObjects(ctx, r.client.Bucket(), minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, r.mapError(obj.Err, prefix)
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified})
	}
	return out, nil
}

func (r *minioRepository) Delete(ctx context.Context, key string) error {
	api, err := r.client.api()
	if err != nil {
		return err
	}
	if err := api.RemoveObject(ctx, r.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return r.mapError(err, key)
	}
	return nil
}

//Personal.AI order the ending
