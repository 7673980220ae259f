package minio

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/pkg/errors"
)

func newTestStore(t *testing.T, objects map[string][]byte) (*minioRepository, *MockMinIOAPI) {
	t.Helper()
	api := new(MockMinIOAPI)
	client := newMinIOClient(api, &MinIOConfig{Bucket: "snaps"}, nil)
	r := NewObjectStore(client, logging.NewNopLogger()).(*minioRepository)
	r.open = func(_ context.Context, bucket, key string) (io.ReadCloser, error) {
		assert.Equal(t, "snaps", bucket)
		data, ok := objects[key]
		if !ok {
			return nil, minio.ErrorResponse{Code: "NoSuchKey", Key: key}
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return r, api
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "index.json", JoinKey("", "index.json"))
	assert.Equal(t, "v1/index.json", JoinKey("v1", "index.json"))
	assert.Equal(t, "a/b/index.json", JoinKey("/a/b/", "index.json"))
}

func TestGet(t *testing.T) {
	r, _ := newTestStore(t, map[string][]byte{"v1/index.json": []byte(`["A"]`)})

	data, err := r.Get(context.Background(), "v1/index.json")
	require.NoError(t, err)
	assert.Equal(t, `["A"]`, string(data))
}

func TestGet_NotFound(t *testing.T) {
	r, _ := newTestStore(t, nil)

	_, err := r.Get(context.Background(), "missing.json")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGet_EmptyKey(t *testing.T) {
	r, _ := newTestStore(t, nil)
	_, err := r.Get(context.Background(), "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestPut(t *testing.T) {
	r, api := newTestStore(t, nil)
	api.On("PutObject", mock.Anything, "snaps", "v1/index.json", mock.Anything, int64(5),
		minio.PutObjectOptions{ContentType: "application/json"}).
		Return(minio.UploadInfo{Size: 5, ETag: "e"}, nil)

	require.NoError(t, r.Put(context.Background(), "v1/index.json", []byte(`["A"]`), "application/json"))
	api.AssertExpectations(t)
}

func TestPut_Failure(t *testing.T) {
	r, api := newTestStore(t, nil)
	api.On("PutObject", mock.Anything, "snaps", "k", mock.Anything, int64(1), mock.Anything).
		Return(minio.UploadInfo{}, assert.AnError)

	err := r.Put(context.Background(), "k", []byte("x"), "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
}

func TestExists(t *testing.T) {
	r, api := newTestStore(t, nil)
	api.On("StatObject", mock.Anything, "snaps", "yes", mock.Anything).Return(minio.ObjectInfo{Key: "yes"}, nil)
	api.On("StatObject", mock.Anything, "snaps", "no", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})

	ok, err := r.Exists(context.Background(), "yes")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(context.Background(), "no")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	r, api := newTestStore(t, nil)
	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "v1/index.json", Size: 3}
	ch <- minio.ObjectInfo{Key: "v1/price.json", Size: 9}
	close(ch)
	api.On("ListObjects", mock.Anything, "snaps", minio.ListObjectsOptions{Prefix: "v1/", Recursive: true}).
		Return((<-chan minio.ObjectInfo)(ch))

	objs, err := r.List(context.Background(), "v1/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "v1/price.json", objs[1].Key)
}

func TestDelete(t *testing.T) {
	r, api := newTestStore(t, nil)
	api.On("RemoveObject", mock.Anything, "snaps", "k", mock.Anything).Return(nil)
	assert.NoError(t, r.Delete(context.Background(), "k"))
}
