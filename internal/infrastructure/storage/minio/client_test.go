package minio

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/pkg/errors"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *MockMinIOAPI) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	return m.Called(ctx, bucketName, opts).Get(0).(<-chan minio.ObjectInfo)
}

func (m *MockMinIOAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

// GetObject is never reached in unit tests; *minio.Object cannot be built
// without a live connection, so the repository's open hook is replaced.
func (m *MockMinIOAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return nil, args.Error(1)
}

func (m *MockMinIOAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockMinIOAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return m.Called(ctx, bucketName, objectName, opts).Error(0)
}

type ClientTestSuite struct {
	suite.Suite
	api *MockMinIOAPI
	log logging.Logger
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	s.log = logging.NewNopLogger()
}

func (s *ClientTestSuite) TestApplyDefaults() {
	cfg := &MinIOConfig{}
	applyDefaults(cfg)

	s.Equal("us-east-1", cfg.Region)
	s.Equal("aptrec-snapshots", cfg.Bucket)
	s.Equal(10*time.Second, cfg.ConnectTimeout)
}

func (s *ClientTestSuite) TestEnsureBucket_Exists() {
	s.api.On("BucketExists", mock.Anything, "snaps").Return(true, nil)
	c := newMinIOClient(s.api, &MinIOConfig{Bucket: "snaps"}, s.log)

	s.NoError(c.EnsureBucket(context.Background()))
	s.api.AssertNotCalled(s.T(), "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ClientTestSuite) TestEnsureBucket_Creates() {
	s.api.On("BucketExists", mock.Anything, "snaps").Return(false, nil)
	s.api.On("MakeBucket", mock.Anything, "snaps", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)
	c := newMinIOClient(s.api, &MinIOConfig{Bucket: "snaps"}, s.log)

	s.NoError(c.EnsureBucket(context.Background()))
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestEnsureBucket_CheckFails() {
	s.api.On("BucketExists", mock.Anything, "snaps").Return(false, assert.AnError)
	c := newMinIOClient(s.api, &MinIOConfig{Bucket: "snaps"}, s.log)

	err := c.EnsureBucket(context.Background())
	s.True(errors.IsCode(err, errors.ErrCodeExternalService))
}

func (s *ClientTestSuite) TestHealthCheck() {
	s.api.On("BucketExists", mock.Anything, "snaps").Return(true, nil).Once()
	c := newMinIOClient(s.api, &MinIOConfig{Bucket: "snaps"}, s.log)

	st, err := c.HealthCheck(context.Background())
	s.Require().NoError(err)
	s.True(st.Healthy)

	s.api.On("BucketExists", mock.Anything, "snaps").Return(false, nil).Once()
	st, err = c.HealthCheck(context.Background())
	s.Require().NoError(err)
	s.False(st.Healthy)
	s.Contains(st.Error, "snaps")
}

func (s *ClientTestSuite) TestClosedClient() {
	c := newMinIOClient(s.api, &MinIOConfig{}, s.log)
	require.NoError(s.T(), c.Close())

	_, err := c.HealthCheck(context.Background())
	s.ErrorIs(err, ErrMinIOClientClosed)
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
