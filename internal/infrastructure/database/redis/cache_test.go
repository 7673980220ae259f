package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/aptrec/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	client := NewClientWithUniversal(db, config.RedisConfig{KeyPrefix: "test:"}, logging.NewNopLogger())
	s.cache = NewRedisCache(client, logging.NewNopLogger(), WithoutJitter(), WithDefaultTTL(time.Minute))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func (s *CacheTestSuite) TestGet_Hit() {
	s.mock.ExpectGet("test:listing:B").SetVal(`"https://listings.example/b"`)

	var link string
	s.Require().NoError(s.cache.Get(context.Background(), "listing:B", &link))
	s.Equal("https://listings.example/b", link)
}

func (s *CacheTestSuite) TestGet_Miss() {
	s.mock.ExpectGet("test:listing:B").RedisNil()

	var link string
	s.ErrorIs(s.cache.Get(context.Background(), "listing:B", &link), ErrCacheMiss)
}

func (s *CacheTestSuite) TestGet_NullMarkerIsMiss() {
	s.mock.ExpectGet("test:listing:Z").SetVal(NullValue)

	var link string
	s.ErrorIs(s.cache.Get(context.Background(), "listing:Z", &link), ErrCacheMiss)
}

func (s *CacheTestSuite) TestGet_Error() {
	s.mock.ExpectGet("test:k").SetErr(errors.New("io timeout"))

	var v string
	err := s.cache.Get(context.Background(), "k", &v)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestSet_UsesDefaultTTL() {
	s.mock.ExpectSet("test:k", []byte(`"v"`), time.Minute).SetVal("OK")
	s.NoError(s.cache.Set(context.Background(), "k", "v", 0))
}

func (s *CacheTestSuite) TestMGet() {
	s.mock.ExpectMGet("test:a", "test:b", "test:c").SetVal([]interface{}{`"x"`, nil, NullValue})

	raw, err := s.cache.MGet(context.Background(), []string{"a", "b", "c"})
	s.Require().NoError(err)
	s.Equal([]byte(`"x"`), raw["a"])
	s.NotContains(raw, "b")
	s.True(IsNull(raw["c"]))
}

func (s *CacheTestSuite) TestSetNull() {
	s.mock.ExpectSet("test:z", NullValue, 30*time.Second).SetVal("OK")
	s.NoError(s.cache.SetNull(context.Background(), "z"))
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:a", "test:b").SetVal(2)
	s.NoError(s.cache.Delete(context.Background(), "a", "b"))
	s.NoError(s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestExists() {
	s.mock.ExpectExists("test:a").SetVal(1)
	ok, err := s.cache.Exists(context.Background(), "a")
	s.NoError(err)
	s.True(ok)
}

func (s *CacheTestSuite) TestGetOrSet_LoadsOnMiss() {
	s.mock.ExpectGet("test:k").RedisNil()
	s.mock.ExpectSet("test:k", []byte(`"loaded"`), time.Minute).SetVal("OK")

	var out string
	err := s.cache.GetOrSet(context.Background(), "k", &out, 0, func(context.Context) (interface{}, error) {
		return "loaded", nil
	})
	s.NoError(err)
	s.Equal("loaded", out)
}

func (s *CacheTestSuite) TestGetOrSet_NilCachesNull() {
	s.mock.ExpectGet("test:k").RedisNil()
	s.mock.ExpectSet("test:k", NullValue, 30*time.Second).SetVal("OK")

	var out string
	err := s.cache.GetOrSet(context.Background(), "k", &out, 0, func(context.Context) (interface{}, error) {
		return nil, nil
	})
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *CacheTestSuite) TestGetOrSet_LoaderError() {
	s.mock.ExpectGet("test:k").RedisNil()

	var out string
	err := s.cache.GetOrSet(context.Background(), "k", &out, 0, func(context.Context) (interface{}, error) {
		return nil, assert.AnError
	})
	s.ErrorIs(err, assert.AnError)
}

func TestCacheTestSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestGetOrSet_SingleflightCollapsesLoads(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.MatchExpectationsInOrder(false)
	client := NewClientWithUniversal(db, config.RedisConfig{}, nil)
	cache := NewRedisCache(client, nil, WithoutJitter())

	const callers = 5
	for i := 0; i < callers; i++ {
		mock.ExpectGet("hot").RedisNil()
	}
	mock.ExpectSet("hot", []byte(`"v"`), 10*time.Minute).SetVal("OK")

	var loads atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out string
			_ = cache.GetOrSet(context.Background(), "hot", &out, 0, func(context.Context) (interface{}, error) {
				loads.Add(1)
				<-release
				return "v", nil
			})
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, loads.Load(), int32(callers))
	assert.GreaterOrEqual(t, loads.Load(), int32(1))
}

func TestIncrOnce(t *testing.T) {
	client, mr := newLockClient(t)
	cache := NewRedisCache(client, logging.NewNopLogger())
	ctx := context.Background()

	ok, err := cache.IncrOnce(ctx, "seen:e1", time.Hour, "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.IncrOnce(ctx, "seen:e1", time.Hour, "a", "b")
	require.NoError(t, err)
	assert.False(t, ok)

	a, _ := mr.Get("aptrec:a")
	assert.Equal(t, "1", a)
	assert.True(t, mr.Exists("aptrec:seen:e1"))
	assert.Greater(t, mr.TTL("aptrec:seen:e1"), time.Duration(0))
}

func TestIncrOnce_NoMarker(t *testing.T) {
	client, mr := newLockClient(t)
	cache := NewRedisCache(client, logging.NewNopLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := cache.IncrOnce(ctx, "seen:e1", 0, "a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	a, _ := mr.Get("aptrec:a")
	assert.Equal(t, "2", a)
	assert.False(t, mr.Exists("aptrec:seen:e1"))
}

func TestIncrOnce_FailureUndoesEarlierKeys(t *testing.T) {
	client, mr := newLockClient(t)
	cache := NewRedisCache(client, logging.NewNopLogger())
	ctx := context.Background()
	require.NoError(t, mr.Set("aptrec:b", "not-a-number"))

	_, err := cache.IncrOnce(ctx, "seen:e1", time.Hour, "a", "b", "c")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))

	a, _ := mr.Get("aptrec:a")
	assert.Equal(t, "0", a)
	assert.False(t, mr.Exists("aptrec:c"))
	assert.False(t, mr.Exists("aptrec:seen:e1"))
}
