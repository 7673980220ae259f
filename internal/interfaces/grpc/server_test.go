package grpc

import (
	"context"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/turtacn/aptrec/internal/application/recommend"
	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aptrec/internal/infrastructure/snapshot"
	"github.com/turtacn/aptrec/internal/testutil"
	"github.com/turtacn/aptrec/pkg/errors"
)

type harness struct {
	server  *Server
	svc     *recommend.Service
	conn    *grpc.ClientConn
	client  *RecommenderClient
	logger  *testutil.MockLogger
	metrics *prometheus.AppMetrics
}

func newHarness(t *testing.T, install bool) *harness {
	t.Helper()

	svc, err := recommend.NewService(recommend.Options{}, recommend.Deps{
		Holder: snapshot.NewHolder(nil),
		Lookup: testutil.FixtureListings(),
	})
	require.NoError(t, err)
	if install {
		_, err = svc.Install(&snapshot.Snapshot{
			Index:    testutil.FixtureIndex,
			Matrices: testutil.FixtureMatrices(),
			Landmarks: &snapshot.LandmarkData{
				Properties: testutil.FixtureIndex,
				Landmarks:  testutil.FixtureLandmarkNames,
				Metres:     testutil.FixtureLandmarkMetres,
			},
			Source: "fixture",
		})
		require.NoError(t, err)
	}

	logger := testutil.NewMockLogger()
	metrics := prometheus.NewNoopAppMetrics()
	srv := NewServer(config.GRPCConfig{EnableReflection: true}, WithLogger(logger), WithMetrics(metrics))
	RegisterRecommenderServer(srv, NewRecommenderServer(svc))
	srv.SetServing(svc.Ready())

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		_ = srv.Stop(context.Background())
	})
	return &harness{server: srv, svc: svc, conn: conn, client: NewRecommenderClient(conn), logger: logger, metrics: metrics}
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestRecommender_Recommend(t *testing.T) {
	h := newHarness(t, true)

	out, err := h.client.Recommend(context.Background(), mustStruct(t, map[string]interface{}{
		"property": "A",
		"top_n":    2,
		"weights":  map[string]interface{}{"facilities": 1, "price": 1, "location": 1},
	}))
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, "A", m["property"])
	assert.Equal(t, float64(2), m["top_n"])
	assert.Equal(t, "fixture", m["snapshot"])

	results := m["results"].([]interface{})
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	second := results[1].(map[string]interface{})
	assert.Equal(t, "B", first["name"])
	assert.InDelta(t, 1.4, first["score"].(float64), 1e-9)
	assert.Equal(t, "https://listings.example/b", first["link"])
	assert.Equal(t, "C", second["name"])
}

func TestRecommender_PartialWeightsKeepDefaults(t *testing.T) {
	h := newHarness(t, true)

	out, err := h.client.Recommend(context.Background(), mustStruct(t, map[string]interface{}{
		"property": "A",
		"weights":  map[string]interface{}{"price": 2},
	}))
	require.NoError(t, err)

	w := out.AsMap()["weights"].(map[string]interface{})
	assert.Equal(t, 0.5, w["facilities"])
	assert.Equal(t, float64(2), w["price"])
	assert.Equal(t, 1.0, w["location"])
}

func TestRecommender_ErrorMapping(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     map[string]interface{}
		code    codes.Code
		appCode errors.ErrorCode
	}{
		{"missing property", map[string]interface{}{}, codes.InvalidArgument, errors.ErrCodeBadRequest},
		{"property wrong type", map[string]interface{}{"property": 7}, codes.InvalidArgument, errors.ErrCodeBadRequest},
		{"fractional top_n", map[string]interface{}{"property": "A", "top_n": 1.5}, codes.InvalidArgument, errors.ErrCodeBadRequest},
		{"negative top_n", map[string]interface{}{"property": "A", "top_n": -1}, codes.InvalidArgument, errors.ErrCodeInvalidTopN},
		{"weights not object", map[string]interface{}{"property": "A", "weights": "heavy"}, codes.InvalidArgument, errors.ErrCodeBadRequest},
		{"unknown property", map[string]interface{}{"property": "Nowhere"}, codes.NotFound, errors.ErrCodeUnknownProperty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var trailer metadata.MD
			_, err := h.client.Recommend(ctx, mustStruct(t, tt.req), grpc.Trailer(&trailer))
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
			assert.Equal(t, []string{string(tt.appCode)}, trailer.Get(TrailerErrorCode))
		})
	}
}

func TestRecommender_NotReady(t *testing.T) {
	h := newHarness(t, false)

	var trailer metadata.MD
	_, err := h.client.Properties(context.Background(), grpc.Trailer(&trailer))
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, []string{string(errors.ErrCodeStoreNotReady)}, trailer.Get(TrailerErrorCode))
}

func TestRecommender_NearbyAndProperties(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	out, err := h.client.Nearby(ctx, mustStruct(t, map[string]interface{}{"landmark": "Central Station", "radius_km": 4}))
	require.NoError(t, err)
	props := out.AsMap()["properties"].([]interface{})
	require.Len(t, props, 2)
	assert.Equal(t, "A", props[0].(map[string]interface{})["name"])
	assert.InDelta(t, 0.9, props[0].(map[string]interface{})["distance_km"].(float64), 1e-9)
	assert.Equal(t, "C", props[1].(map[string]interface{})["name"])

	_, err = h.client.Nearby(ctx, mustStruct(t, map[string]interface{}{"landmark": "Harbour"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	list, err := h.client.Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(4), list.AsMap()["count"])
	assert.Equal(t, []interface{}{"A", "B", "C", "D"}, list.AsMap()["list"])
}

func TestServer_HealthFollowsReadiness(t *testing.T) {
	h := newHarness(t, false)
	hc := healthpb.NewHealthClient(h.conn)
	ctx := context.Background()

	resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: RecommenderServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	var ready atomic.Bool
	trackCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.server.TrackReadiness(trackCtx, ready.Load, 10*time.Millisecond)

	ready.Store(true)
	assert.Eventually(t, func() bool {
		resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_RequestIDAndLogging(t *testing.T) {
	h := newHarness(t, true)

	ctx := metadata.AppendToOutgoingContext(context.Background(), metadataRequestID, "req-42")
	_, err := h.client.Properties(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return h.logger.HasMessage("info", "grpc request") }, time.Second, 10*time.Millisecond)
	msg, ok := h.logger.Find("info", "grpc request")
	require.True(t, ok)
	method, _ := msg.FieldValue("method")
	assert.Equal(t, methodProperties, method)
}

func TestServer_DoubleServe(t *testing.T) {
	h := newHarness(t, true)
	assert.Eventually(t, func() bool { return h.server.Addr() != "" }, time.Second, 10*time.Millisecond)

	err := h.server.Serve(bufconn.Listen(1024))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already started"))
}

func TestServer_StopBeforeServe(t *testing.T) {
	srv := NewServer(config.GRPCConfig{})
	assert.NoError(t, srv.Stop(context.Background()))
	assert.Empty(t, srv.Addr())
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := recoveryUnaryInterceptor(logger)
	info := &grpc.UnaryServerInfo{FullMethod: methodRecommend}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.True(t, logger.HasMessage("error", "grpc panic recovered"))
}

func TestToStatus_MasksPlainErrors(t *testing.T) {
	err := toStatus(context.Background(), assert.AnError)
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal server error", st.Message())
}

func TestGRPCCode(t *testing.T) {
	assert.Equal(t, codes.InvalidArgument, grpcCode(errors.ErrCodeInvalidWeights))
	assert.Equal(t, codes.NotFound, grpcCode(errors.ErrCodeUnknownLandmark))
	assert.Equal(t, codes.FailedPrecondition, grpcCode(errors.ErrCodeShapeMismatch))
	assert.Equal(t, codes.DataLoss, grpcCode(errors.ErrCodeMissingListing))
	assert.Equal(t, codes.Unavailable, grpcCode(errors.ErrCodeServiceUnavailable))
	assert.Equal(t, codes.Unavailable, grpcCode(errors.ErrCodeStoreNotReady))
	assert.Equal(t, codes.ResourceExhausted, grpcCode(errors.ErrCodeTooManyRequests))
	assert.Equal(t, codes.Unimplemented, grpcCode(errors.ErrCodeNotImplemented))
	assert.Equal(t, codes.Internal, grpcCode(errors.ErrCodeInternal))
}

func TestSplitMethodName(t *testing.T) {
	svc, m := splitMethodName(methodNearby)
	assert.Equal(t, RecommenderServiceName, svc)
	assert.Equal(t, "Nearby", m)

	svc, m = splitMethodName("bare")
	assert.Equal(t, "unknown", svc)
	assert.Equal(t, "bare", m)
}

func TestKeepaliveParams(t *testing.T) {
	p := keepaliveParams(config.GRPCConfig{KeepaliveTime: time.Minute})
	assert.Equal(t, time.Minute, p.Time)
	assert.Equal(t, 20*time.Second, p.Timeout)
	assert.Equal(t, 15*time.Minute, p.MaxConnectionIdle)
}
