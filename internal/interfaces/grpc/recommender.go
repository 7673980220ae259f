package grpc

import (
	"context"
	"math"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/turtacn/aptrec/internal/application/recommend"
	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/pkg/errors"
)

const (
	RecommenderServiceName = "aptrec.v1.Recommender"

	methodRecommend  = "/" + RecommenderServiceName + "/Recommend"
	methodNearby     = "/" + RecommenderServiceName + "/Nearby"
	methodProperties = "/" + RecommenderServiceName + "/Properties"

	// TrailerErrorCode carries the application error code of a failed call.
	TrailerErrorCode = "x-error-code"

	transportGRPC = "grpc"
)

// RecommenderServer is the server API of aptrec.v1.Recommender. Requests and
// responses are google.protobuf.Struct documents shaped like the HTTP JSON
// bodies.
type RecommenderServer interface {
	Recommend(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Nearby(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Properties(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RecommenderServiceDesc describes aptrec.v1.Recommender for registration.
var RecommenderServiceDesc = grpc.ServiceDesc{
	ServiceName: RecommenderServiceName,
	HandlerType: (*RecommenderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recommend", Handler: recommendHandler},
		{MethodName: "Nearby", Handler: nearbyHandler},
		{MethodName: "Properties", Handler: propertiesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aptrec/v1/recommender.proto",
}

// RegisterRecommenderServer registers impl on s.
func RegisterRecommenderServer(s *Server, impl RecommenderServer) {
	s.RegisterService(&RecommenderServiceDesc, impl)
}

func recommendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecommenderServer).Recommend(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRecommend}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RecommenderServer).Recommend(ctx, req.(*structpb.Struct))
	})
}

func nearbyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecommenderServer).Nearby(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodNearby}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RecommenderServer).Nearby(ctx, req.(*structpb.Struct))
	})
}

func propertiesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecommenderServer).Properties(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodProperties}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RecommenderServer).Properties(ctx, req.(*emptypb.Empty))
	})
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// RecommenderClient is the client API of aptrec.v1.Recommender.
type RecommenderClient struct {
	cc grpc.ClientConnInterface
}

func NewRecommenderClient(cc grpc.ClientConnInterface) *RecommenderClient {
	return &RecommenderClient{cc: cc}
}

func (c *RecommenderClient) Recommend(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodRecommend, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RecommenderClient) Nearby(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodNearby, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RecommenderClient) Properties(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodProperties, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Server implementation
// ---------------------------------------------------------------------------

// RecommendService is the application surface the gRPC service needs.
type RecommendService interface {
	Recommend(ctx context.Context, in recommend.RecommendInput) (*recommend.RecommendOutput, error)
	Nearby(ctx context.Context, in recommend.NearbyInput) (*recommend.NearbyOutput, error)
	Properties(ctx context.Context) ([]string, error)
	Options() recommend.Options
}

type recommenderServer struct {
	svc RecommendService
}

// NewRecommenderServer adapts svc to RecommenderServer.
func NewRecommenderServer(svc RecommendService) RecommenderServer {
	return &recommenderServer{svc: svc}
}

// Recommend expects {"property": string, "top_n"?: number,
// "weights"?: {"facilities"?, "price"?, "location"?}}. Missing weight keys
// keep the configured defaults.
func (s *recommenderServer) Recommend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	property, err := requiredString(fields, "property")
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	topN, err := optionalInt(fields, "top_n")
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	in := recommend.RecommendInput{Property: property, TopN: topN, Transport: transportGRPC}
	if v, ok := fields["weights"]; ok {
		w, err := mergeWeights(s.svc.Options().Weights, v)
		if err != nil {
			return nil, toStatus(ctx, err)
		}
		in.Weights = &w
	}

	out, err := s.svc.Recommend(ctx, in)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	results := make([]interface{}, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, map[string]interface{}{
			"name":  r.Name,
			"score": r.Score,
			"link":  r.Link,
		})
	}
	return newStruct(ctx, map[string]interface{}{
		"property": out.Property,
		"weights": map[string]interface{}{
			"facilities": out.Weights.Facilities,
			"price":      out.Weights.Price,
			"location":   out.Weights.Location,
		},
		"top_n":    out.TopN,
		"snapshot": out.Snapshot,
		"results":  results,
	})
}

// Nearby expects {"landmark": string, "radius_km"?: number}.
func (s *recommenderServer) Nearby(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	name, err := requiredString(fields, "landmark")
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	radius, _, err := optionalNumber(fields, "radius_km")
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out, err := s.svc.Nearby(ctx, recommend.NearbyInput{Landmark: name, RadiusKM: radius})
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	props := make([]interface{}, 0, len(out.Properties))
	for _, p := range out.Properties {
		props = append(props, map[string]interface{}{
			"name":        p.Name,
			"distance_km": p.DistanceKM,
		})
	}
	return newStruct(ctx, map[string]interface{}{
		"landmark":   out.Landmark,
		"radius_km":  out.RadiusKM,
		"properties": props,
	})
}

func (s *recommenderServer) Properties(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	names, err := s.svc.Properties(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	list := make([]interface{}, len(names))
	for i, n := range names {
		list[i] = n
	}
	return newStruct(ctx, map[string]interface{}{"list": list, "count": len(names)})
}

// ---------------------------------------------------------------------------
// Field decoding
// ---------------------------------------------------------------------------

func requiredString(fields map[string]*structpb.Value, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", errors.InvalidParam(key + " is required")
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", errors.InvalidParam(key + " must be a string")
	}
	if sv.StringValue == "" {
		return "", errors.InvalidParam(key + " is required")
	}
	return sv.StringValue, nil
}

func optionalNumber(fields map[string]*structpb.Value, key string) (float64, bool, error) {
	v, ok := fields[key]
	if !ok {
		return 0, false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return 0, false, nil
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false, errors.InvalidParam(key + " must be a number")
	}
	return nv.NumberValue, true, nil
}

func optionalInt(fields map[string]*structpb.Value, key string) (int, error) {
	n, ok, err := optionalNumber(fields, key)
	if err != nil || !ok {
		return 0, err
	}
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, errors.InvalidParam(key + " must be an integer")
	}
	return int(n), nil
}

func mergeWeights(base similarity.Weights, v *structpb.Value) (similarity.Weights, error) {
	sv, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return base, errors.InvalidParam("weights must be an object")
	}
	fields := sv.StructValue.GetFields()
	for key, dst := range map[string]*float64{
		"facilities": &base.Facilities,
		"price":      &base.Price,
		"location":   &base.Location,
	} {
		n, present, err := optionalNumber(fields, key)
		if err != nil {
			return base, errors.InvalidParam("weights." + key + " must be a number")
		}
		if present {
			*dst = n
		}
	}
	return base, nil
}

func newStruct(ctx context.Context, m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, toStatus(ctx, errors.Wrap(err, errors.ErrCodeSerialization, "encode response"))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

// toStatus converts an application error into a gRPC status and sets the
// application code as a trailer. Errors without a code are masked.
func toStatus(ctx context.Context, err error) error {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		return status.Error(codes.Internal, "internal server error")
	}
	code := errors.GetCode(err)
	_ = grpc.SetTrailer(ctx, metadata.Pairs(TrailerErrorCode, string(code)))
	return status.Error(grpcCode(code), appErr.Message)
}

func grpcCode(code errors.ErrorCode) codes.Code {
	// Missing links are a data fault, not an outage; clients must not retry.
	if code == errors.ErrCodeMissingListing {
		return codes.DataLoss
	}
	switch errors.HTTPStatusForCode(code) {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.Aborted
	case http.StatusUnprocessableEntity:
		return codes.FailedPrecondition
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

//Personal.AI order the ending
