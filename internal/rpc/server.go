// Package rpc exposes cluster detection over gRPC.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/monitoring"
	"github.com/banshee-data/buscluster/internal/pipeline"
	"github.com/banshee-data/buscluster/internal/version"
)

// Transport labels gRPC requests in metrics and the archive.
const Transport = "grpc"

// Ensure Server implements the gRPC interface.
var _ BusClusterServiceServer = (*Server)(nil)

// Server implements BusClusterService on top of a pipeline.
type Server struct {
	pipeline *pipeline.Pipeline
}

// NewServer creates the service implementation.
func NewServer(p *pipeline.Pipeline) *Server {
	return &Server{pipeline: p}
}

// DetectClusters accepts {"bus_points": [...]} and returns the detection
// result. Invalid input maps to InvalidArgument, computation failures to
// Internal.
func (s *Server) DetectClusters(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	body, err := protojson.Marshal(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}
	out, err := s.pipeline.Run(ctx, Transport, bytes.NewReader(body))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(out.Result)
}

// Info reports the service banner and build metadata.
func (s *Server) Info(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	v := version.Get()
	return structpb.NewStruct(map[string]interface{}{
		"message":    "Bus Clustering Detection API",
		"version":    v.Version,
		"git_sha":    v.GitSHA,
		"build_time": v.BuildTime,
	})
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, detect.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, pipeline.Detail(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, pipeline.Detail(err))
	}
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// NewGRPCServer builds a grpc.Server with the service, a health service and
// logging and panic-recovery interceptors.
func NewGRPCServer(svc BusClusterServiceServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(recoveryInterceptor, loggingInterceptor))
	s := grpc.NewServer(opts...)
	s.RegisterService(&ServiceDesc, svc)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	monitoring.Logf("[gRPC] %s %s %.3fms", info.FullMethod, status.Code(err),
		float64(time.Since(start).Nanoseconds())/1e6)
	return resp, err
}

func recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("[gRPC] panic in %s: %v\n%s", info.FullMethod, r, debug.Stack())
			err = status.Error(codes.Internal, fmt.Sprint(r))
		}
	}()
	return handler(ctx, req)
}
