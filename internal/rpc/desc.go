package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "buscluster.v1.BusClusterService"

// Full method names.
const (
	DetectClustersMethod = "/" + ServiceName + "/DetectClusters"
	InfoMethod           = "/" + ServiceName + "/Info"
)

// BusClusterServiceServer is the server API. Requests and responses use
// google.protobuf.Struct carrying the same JSON shapes as the HTTP API.
type BusClusterServiceServer interface {
	DetectClusters(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Info(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes BusClusterService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BusClusterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "DetectClusters", Handler: detectClustersHandler},
		{MethodName: "Info", Handler: infoHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "buscluster/v1/buscluster.proto",
}

func detectClustersHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BusClusterServiceServer).DetectClusters(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DetectClustersMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BusClusterServiceServer).DetectClusters(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func infoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BusClusterServiceServer).Info(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InfoMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BusClusterServiceServer).Info(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is a thin client for BusClusterService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// DetectClusters calls the DetectClusters RPC.
func (c *Client) DetectClusters(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DetectClustersMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Info calls the Info RPC.
func (c *Client) Info(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, InfoMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
