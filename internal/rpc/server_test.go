package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/buscluster/internal/cluster"
	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/monitoring"
	"github.com/banshee-data/buscluster/internal/pipeline"
	"github.com/banshee-data/buscluster/internal/risk"
)

func init() {
	monitoring.SetLogger(nil)
}

type panicPartitioner struct{}

func (panicPartitioner) Partition([]cluster.Point) ([]int, error) { panic("kaboom") }

func dial(t *testing.T, svc BusClusterServiceServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newService() *Server {
	return NewServer(&pipeline.Pipeline{Detector: detect.NewDefault(), Metrics: monitoring.NewMetrics()})
}

func busValue(id string, lat, lon, speed, people float64) interface{} {
	return map[string]interface{}{
		"bus_id":       id,
		"latitude":     lat,
		"longitude":    lon,
		"speed":        speed,
		"people_count": people,
		"timestamp":    "2024-01-01T08:00:00Z",
	}
}

func request(t *testing.T, buses ...interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(map[string]interface{}{"bus_points": buses})
	require.NoError(t, err)
	return s
}

func TestDetectClusters(t *testing.T) {
	c := NewClient(dial(t, newService()))

	out, err := c.DetectClusters(context.Background(), request(t,
		busValue("a", 51.5, -0.12, 15, 20),
		busValue("b", 51.501, -0.121, 15, 20),
		busValue("c", 51.502, -0.12, 15, 20),
	))
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, string(risk.High), m["overall_risk_level"])
	clusters := m["clusters"].([]interface{})
	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []interface{}{"a", "b", "c"}, clusters[0])

	analyses := m["cluster_analyses"].([]interface{})
	stats := analyses[0].(map[string]interface{})["statistics"].(map[string]interface{})
	assert.Equal(t, 15.0, stats["average_speed"])
	assert.Equal(t, 3.0, stats["cluster_size"])
}

func TestDetectClusters_NoClusters(t *testing.T) {
	c := NewClient(dial(t, newService()))

	out, err := c.DetectClusters(context.Background(), request(t, busValue("solo", 1, 1, 10, 1)))
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, "LOW", m["overall_risk_level"])
	assert.Empty(t, m["clusters"])
	assert.Empty(t, m["recommendations"])
}

func TestDetectClusters_Errors(t *testing.T) {
	tests := []struct {
		name   string
		svc    *Server
		req    func(t *testing.T) *structpb.Struct
		code   codes.Code
		detail string
	}{
		{
			name:   "empty",
			svc:    newService(),
			req:    func(t *testing.T) *structpb.Struct { return request(t) },
			code:   codes.InvalidArgument,
			detail: pipeline.EmptySnapshotDetail,
		},
		{
			name:   "no envelope",
			svc:    newService(),
			req:    func(*testing.T) *structpb.Struct { return &structpb.Struct{} },
			code:   codes.InvalidArgument,
			detail: pipeline.EmptySnapshotDetail,
		},
		{
			name:   "out of range",
			svc:    newService(),
			req:    func(t *testing.T) *structpb.Struct { return request(t, busValue("a", 100, 0, 1, 1)) },
			code:   codes.InvalidArgument,
			detail: "latitude",
		},
		{
			name: "computation failure",
			svc: NewServer(&pipeline.Pipeline{
				Detector: detect.New(panicPartitioner{}, risk.NewAnalyzer(risk.DefaultThresholds())),
			}),
			req:    func(t *testing.T) *structpb.Struct { return request(t, busValue("a", 1, 1, 1, 1)) },
			code:   codes.Internal,
			detail: "kaboom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(dial(t, tt.svc))
			_, err := c.DetectClusters(context.Background(), tt.req(t))
			st, ok := status.FromError(err)
			require.True(t, ok, "not a status error: %v", err)
			assert.Equal(t, tt.code, st.Code())
			assert.Contains(t, st.Message(), tt.detail)
		})
	}
}

func TestInfo(t *testing.T) {
	c := NewClient(dial(t, newService()))
	out, err := c.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bus Clustering Detection API", out.AsMap()["message"])
}

func TestHealth(t *testing.T) {
	conn := dial(t, newService())
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

type panicService struct{ *Server }

func (panicService) Info(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	panic("info exploded")
}

func TestRecoveryInterceptor(t *testing.T) {
	c := NewClient(dial(t, panicService{newService()}))
	_, err := c.Info(context.Background())
	assert.Equal(t, codes.Internal, status.Code(err))
}
