package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/buscluster/internal/risk"
	"github.com/banshee-data/buscluster/internal/telemetry"
)

var samplePoints = []telemetry.BusPoint{{
	BusID: "bus-1", Speed: 30, PeopleCount: 5, Latitude: 40.7, Longitude: -74, Timestamp: "t",
}}

func TestAPIClient_Detect(t *testing.T) {
	t.Parallel()

	mock := NewMockHTTPClient().AddResponse(http.StatusOK,
		`{"clusters":[["a","b"]],"cluster_analyses":[{"risk_level":"HIGH","analysis":"x","recommendations":["r"],"statistics":{"average_speed":65,"average_passengers":10,"cluster_size":2}}],"overall_risk_level":"HIGH","recommendations":["r"]}`)
	c := NewAPIClient("http://example.test/", mock)

	res, err := c.Detect(context.Background(), samplePoints)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if res.OverallRiskLevel != risk.High || len(res.Clusters) != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	req := mock.Requests[0]
	if req.Method != http.MethodPost || req.URL.String() != "http://example.test/detect-clusters" {
		t.Errorf("request = %s %s", req.Method, req.URL)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	body, _ := io.ReadAll(req.Body)
	var sent telemetry.ClusteringRequest
	if err := json.Unmarshal(body, &sent); err != nil || len(sent.BusPoints) != 1 {
		t.Errorf("sent body %s, err %v", body, err)
	}
}

func TestAPIClient_ErrorDetail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"json detail", http.StatusBadRequest, `{"detail":"No bus points provided"}`, "No bus points provided"},
		{"plain body", http.StatusBadGateway, "upstream down\n", "upstream down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewAPIClient("http://x", NewMockHTTPClient().AddResponse(tt.status, tt.body))
			_, err := c.Detect(context.Background(), nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Detail != tt.detail {
				t.Errorf("got %d %q, want %d %q", apiErr.StatusCode, apiErr.Detail, tt.status, tt.detail)
			}
		})
	}
}

func TestAPIClient_TransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	c := NewAPIClient("http://x", NewMockHTTPClient().AddErrorResponse(boom))
	if _, err := c.Info(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
}

func TestAPIClient_Info_RealServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONOK(w, Info{Message: "Bus Clustering Detection API", Version: "dev"})
	}))
	defer srv.Close()

	info, err := NewAPIClient(srv.URL, srv.Client()).Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Message != "Bus Clustering Detection API" {
		t.Errorf("message = %q", info.Message)
	}
}

func TestMockHTTPClient_DefaultsAndDoFunc(t *testing.T) {
	t.Parallel()

	m := NewMockHTTPClient()
	req, _ := http.NewRequest(http.MethodGet, "http://x", nil)
	resp, err := m.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("default response = %v, %v", resp, err)
	}

	m.DoFunc = func(*http.Request) (*http.Response, error) { return nil, errors.New("custom") }
	if _, err := m.Do(req); err == nil || err.Error() != "custom" {
		t.Errorf("DoFunc not used: %v", err)
	}
	if m.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2", m.RequestCount())
	}
}
