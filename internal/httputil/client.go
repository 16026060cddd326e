package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/telemetry"
)

// HTTPClient abstracts HTTP operations for testability.
// Use http.Client for production; MockHTTPClient for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx response from the detection server.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// Info is the payload of GET /.
type Info struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// APIClient talks to a running detection server.
type APIClient struct {
	BaseURL string
	HTTP    HTTPClient
}

// NewAPIClient returns a client for baseURL. A nil c uses http.DefaultClient.
func NewAPIClient(baseURL string, c HTTPClient) *APIClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &APIClient{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: c}
}

// Info fetches the service banner.
func (c *APIClient) Info(ctx context.Context) (*Info, error) {
	var out Info
	if err := c.call(ctx, http.MethodGet, "/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Detect posts a snapshot to /detect-clusters.
func (c *APIClient) Detect(ctx context.Context, points []telemetry.BusPoint) (*detect.Result, error) {
	body, err := json.Marshal(telemetry.ClusteringRequest{BusPoints: points})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var out detect.Result
	if err := c.call(ctx, http.MethodPost, "/detect-clusters", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) call(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb ErrorBody
		if json.Unmarshal(data, &eb) != nil || eb.Detail == "" {
			eb.Detail = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: eb.Detail}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// MockHTTPClient provides a testable HTTP client implementation.
type MockHTTPClient struct {
	mu          sync.Mutex
	DoFunc      func(req *http.Request) (*http.Response, error)
	Requests    []*http.Request
	Responses   []*MockResponse
	responseIdx int
}

// MockResponse defines a canned HTTP response for testing.
type MockResponse struct {
	StatusCode int
	Body       string
	Error      error
}

// NewMockHTTPClient creates a new mock HTTP client.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a response to be returned by subsequent requests.
func (m *MockHTTPClient) AddResponse(statusCode int, body string) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{StatusCode: statusCode, Body: body})
	return m
}

// AddErrorResponse queues a transport error.
func (m *MockHTTPClient) AddErrorResponse(err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{Error: err})
	return m
}

// Do records the request and returns the next queued response, or an empty
// 200 when the queue is exhausted.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.DoFunc != nil {
		return m.DoFunc(req)
	}

	resp := &MockResponse{StatusCode: http.StatusOK}
	if m.responseIdx < len(m.Responses) {
		resp = m.Responses[m.responseIdx]
		m.responseIdx++
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Body:       io.NopCloser(strings.NewReader(resp.Body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// RequestCount returns the number of recorded requests.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
