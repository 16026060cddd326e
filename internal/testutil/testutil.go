// Package testutil provides shared test helpers and bus snapshot fixtures.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/buscluster/internal/telemetry"
)

// FixedTimestamp is the timestamp carried by every fixture point.
const FixedTimestamp = "2024-01-01T08:00:00Z"

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Bus builds one observation.
func Bus(id string, lat, lon, speed float64, people int) telemetry.BusPoint {
	return telemetry.BusPoint{
		BusID:       id,
		Speed:       speed,
		PeopleCount: people,
		Latitude:    lat,
		Longitude:   lon,
		Timestamp:   FixedTimestamp,
	}
}

// RandomSnapshot returns n points with unique IDs scattered over a small
// area so that some, but not all, of them cluster at the default eps.
func RandomSnapshot(rng *rand.Rand, n int) []telemetry.BusPoint {
	out := make([]telemetry.BusPoint, n)
	for i := range out {
		out[i] = Bus(
			fmt.Sprintf("bus-%03d", i),
			40.70+rng.Float64()*0.08,
			-74.00+rng.Float64()*0.08,
			rng.Float64()*90,
			rng.Intn(100),
		)
	}
	return out
}

// Shuffled returns a permuted copy of points.
func Shuffled(rng *rand.Rand, points []telemetry.BusPoint) []telemetry.BusPoint {
	out := append([]telemetry.BusPoint(nil), points...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// RequestBody encodes points as a detection request body.
func RequestBody(t *testing.T, points []telemetry.BusPoint) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(telemetry.ClusteringRequest{BusPoints: points}); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	return &buf
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
