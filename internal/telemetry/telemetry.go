// Package telemetry defines the bus observation record and the request
// envelope carrying a snapshot of them.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/banshee-data/buscluster/internal/units"
)

// MaxRequestBytes bounds the size of a decoded request body.
const MaxRequestBytes = 8 << 20

// BusPoint is one vehicle observation. Speed is in km/h once normalised.
type BusPoint struct {
	BusID       string  `json:"bus_id" validate:"required"`
	Speed       float64 `json:"speed" validate:"gte=0"`
	PeopleCount int     `json:"people_count" validate:"gte=0"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Timestamp   string  `json:"timestamp"`
}

// busPointWire mirrors BusPoint with pointer fields so that absent keys can
// be told apart from zero values.
type busPointWire struct {
	BusID       *string  `json:"bus_id" validate:"required"`
	Speed       *float64 `json:"speed" validate:"required"`
	PeopleCount *int     `json:"people_count" validate:"required"`
	Latitude    *float64 `json:"latitude" validate:"required"`
	Longitude   *float64 `json:"longitude" validate:"required"`
	Timestamp   *string  `json:"timestamp" validate:"required"`
}

// ClusteringRequest is the request envelope: {"bus_points": [...]}.
type ClusteringRequest struct {
	BusPoints []BusPoint `json:"bus_points"`
}

type clusteringRequestWire struct {
	BusPoints []busPointWire `json:"bus_points" validate:"dive"`
}

type snapshot struct {
	Points []BusPoint `json:"bus_points" validate:"unique=BusID,dive"`
}

// ErrEmptySnapshot is returned when a request carries no bus points.
var ErrEmptySnapshot = errors.New("no bus points provided")

// ValidationError describes every rule a request broke.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid bus points: " + strings.Join(e.Problems, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names so messages match what the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeRequest parses a JSON ClusteringRequest, rejecting malformed JSON,
// missing fields and empty snapshots. Speeds are converted from speedUnits to
// km/h. The returned error is ErrEmptySnapshot, a *ValidationError, or a
// decoding error.
func DecodeRequest(r io.Reader, speedUnits string) ([]BusPoint, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxRequestBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if len(body) > MaxRequestBytes {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("request body exceeds %d bytes", MaxRequestBytes)}}
	}

	var wire clusteringRequestWire
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&wire); err != nil {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if len(wire.BusPoints) == 0 {
		return nil, ErrEmptySnapshot
	}
	if err := validate.Struct(wire); err != nil {
		return nil, toValidationError(err)
	}

	points := make([]BusPoint, len(wire.BusPoints))
	for i, w := range wire.BusPoints {
		points[i] = BusPoint{
			BusID:       *w.BusID,
			Speed:       units.ToKmph(*w.Speed, speedUnits),
			PeopleCount: *w.PeopleCount,
			Latitude:    *w.Latitude,
			Longitude:   *w.Longitude,
			Timestamp:   *w.Timestamp,
		}
	}
	if err := Validate(points); err != nil {
		return nil, err
	}
	return points, nil
}

// Validate checks a snapshot: it must be non-empty, every point must be in
// range, and bus IDs must be unique.
func Validate(points []BusPoint) error {
	if len(points) == 0 {
		return ErrEmptySnapshot
	}
	if err := validate.Struct(snapshot{Points: points}); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return &ValidationError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	// Drop the root struct name from the namespace.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + ": field required"
	case "gte":
		return fmt.Sprintf("%s: must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s: must be <= %s", field, fe.Param())
	case "unique":
		return field + ": bus_id values must be unique"
	default:
		return fmt.Sprintf("%s: failed %q", field, fe.Tag())
	}
}
