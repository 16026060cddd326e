// Package units provides shared constants and validation for speed units
package units

import "strings"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units.
// The empty string is accepted and means km/h.
func IsValid(unit string) bool {
	if unit == "" {
		return true
	}
	for _, validUnit := range ValidUnits {
		if strings.EqualFold(unit, validUnit) {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ToKmph converts a speed reported in the given units to km/h, which is the
// unit every risk threshold is expressed in. Unknown units are treated as km/h.
func ToKmph(speed float64, fromUnits string) float64 {
	switch strings.ToLower(fromUnits) {
	case MPS:
		return speed * 3.6
	case MPH:
		return speed * 1.609344
	default:
		return speed
	}
}
