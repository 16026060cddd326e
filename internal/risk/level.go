// Package risk scores a cluster of buses against an ordered rule table and
// maps the resulting level to a fixed recommendation catalog.
package risk

import (
	"encoding/json"
	"fmt"
)

// Level is a qualitative risk level. Only Low, Medium and High are valid.
type Level string

const (
	Low    Level = "LOW"
	Medium Level = "MEDIUM"
	High   Level = "HIGH"
)

// Severity orders levels: Low < Medium < High. Unknown levels rank below Low.
func (l Level) Severity() int {
	switch l {
	case Low:
		return 1
	case Medium:
		return 2
	case High:
		return 3
	default:
		return 0
	}
}

// Valid reports whether l is one of the three defined levels.
func (l Level) Valid() bool { return l.Severity() > 0 }

func (l Level) String() string { return string(l) }

// UnmarshalJSON rejects values outside the three defined levels.
func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v := Level(s)
	if !v.Valid() {
		return fmt.Errorf("invalid risk level %q", s)
	}
	*l = v
	return nil
}

// Max returns the most severe of the given levels, or Low when none are given.
func Max(levels ...Level) Level {
	out := Low
	for _, l := range levels {
		if l.Severity() > out.Severity() {
			out = l
		}
	}
	return out
}

// RaiseTo returns a function that lifts a level to at least target.
func RaiseTo(target Level) func(Level) Level {
	return func(cur Level) Level { return Max(cur, target) }
}

// SetTo returns a function that overwrites the level with target.
func SetTo(target Level) func(Level) Level {
	return func(Level) Level { return target }
}

// StepUp moves a level one step up: Low to Medium, Medium to High. High stays High.
func StepUp(cur Level) Level {
	switch cur {
	case High, Medium:
		return High
	default:
		return Medium
	}
}
