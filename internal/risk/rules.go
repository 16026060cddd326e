package risk

import "fmt"

// Default thresholds, with speeds in km/h.
const (
	DefaultLowSpeedKmh        = 20.0
	DefaultHighSpeedKmh       = 60.0
	DefaultHighPassengerCount = 50.0
	DefaultLargeClusterSize   = 3
)

// Thresholds parameterises the default rule table.
type Thresholds struct {
	LowSpeedKmh        float64 // average speed strictly below this is slow
	HighSpeedKmh       float64 // average speed strictly above this is fast
	HighPassengerCount float64 // average passengers strictly above this is crowded
	LargeClusterSize   int     // clusters with at least this many buses are large
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowSpeedKmh:        DefaultLowSpeedKmh,
		HighSpeedKmh:       DefaultHighSpeedKmh,
		HighPassengerCount: DefaultHighPassengerCount,
		LargeClusterSize:   DefaultLargeClusterSize,
	}
}

// Stats summarises one cluster's members.
type Stats struct {
	AverageSpeed      float64
	AveragePassengers float64
	Size              int
}

// Rule is one step of the scoring table. When the predicate holds, Finding is
// appended to the findings and Escalate maps the current level to the next.
// A rule naming another rule in Unless is skipped if that rule fired, which
// expresses an if/else-if pair as two table rows.
type Rule struct {
	Name     string
	When     func(Stats) bool
	Finding  func(Stats) string
	Escalate func(Level) Level
	Unless   string
}

func constFinding(s string) func(Stats) string {
	return func(Stats) string { return s }
}

// Rule names in the default table.
const (
	RuleLowSpeed     = "low_speed"
	RuleHighSpeed    = "high_speed"
	RuleHighCrowding = "high_passenger_count"
	RuleLargeCluster = "large_cluster"
)

// DefaultRules returns the scoring table in evaluation order. Order matters:
// the high-speed rule overwrites the level, so moving it after the
// escalation rules changes outcomes.
func DefaultRules(th Thresholds) []Rule {
	return []Rule{
		{
			Name:     RuleLowSpeed,
			When:     func(s Stats) bool { return s.AverageSpeed < th.LowSpeedKmh },
			Finding:  constFinding("Low speed indicates possible traffic or stops"),
			Escalate: RaiseTo(Medium),
		},
		{
			Name:     RuleHighSpeed,
			When:     func(s Stats) bool { return s.AverageSpeed > th.HighSpeedKmh },
			Finding:  constFinding("High speed with multiple buses indicates potential safety risk"),
			Escalate: SetTo(High),
			Unless:   RuleLowSpeed,
		},
		{
			Name:     RuleHighCrowding,
			When:     func(s Stats) bool { return s.AveragePassengers > th.HighPassengerCount },
			Finding:  constFinding("High passenger count detected"),
			Escalate: StepUp,
		},
		{
			Name:     RuleLargeCluster,
			When:     func(s Stats) bool { return s.Size >= th.LargeClusterSize },
			Finding:  func(s Stats) string { return fmt.Sprintf("Large cluster of %d buses detected", s.Size) },
			Escalate: StepUp,
		},
	}
}

// Evaluate runs rules in order over stats, starting from Low, and returns
// the final level with the findings of every rule that fired.
func Evaluate(rules []Rule, stats Stats) (Level, []string) {
	level := Low
	var findings []string
	fired := make(map[string]bool, len(rules))

	for _, r := range rules {
		if r.Unless != "" && fired[r.Unless] {
			continue
		}
		if !r.When(stats) {
			continue
		}
		fired[r.Name] = true
		findings = append(findings, r.Finding(stats))
		level = r.Escalate(level)
	}
	return level, findings
}
