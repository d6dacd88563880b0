/*
Package anomaly scores attendance and payroll records for review flagging.

PURPOSE:
  A single deterministic scoring function shared by the attendance
  normalizer and the payroll calculator. Given a feature vector and a
  configuration snapshot it returns a score in [0,1] and whether the
  record crosses the review threshold.

DETERMINISM:
  Identical inputs always produce identical scores. The configuration is
  passed in as an immutable snapshot, never read from ambient state, so
  audits can reproduce any historical flag.

SEE ALSO:
  - attendance/normalizer.go: per-day feature extraction
  - payroll/calculator.go: per-month feature extraction
*/
package anomaly

import (
	"fmt"
	"math"
	"strings"
)

// =============================================================================
// CONFIGURATION - Immutable snapshot passed into every call
// =============================================================================

// Weights controls the contribution of each feature to the final score.
// They are normalized internally, so only relative magnitude matters.
type Weights struct {
	Confidence float64 // low verification confidence
	Geofence   float64 // punch distance beyond branch radius
	Deviation  float64 // deviation from personal/department baseline
}

// DefaultWeights weighs confidence and deviation evenly, geofence lower.
func DefaultWeights() Weights {
	return Weights{Confidence: 0.4, Geofence: 0.2, Deviation: 0.4}
}

// Config is the scoring configuration snapshot.
type Config struct {
	Weights Weights

	// FlagThreshold sets the review cutoff. Scores >= threshold flag the
	// record. Zero disables flagging entirely.
	FlagThreshold float64

	// MinConfidence below which verification contributes its full weight.
	MinConfidence float64

	// GeofenceSlack is how many meters beyond the branch radius it takes
	// to reach the full geofence penalty.
	GeofenceSlack float64

	// DeviationSpan is the relative deviation (1.0 = 100% away from the
	// baseline) that saturates the deviation feature.
	DeviationSpan float64
}

func DefaultConfig() Config {
	return Config{
		Weights:       DefaultWeights(),
		FlagThreshold: 0.6,
		MinConfidence: 0.8,
		GeofenceSlack: 200,
		DeviationSpan: 0.75,
	}
}

// =============================================================================
// FEATURES
// =============================================================================

// Features is the raw input vector. Callers set only the fields that apply;
// a feature left at its zero value with Has*=false is skipped and its
// weight redistributed over the present ones.
type Features struct {
	// Confidence in [0,1] from the verification device.
	Confidence    float64
	HasConfidence bool

	// GeofenceDistance is meters outside the branch radius (0 = inside).
	GeofenceDistance    float64
	HasGeofenceDistance bool

	// BaselineDeviation is |value - baseline| / baseline, e.g. worked
	// hours against the trailing-30-day average, or net salary against
	// the prior month.
	BaselineDeviation    float64
	HasBaselineDeviation bool
}

// =============================================================================
// SCORING
// =============================================================================

// Result is the outcome of one scoring call.
type Result struct {
	Score   float64
	Flagged bool
	Reasons []string
}

// Reason joins the individual flag reasons into one human-readable string.
func (r Result) Reason() string { return strings.Join(r.Reasons, "; ") }

// Score evaluates the feature vector against the configuration.
// Pure function: no state, no clock, no randomness.
func Score(f Features, cfg Config) Result {
	type component struct {
		weight float64
		value  float64
		reason string
	}
	var parts []component

	if f.HasConfidence {
		v := 0.0
		if cfg.MinConfidence > 0 && f.Confidence < cfg.MinConfidence {
			v = clamp01((cfg.MinConfidence - f.Confidence) / cfg.MinConfidence)
		}
		parts = append(parts, component{
			weight: cfg.Weights.Confidence,
			value:  v,
			reason: fmt.Sprintf("verification confidence %.2f below %.2f", f.Confidence, cfg.MinConfidence),
		})
	}
	if f.HasGeofenceDistance {
		v := 0.0
		if f.GeofenceDistance > 0 && cfg.GeofenceSlack > 0 {
			v = clamp01(f.GeofenceDistance / cfg.GeofenceSlack)
		}
		parts = append(parts, component{
			weight: cfg.Weights.Geofence,
			value:  v,
			reason: fmt.Sprintf("punch %.0fm outside branch geofence", f.GeofenceDistance),
		})
	}
	if f.HasBaselineDeviation {
		v := 0.0
		if cfg.DeviationSpan > 0 {
			v = clamp01(math.Abs(f.BaselineDeviation) / cfg.DeviationSpan)
		}
		parts = append(parts, component{
			weight: cfg.Weights.Deviation,
			value:  v,
			reason: fmt.Sprintf("%.0f%% deviation from baseline", math.Abs(f.BaselineDeviation)*100),
		})
	}

	if len(parts) == 0 {
		return Result{}
	}

	totalWeight := 0.0
	for _, p := range parts {
		totalWeight += p.weight
	}
	if totalWeight == 0 {
		return Result{}
	}

	var score float64
	var reasons []string
	for _, p := range parts {
		contribution := p.value * (p.weight / totalWeight)
		score += contribution
		// A feature is worth mentioning when it carries real signal on
		// its own, not only when the total crosses the threshold.
		if p.value >= 0.5 {
			reasons = append(reasons, p.reason)
		}
	}

	score = clamp01(score)
	flagged := cfg.FlagThreshold > 0 && score >= cfg.FlagThreshold
	if !flagged {
		reasons = nil
	}
	return Result{Score: score, Flagged: flagged, Reasons: reasons}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
