package recognition

import "fmt"

// Tier is the confidence band of a recognition decision.
type Tier string

const (
	TierRecognized Tier = "RECOGNIZED"
	TierMaybe      Tier = "MAYBE"
	TierUnknown    Tier = "UNKNOWN"
	TierNoFace     Tier = "NO_FACE"
)

// Thresholds are the inclusive lower bounds of the RECOGNIZED and MAYBE tiers.
type Thresholds struct {
	Recognized float64
	Maybe      float64
}

// DefaultThresholds returns 0.75 / 0.50.
func DefaultThresholds() Thresholds {
	return Thresholds{Recognized: 0.75, Maybe: 0.50}
}

// Validate requires 0 <= Maybe <= Recognized <= 1.
func (t Thresholds) Validate() error {
	if t.Maybe < 0 || t.Recognized > 1 || t.Maybe > t.Recognized {
		return fmt.Errorf("invalid thresholds: maybe=%.4f recognized=%.4f", t.Maybe, t.Recognized)
	}
	return nil
}

// Decision is the outcome of classifying a ranking.
// Candidate is nil for UNKNOWN and NO_FACE.
type Decision struct {
	Tier       Tier
	Candidate  *Candidate
	Confidence float64
}

// NoFace is the decision for an image without a detectable face.
func NoFace() Decision {
	return Decision{Tier: TierNoFace}
}

// Classifier maps similarity scores to tiers.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier validates thresholds and returns a classifier.
func NewClassifier(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: t}, nil
}

// Thresholds returns the configured bounds.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify maps a score to RECOGNIZED, MAYBE or UNKNOWN.
func (c *Classifier) Classify(score float64) Tier {
	switch {
	case score >= c.thresholds.Recognized:
		return TierRecognized
	case score >= c.thresholds.Maybe:
		return TierMaybe
	default:
		return TierUnknown
	}
}

// Decide classifies the best candidate of a ranking. An empty ranking is UNKNOWN.
func (c *Classifier) Decide(r Ranking) Decision {
	best, ok := r.Best()
	if !ok {
		return Decision{Tier: TierUnknown}
	}
	tier := c.Classify(best.Score)
	if tier == TierUnknown {
		return Decision{Tier: TierUnknown, Confidence: best.Score}
	}
	return Decision{Tier: tier, Candidate: &best, Confidence: best.Score}
}
