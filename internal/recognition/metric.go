package recognition

import (
	"fmt"
	"math"

	"github.com/coder/hnsw"
	"gonum.org/v1/gonum/floats"
)

// Metric names accepted by NewMetric.
const (
	MetricCosine     = "cosine"
	MetricCosineSIMD = "cosine-simd"
)

// Vector is an embedding prepared for scoring. Unit is nil for zero vectors.
type Vector struct {
	Raw  []float32
	Unit []float64
}

// NewVector normalises v to unit length once so scoring is a dot product.
func NewVector(v []float32) Vector {
	f64 := make([]float64, len(v))
	for i, x := range v {
		f64[i] = float64(x)
	}
	norm := floats.Norm(f64, 2)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Vector{Raw: v}
	}
	floats.Scale(1/norm, f64)
	return Vector{Raw: v, Unit: f64}
}

// Metric scores two vectors of equal dimension in [0, 1], higher is more similar.
type Metric interface {
	Name() string
	Similarity(a, b Vector) float64
}

// clampScore maps a raw cosine into [0, 1]. Negative cosine means dissimilar, not "less than unknown".
func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Cosine is cosine similarity over pre-normalised float64 vectors.
type Cosine struct{}

func (Cosine) Name() string { return MetricCosine }

func (Cosine) Similarity(a, b Vector) float64 {
	if a.Unit == nil || b.Unit == nil {
		return 0
	}
	return clampScore(floats.Dot(a.Unit, b.Unit))
}

// CosineSIMD uses the vectorised float32 cosine distance from hnsw.
type CosineSIMD struct{}

func (CosineSIMD) Name() string { return MetricCosineSIMD }

func (CosineSIMD) Similarity(a, b Vector) float64 {
	if a.Unit == nil || b.Unit == nil {
		return 0
	}
	return clampScore(1 - float64(hnsw.CosineDistance(a.Raw, b.Raw)))
}

// NewMetric returns the metric registered under name. Empty selects cosine.
func NewMetric(name string) (Metric, error) {
	switch name {
	case "", MetricCosine:
		return Cosine{}, nil
	case MetricCosineSIMD:
		return CosineSIMD{}, nil
	default:
		return nil, fmt.Errorf("unknown match metric %q (want %s or %s)", name, MetricCosine, MetricCosineSIMD)
	}
}
