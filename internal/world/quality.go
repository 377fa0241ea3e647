package world

import (
	"fmt"

	"github.com/talgya/househunt/internal/entropy"
)

// Quality is how a site produces quality readings. Each Sample is an
// independent draw.
type Quality interface {
	Sample(rng *entropy.Stream) int
	// Base is the noise-free quality, used to judge decisions after a run.
	Base() int
}

// GaussianQuality reads as Base plus N(0, StdDev) noise truncated toward
// zero, floored at 1.
type GaussianQuality struct {
	Mean   int `json:"quality" yaml:"quality"`
	StdDev int `json:"std_dev" yaml:"std_dev"`
}

// NewGaussianQuality validates and builds a GaussianQuality.
func NewGaussianQuality(mean, stdDev int) (GaussianQuality, error) {
	if mean < 0 {
		return GaussianQuality{}, fmt.Errorf("site quality must be >= 0, got %d", mean)
	}
	if stdDev < 0 {
		return GaussianQuality{}, fmt.Errorf("site quality std-dev must be >= 0, got %d", stdDev)
	}
	return GaussianQuality{Mean: mean, StdDev: stdDev}, nil
}

// Sample implements Quality.
func (q GaussianQuality) Sample(rng *entropy.Stream) int {
	v := q.Mean + int(rng.Normal(0, float64(q.StdDev)))
	if v <= 0 {
		v = 1
	}
	return v
}

// Base implements Quality.
func (q GaussianQuality) Base() int {
	return q.Mean
}

// FixedQuality always reads the same value (floored at 1) and draws no
// randomness.
type FixedQuality int

// Sample implements Quality.
func (q FixedQuality) Sample(*entropy.Stream) int {
	if q <= 0 {
		return 1
	}
	return int(q)
}

// Base implements Quality.
func (q FixedQuality) Base() int {
	return int(q)
}
