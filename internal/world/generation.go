// Landscape generation using layered simplex noise.
// Candidate qualities and distances from home come from independent noise
// layers sampled along a ring around the home nest.
package world

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/househunt/internal/entropy"
)

// HomeName is the name given to the generated home nest.
const HomeName = "home"

// GenConfig holds landscape generation parameters.
type GenConfig struct {
	Seed          int64 // Noise seed (0 = random)
	Candidates    int   // Number of candidate sites besides home
	HomeQuality   int
	HomeHabitable bool
	MaxQuality    int // Candidate qualities fall in [1, MaxQuality]
	StdDev        int // Per-sample quality noise for every site
	MinDistance   int // Candidate distances from home fall in [MinDistance, MaxDistance]
	MaxDistance   int
}

// DefaultGenConfig returns a small landscape resembling the classic
// three-nest experiment: a destroyed home and a handful of candidates.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Candidates:    4,
		HomeQuality:   10,
		HomeHabitable: false,
		MaxQuality:    100,
		StdDev:        0,
		MinDistance:   50,
		MaxDistance:   250,
	}
}

// Validate checks the generation parameters.
func (cfg GenConfig) Validate() error {
	switch {
	case cfg.Candidates < 1:
		return fmt.Errorf("generate: need at least 1 candidate site, got %d", cfg.Candidates)
	case cfg.MaxQuality < 1:
		return fmt.Errorf("generate: max quality must be >= 1, got %d", cfg.MaxQuality)
	case cfg.StdDev < 0:
		return fmt.Errorf("generate: std-dev must be >= 0, got %d", cfg.StdDev)
	case cfg.MinDistance < 0 || cfg.MaxDistance < cfg.MinDistance:
		return fmt.Errorf("generate: invalid distance range [%d, %d]", cfg.MinDistance, cfg.MaxDistance)
	}
	return nil
}

// Generate creates a landscape of a home nest plus cfg.Candidates candidate
// sites, fully connected. Identical configs (with a non-zero seed) produce
// identical landscapes.
func Generate(cfg GenConfig) (*Landscape, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.CryptoSeed()
	}

	// Independent layers for quality and remoteness.
	qualNoise := opensimplex.NewNormalized(seed)
	distNoise := opensimplex.NewNormalized(seed + 1)

	l := NewLandscape()
	home := NewSite(HomeName, GaussianQuality{Mean: cfg.HomeQuality, StdDev: cfg.StdDev})
	home.SetHabitable(cfg.HomeHabitable)
	if err := l.Add(home); err != nil {
		return nil, err
	}

	type point struct{ x, y float64 }
	points := []point{{0, 0}}
	for i := 0; i < cfg.Candidates; i++ {
		angle := 2 * math.Pi * float64(i) / float64(cfg.Candidates)
		nx, ny := math.Cos(angle)*4, math.Sin(angle)*4

		q := octaveNoise(qualNoise, nx, ny, 3, 0.7, 0.5)
		quality := 1 + int(math.Round(q*float64(cfg.MaxQuality-1)))

		d := octaveNoise(distNoise, nx, ny, 2, 0.5, 0.5)
		r := float64(cfg.MinDistance) + d*float64(cfg.MaxDistance-cfg.MinDistance)

		site := NewSite(fmt.Sprintf("site%d", i+1), GaussianQuality{Mean: quality, StdDev: cfg.StdDev})
		if err := l.Add(site); err != nil {
			return nil, err
		}
		points = append(points, point{math.Cos(angle) * r, math.Sin(angle) * r})
	}

	for i := 0; i < len(l.Sites); i++ {
		for j := i + 1; j < len(l.Sites); j++ {
			dx, dy := points[i].x-points[j].x, points[i].y-points[j].y
			dist := int(math.Round(math.Sqrt(dx*dx + dy*dy)))
			if err := l.Connect(l.Sites[i].Name, l.Sites[j].Name, dist); err != nil {
				return nil, err
			}
		}
	}
	return l, nil
}

// octaveNoise samples multi-octave simplex noise, normalized to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
