// Package config loads house-hunting experiment definitions from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/househunt/internal/colony"
	"github.com/talgya/househunt/internal/world"
)

// Experiment is a complete, runnable scenario.
type Experiment struct {
	Colony colony.Config `yaml:"colony" json:"colony"`
	Sites  []SiteConfig  `yaml:"sites" json:"sites"`
	Edges  []EdgeConfig  `yaml:"edges" json:"edges"`
	Home   string        `yaml:"home" json:"home"`

	// RandomSites replaces Sites/Edges/Home with a generated landscape.
	RandomSites *RandomSitesConfig `yaml:"random_sites,omitempty" json:"random_sites,omitempty"`

	Run     RunConfig     `yaml:"run" json:"run"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig describes one candidate site.
type SiteConfig struct {
	Name    string `yaml:"name" json:"name"`
	Quality int    `yaml:"quality" json:"quality"`
	StdDev  int    `yaml:"std_dev" json:"std_dev"`
	// Habitable defaults to true when unset.
	Habitable *bool `yaml:"habitable,omitempty" json:"habitable,omitempty"`
}

// IsHabitable reports whether the site starts habitable.
func (s SiteConfig) IsHabitable() bool {
	return s.Habitable == nil || *s.Habitable
}

// Flag returns a pointer to v, for optional boolean fields.
func Flag(v bool) *bool {
	return &v
}

// EdgeConfig joins two sites in both directions.
type EdgeConfig struct {
	From     string `yaml:"from" json:"from"`
	To       string `yaml:"to" json:"to"`
	Distance int    `yaml:"distance" json:"distance"`
}

// RandomSitesConfig controls landscape generation.
type RandomSitesConfig struct {
	Candidates    int  `yaml:"candidates" json:"candidates"`
	HomeQuality   int  `yaml:"home_quality" json:"home_quality"`
	HomeHabitable bool `yaml:"home_habitable" json:"home_habitable"`
	StdDev        int  `yaml:"std_dev" json:"std_dev"`
	MinDistance   int  `yaml:"min_distance" json:"min_distance"`
	MaxDistance   int  `yaml:"max_distance" json:"max_distance"`
}

// RunConfig controls a single run.
type RunConfig struct {
	Seed int64 `yaml:"seed" json:"seed"` // 0 = random
	// MaxTicks overrides the distance-derived cutoff when > 0.
	MaxTicks int `yaml:"max_ticks" json:"max_ticks"`
	// StallTicks halts a run when no site quorum moved for this long (0 = off).
	StallTicks int `yaml:"stall_ticks" json:"stall_ticks"`
	// EmigrateAt destroys the home nest at this tick (0 = never).
	EmigrateAt int  `yaml:"emigrate_at" json:"emigrate_at"`
	Trace      bool `yaml:"trace" json:"trace"`
}

// LoggingConfig controls the default logger.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"` // debug, info, warn, error
}

// Default returns the classic three-nest experiment: the colony's nest1 is
// destroyed and it must choose between nest2 (20) and the marginally
// better but farther nest3 (21).
func Default() *Experiment {
	return &Experiment{
		Colony: colony.DefaultConfig(),
		Sites: []SiteConfig{
			{Name: "nest1", Quality: 10, Habitable: Flag(false)},
			{Name: "nest2", Quality: 20},
			{Name: "nest3", Quality: 21},
		},
		Edges: []EdgeConfig{
			{From: "nest1", To: "nest2", Distance: 100},
			{From: "nest1", To: "nest3", Distance: 200},
			{From: "nest2", To: "nest3", Distance: 200},
		},
		Home:    "nest1",
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadFromFile reads an experiment from a YAML file. Fields missing from the
// file keep their Default values.
func LoadFromFile(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML experiment over the defaults, applies environment
// overrides and validates the result.
func Parse(data []byte) (*Experiment, error) {
	exp := Default()
	if err := yaml.Unmarshal(data, exp); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := applyEnvOverrides(exp); err != nil {
		return nil, err
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

func applyEnvOverrides(exp *Experiment) error {
	if v := os.Getenv("HOUSEHUNT_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("HOUSEHUNT_SEED: %w", err)
		}
		exp.Run.Seed = seed
	}
	if v := os.Getenv("HOUSEHUNT_LOG_LEVEL"); v != "" {
		exp.Logging.Level = v
	}
	return nil
}

// Validate checks the experiment without building it.
func (e *Experiment) Validate() error {
	if err := e.Colony.Validate(); err != nil {
		return fmt.Errorf("colony: %w", err)
	}
	switch strings.ToLower(e.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", e.Logging.Level)
	}
	if e.Run.MaxTicks < 0 || e.Run.StallTicks < 0 || e.Run.EmigrateAt < 0 {
		return fmt.Errorf("run: max_ticks, stall_ticks and emigrate_at must be >= 0")
	}
	if e.RandomSites != nil {
		return e.RandomSites.genConfig(0, e.Colony.MaxSiteQuality).Validate()
	}

	names := make(map[string]bool, len(e.Sites))
	for _, s := range e.Sites {
		if s.Name == "" {
			return fmt.Errorf("sites: site with empty name")
		}
		if names[s.Name] {
			return fmt.Errorf("sites: duplicate site %q", s.Name)
		}
		if _, err := world.NewGaussianQuality(s.Quality, s.StdDev); err != nil {
			return fmt.Errorf("sites: %s: %w", s.Name, err)
		}
		names[s.Name] = true
	}
	if !names[e.Home] {
		return fmt.Errorf("home: unknown site %q", e.Home)
	}
	type pair struct{ a, b string }
	connected := make(map[pair]bool, len(e.Edges))
	for _, edge := range e.Edges {
		if !names[edge.From] || !names[edge.To] {
			return fmt.Errorf("edges: %s-%s references an unknown site", edge.From, edge.To)
		}
		if edge.Distance < 0 {
			return fmt.Errorf("edges: %s-%s distance must be >= 0, got %d", edge.From, edge.To, edge.Distance)
		}
		connected[pair{edge.From, edge.To}] = true
		connected[pair{edge.To, edge.From}] = true
	}
	// Scouts compare and recruit between any two sites they have visited,
	// so every pair needs a distance.
	for i, a := range e.Sites {
		for _, b := range e.Sites[i+1:] {
			if !connected[pair{a.Name, b.Name}] {
				return fmt.Errorf("edges: no edge between %s and %s (every pair of sites must be connected)", a.Name, b.Name)
			}
		}
	}
	return nil
}

func (r *RandomSitesConfig) genConfig(seed int64, maxQuality int) world.GenConfig {
	return world.GenConfig{
		Seed:          seed,
		Candidates:    r.Candidates,
		HomeQuality:   r.HomeQuality,
		HomeHabitable: r.HomeHabitable,
		MaxQuality:    maxQuality,
		StdDev:        r.StdDev,
		MinDistance:   r.MinDistance,
		MaxDistance:   r.MaxDistance,
	}
}

// DefaultRandomSites mirrors world.DefaultGenConfig with n candidates.
func DefaultRandomSites(n int) *RandomSitesConfig {
	g := world.DefaultGenConfig()
	return &RandomSitesConfig{
		Candidates:    n,
		HomeQuality:   g.HomeQuality,
		HomeHabitable: g.HomeHabitable,
		StdDev:        g.StdDev,
		MinDistance:   g.MinDistance,
		MaxDistance:   g.MaxDistance,
	}
}

// Landscape builds the experiment's sites and returns them with the home
// site. Generated landscapes are derived from seed.
func (e *Experiment) Landscape(seed int64) (*world.Landscape, *world.Site, error) {
	if e.RandomSites != nil {
		l, err := world.Generate(e.RandomSites.genConfig(seed, e.Colony.MaxSiteQuality))
		if err != nil {
			return nil, nil, err
		}
		return l, l.Get(world.HomeName), nil
	}

	l := world.NewLandscape()
	for _, s := range e.Sites {
		q, err := world.NewGaussianQuality(s.Quality, s.StdDev)
		if err != nil {
			return nil, nil, fmt.Errorf("site %s: %w", s.Name, err)
		}
		site := world.NewSite(s.Name, q)
		site.SetHabitable(s.IsHabitable())
		if err := l.Add(site); err != nil {
			return nil, nil, err
		}
	}
	for _, edge := range e.Edges {
		if err := l.Connect(edge.From, edge.To, edge.Distance); err != nil {
			return nil, nil, err
		}
	}
	home := l.Get(e.Home)
	if home == nil {
		return nil, nil, fmt.Errorf("home: unknown site %q", e.Home)
	}
	if len(home.Neighbors()) == 0 {
		return nil, nil, fmt.Errorf("home: site %q has no neighbours", e.Home)
	}
	return l, home, nil
}

// Marshal encodes the experiment as YAML.
func (e *Experiment) Marshal() ([]byte, error) {
	return yaml.Marshal(e)
}
