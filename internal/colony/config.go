package colony

import "fmt"

// Config holds the fixed parameters of a colony. It is immutable once the
// colony is constructed.
type Config struct {
	Size      int `yaml:"size" json:"size"`
	NumScouts int `yaml:"num_scouts" json:"num_scouts"`

	NormalQuorumThreshold    int `yaml:"normal_quorum_threshold" json:"normal_quorum_threshold"`
	HostileQuorumThreshold   int `yaml:"hostile_quorum_threshold" json:"hostile_quorum_threshold"`
	EmergencyQuorumThreshold int `yaml:"emergency_quorum_threshold" json:"emergency_quorum_threshold"`

	PreferenceSwitchProb  float64 `yaml:"preference_switch_prob" json:"preference_switch_prob"`
	StartScoutingProb     float64 `yaml:"start_scouting_prob" json:"start_scouting_prob"`
	StopScoutingProb      float64 `yaml:"stop_scouting_prob" json:"stop_scouting_prob"`
	ReverseTandemRunProb  float64 `yaml:"reverse_tandem_run_prob" json:"reverse_tandem_run_prob"`
	CurrentNestSwitchProb float64 `yaml:"current_nest_switch_prob" json:"current_nest_switch_prob"`

	MaxSiteQuality         int `yaml:"max_site_quality" json:"max_site_quality"`
	AssessmentDelay        int `yaml:"assessment_delay" json:"assessment_delay"`
	TandemRunSpeed         int `yaml:"tandem_run_speed" json:"tandem_run_speed"`
	CarryingSpeed          int `yaml:"carrying_speed" json:"carrying_speed"`
	NestQualityRequirement int `yaml:"nest_quality_requirement" json:"nest_quality_requirement"`

	EnvironmentHostile       bool `yaml:"environment_hostile" json:"environment_hostile"`
	DistanceAffectsDiscovery bool `yaml:"distance_affects_discovery" json:"distance_affects_discovery"`
	CompareSiteQualities     bool `yaml:"compare_site_qualities" json:"compare_site_qualities"`
	PrattEquivalent          bool `yaml:"pratt_equivalent" json:"pratt_equivalent"`
}

// DefaultConfig returns the parameters of the classic three-nest experiment.
func DefaultConfig() Config {
	return Config{
		Size:                     100,
		NumScouts:                10,
		NormalQuorumThreshold:    20,
		HostileQuorumThreshold:   15,
		EmergencyQuorumThreshold: 10,
		PreferenceSwitchProb:     0.5,
		StartScoutingProb:        0.1,
		StopScoutingProb:         0,
		ReverseTandemRunProb:     0.1,
		CurrentNestSwitchProb:    1.0,
		MaxSiteQuality:           100,
		AssessmentDelay:          0,
		TandemRunSpeed:           5,
		CarryingSpeed:            15,
		NestQualityRequirement:   20,
		DistanceAffectsDiscovery: true,
		CompareSiteQualities:     true,
	}
}

// Validate checks every numeric bound. The first violation is returned.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("colony size must be > 0 (size == %d)", c.Size)
	}
	if c.NumScouts <= 0 || c.NumScouts > c.Size {
		return fmt.Errorf("number of scouts out of range (0 < %d <= %d)", c.NumScouts, c.Size)
	}
	thresholds := []struct {
		name  string
		value int
	}{
		{"normal quorum threshold", c.NormalQuorumThreshold},
		{"emergency quorum threshold", c.EmergencyQuorumThreshold},
		{"hostile quorum threshold", c.HostileQuorumThreshold},
	}
	for _, th := range thresholds {
		if th.value <= 0 {
			return fmt.Errorf("%s must be > 0 (== %d)", th.name, th.value)
		}
	}
	probs := []struct {
		name  string
		value float64
	}{
		{"preference switch probability", c.PreferenceSwitchProb},
		{"start scouting probability", c.StartScoutingProb},
		{"stop scouting probability", c.StopScoutingProb},
		{"reverse tandem run probability", c.ReverseTandemRunProb},
		{"current nest switch probability", c.CurrentNestSwitchProb},
	}
	for _, p := range probs {
		if p.value < 0 || p.value > 1 {
			return fmt.Errorf("%s out of range (0 <= %g <= 1)", p.name, p.value)
		}
	}
	switch {
	case c.MaxSiteQuality <= 0:
		return fmt.Errorf("max site quality must be > 0 (== %d)", c.MaxSiteQuality)
	case c.AssessmentDelay < 0:
		return fmt.Errorf("assessment delay must be >= 0 (== %d)", c.AssessmentDelay)
	case c.TandemRunSpeed <= 0:
		return fmt.Errorf("tandem run speed must be > 0 (== %d)", c.TandemRunSpeed)
	case c.CarryingSpeed <= 0:
		return fmt.Errorf("carrying speed must be > 0 (== %d)", c.CarryingSpeed)
	case c.NestQualityRequirement <= 0:
		return fmt.Errorf("nest quality requirement must be > 0 (== %d)", c.NestQualityRequirement)
	}
	return nil
}
