package colony

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/househunt/internal/entropy"
	"github.com/talgya/househunt/internal/world"
)

const testID world.ColonyID = 0

// twoSites returns an uninhabitable home joined to a single target.
func twoSites(t *testing.T, homeQuality, targetQuality, distance int) (home, target *world.Site) {
	t.Helper()
	home = world.NewSite("home", world.FixedQuality(homeQuality))
	home.SetHabitable(false)
	target = world.NewSite("target", world.FixedQuality(targetQuality))
	require.NoError(t, home.AddNeighbor(target, distance))
	require.NoError(t, target.AddNeighbor(home, distance))
	return home, target
}

func eagerConfig(size, scouts int) Config {
	cfg := DefaultConfig()
	cfg.Size = size
	cfg.NumScouts = scouts
	cfg.StartScoutingProb = 1
	cfg.PreferenceSwitchProb = 0
	cfg.StopScoutingProb = 0
	cfg.ReverseTandemRunProb = 0
	cfg.AssessmentDelay = 0
	cfg.MaxSiteQuality = 50
	cfg.EmergencyQuorumThreshold = 1
	cfg.DistanceAffectsDiscovery = false
	cfg.CompareSiteQualities = true
	return cfg
}

// threeNests builds the classic experiment: nest1 destroyed, nest2 and nest3
// habitable candidates.
func threeNests(t *testing.T) *world.Landscape {
	t.Helper()
	l := world.NewLandscape()
	nest1 := world.NewSite("nest1", world.GaussianQuality{Mean: 10})
	nest1.SetHabitable(false)
	require.NoError(t, l.Add(nest1))
	require.NoError(t, l.Add(world.NewSite("nest2", world.GaussianQuality{Mean: 20})))
	require.NoError(t, l.Add(world.NewSite("nest3", world.GaussianQuality{Mean: 21})))
	require.NoError(t, l.Connect("nest1", "nest2", 100))
	require.NoError(t, l.Connect("nest1", "nest3", 200))
	require.NoError(t, l.Connect("nest2", "nest3", 200))
	return l
}

// prefer gives agent a a preference for site, moving its ledger entry.
func prefer(a *Agent, site *world.Site) {
	a.currentNest.DecrementQuorum(a.colony.id, 1, true)
	site.IncrementQuorum(a.colony.id, 1, true)
	a.preference = site
}

func TestNewColonyPopulatesHome(t *testing.T) {
	home, _ := twoSites(t, 5, 50, 0)
	c, err := New(testID, eagerConfig(30, 10), home, entropy.NewStream(1))
	require.NoError(t, err)
	assert.Len(t, c.Agents(), 10)
	assert.Equal(t, 10, home.ColonyQuorumSizeBy(testID, true))
	assert.Equal(t, 20, home.ColonyQuorumSizeBy(testID, false))
	assert.Equal(t, 1, c.QuorumThreshold(), "destroyed home starts an emergency emigration")
	for _, a := range c.Agents() {
		assert.Same(t, home, a.CurrentNest())
		assert.Nil(t, a.Preference())
	}
}

func TestNewColonyInitialThreshold(t *testing.T) {
	cfg := DefaultConfig()

	hostile := cfg
	hostile.EnvironmentHostile = true
	home := world.NewSite("home", world.FixedQuality(5))
	home.SetHabitable(false)
	c := must.M1(New(testID, hostile, home, entropy.NewStream(1)))
	assert.Equal(t, cfg.HostileQuorumThreshold, c.QuorumThreshold())

	poor := world.NewSite("poor", world.FixedQuality(cfg.NestQualityRequirement-1))
	c = must.M1(New(testID, cfg, poor, entropy.NewStream(1)))
	assert.Equal(t, cfg.NormalQuorumThreshold, c.QuorumThreshold())

	good := world.NewSite("good", world.FixedQuality(cfg.NestQualityRequirement))
	c = must.M1(New(testID, cfg, good, entropy.NewStream(1)))
	assert.Equal(t, 0, c.QuorumThreshold())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero size", func(c *Config) { c.Size = 0 }},
		{"no scouts", func(c *Config) { c.NumScouts = 0 }},
		{"too many scouts", func(c *Config) { c.NumScouts = c.Size + 1 }},
		{"normal threshold", func(c *Config) { c.NormalQuorumThreshold = 0 }},
		{"hostile threshold", func(c *Config) { c.HostileQuorumThreshold = -1 }},
		{"emergency threshold", func(c *Config) { c.EmergencyQuorumThreshold = 0 }},
		{"switch prob", func(c *Config) { c.PreferenceSwitchProb = 1.5 }},
		{"start prob", func(c *Config) { c.StartScoutingProb = -0.1 }},
		{"stop prob", func(c *Config) { c.StopScoutingProb = 2 }},
		{"reverse prob", func(c *Config) { c.ReverseTandemRunProb = -1 }},
		{"nest switch prob", func(c *Config) { c.CurrentNestSwitchProb = 1.01 }},
		{"max quality", func(c *Config) { c.MaxSiteQuality = 0 }},
		{"assessment delay", func(c *Config) { c.AssessmentDelay = -1 }},
		{"tandem speed", func(c *Config) { c.TandemRunSpeed = 0 }},
		{"carrying speed", func(c *Config) { c.CarryingSpeed = 0 }},
		{"quality requirement", func(c *Config) { c.NestQualityRequirement = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := New(testID, cfg, world.NewSite("home", world.FixedQuality(1)), entropy.NewStream(1))
			assert.Error(t, err)
		})
	}

	_, err := New(testID, DefaultConfig(), nil, entropy.NewStream(1))
	assert.Error(t, err)
}

func TestImmediateHabitableUpgrade(t *testing.T) {
	home, target := twoSites(t, 5, 50, 0)
	cfg := eagerConfig(10, 10)
	cfg.EmergencyQuorumThreshold = DefaultConfig().EmergencyQuorumThreshold
	c := must.M1(New(testID, cfg, home, entropy.NewStream(42)))

	c.Tick()
	for i, a := range c.Agents() {
		assert.Same(t, target, a.Preference(), "agent %d", i)
	}
	assert.Equal(t, 10, target.ColonyQuorumSizeBy(testID, true))
	assert.Equal(t, 0, home.ColonyQuorumSize(testID))
}

func TestDeterministicRejection(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		home := world.NewSite("home", world.GaussianQuality{Mean: 100})
		poor := world.NewSite("poor", world.GaussianQuality{Mean: 1})
		require.NoError(t, home.AddNeighbor(poor, 10))
		require.NoError(t, poor.AddNeighbor(home, 10))

		cfg := eagerConfig(10, 10)
		cfg.MaxSiteQuality = 100
		cfg.NestQualityRequirement = 200 // keep the colony house-hunting
		c := must.M1(New(testID, cfg, home, entropy.NewStream(seed)))
		require.Positive(t, c.QuorumThreshold())

		for range 50 {
			c.Tick()
			for _, a := range c.Agents() {
				require.Nil(t, a.Preference(), "seed %d", seed)
			}
		}
		assert.Equal(t, 0, poor.QuorumSize())
	}
}

func TestEmigrationCompletion(t *testing.T) {
	home, target := twoSites(t, 5, 50, 0)
	c := must.M1(New(testID, eagerConfig(8, 4), home, entropy.NewStream(5)))

	for tick := 0; tick < 100 && c.QuorumThreshold() > 0; tick++ {
		c.Tick()
		require.Equal(t, 8, home.ColonyQuorumSize(testID)+target.ColonyQuorumSize(testID))
	}
	require.Equal(t, 0, c.QuorumThreshold())
	assert.Same(t, target, c.CurrentNest())
	assert.Equal(t, 8, target.ColonyQuorumSize(testID))
	assert.Equal(t, 0, home.QuorumSize())
	assert.Positive(t, c.NumRecruitmentActs())

	// Target is good enough, so the colony stays put.
	c.Tick()
	assert.Equal(t, 0, c.QuorumThreshold())
	assert.Equal(t, 0, c.NumRecruitmentActs())
	assert.Same(t, target, c.CurrentNest())
}

func TestIdleAgentReset(t *testing.T) {
	home, target := twoSites(t, 5, 50, 0)
	c := must.M1(New(testID, eagerConfig(4, 4), home, entropy.NewStream(9)))
	a := c.Agents()[0]
	prefer(a, target)
	a.transporting = true
	a.recruitmentProb = 0.5

	c.quorumThreshold = 0
	a.Update()
	assert.Nil(t, a.Preference())
	assert.False(t, a.Transporting())
	assert.Same(t, c.CurrentNest(), a.CurrentNest())
	assert.Equal(t, 0.0, a.recruitmentProb)
}

func TestEmigrateDestroysNest(t *testing.T) {
	cfg := DefaultConfig()
	home := world.NewSite("home", world.FixedQuality(cfg.NestQualityRequirement+10))
	refuge := world.NewSite("refuge", world.FixedQuality(cfg.NestQualityRequirement+10))
	require.NoError(t, home.AddNeighbor(refuge, 50))
	require.NoError(t, refuge.AddNeighbor(home, 50))
	c := must.M1(New(testID, cfg, home, entropy.NewStream(3)))
	require.Equal(t, 0, c.QuorumThreshold())

	c.Emigrate()
	assert.False(t, home.Habitable())
	c.Tick()
	assert.Equal(t, cfg.EmergencyQuorumThreshold, c.QuorumThreshold())
}

func TestPrattRecruiterExclusion(t *testing.T) {
	home, target := twoSites(t, 5, 50, 10)
	other := world.NewSite("other", world.FixedQuality(2))
	for _, s := range []*world.Site{home, target} {
		require.NoError(t, s.AddNeighbor(other, 10))
		require.NoError(t, other.AddNeighbor(s, 10))
	}

	cfg := eagerConfig(3, 3)
	cfg.PrattEquivalent = true
	cfg.PreferenceSwitchProb = 1
	c := must.M1(New(testID, cfg, home, entropy.NewStream(1)))
	agents := c.Agents()
	for _, a := range agents {
		prefer(a, target)
		a.preferenceAssessedQuality = 50
	}
	assert.False(t, c.RecruitScoutToSite(target, false, false), "every scout already prefers the target")

	straggler := agents[2]
	target.DecrementQuorum(testID, 1, true)
	other.IncrementQuorum(testID, 1, true)
	straggler.preference = other
	straggler.preferenceAssessedQuality = 2

	require.True(t, c.RecruitScoutToSite(target, false, false))
	assert.Same(t, target, straggler.Preference())
	assert.Equal(t, 3, target.ColonyQuorumSizeBy(testID, true))
	assert.Equal(t, 0, other.QuorumSize())
}

func TestRecruitScoutPrefersUncommitted(t *testing.T) {
	home, target := twoSites(t, 5, 50, 0)
	c := must.M1(New(testID, eagerConfig(5, 3), home, entropy.NewStream(2)))
	agents := c.Agents()
	prefer(agents[0], target)

	// Led: the recruit adopts the target as its preference.
	require.True(t, c.RecruitScoutToSite(target, false, false))
	assert.Same(t, target, agents[1].Preference())

	// Carried: the recruit becomes resident at the target.
	require.True(t, c.RecruitScoutToSite(target, true, false))
	assert.Same(t, target, agents[2].CurrentNest())
	assert.Nil(t, agents[2].Preference())
	assert.Equal(t, 3, target.ColonyQuorumSizeBy(testID, true))
	assert.Equal(t, 0, home.ColonyQuorumSizeBy(testID, true))

	// The first uncommitted scout already lives at the target.
	assert.False(t, c.RecruitScoutToSite(target, true, false))
}

func TestReverseTandemRun(t *testing.T) {
	home, target := twoSites(t, 5, 50, 0)
	c := must.M1(New(testID, eagerConfig(4, 2), home, entropy.NewStream(2)))
	a := c.Agents()[0]

	require.True(t, c.ReverseTandemRunFromTo(home, target))
	assert.Same(t, target, a.CurrentNest())
	assert.Same(t, home, a.Preference())
	assert.Equal(t, 2, home.ColonyQuorumSizeBy(testID, true), "quorum untouched")
	assert.Equal(t, 1, c.NumRecruitersBetweenSites(target, home))
	assert.Equal(t, 0, c.NumAssessingSite(home))
}

func TestNonComparingAcceptance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CompareSiteQualities = false
	home := world.NewSite("home", world.FixedQuality(1))
	c := must.M1(New(testID, cfg, home, entropy.NewStream(17)))
	a := c.Agents()[0]

	rate := func(q int) float64 {
		site := world.NewSite("s", world.FixedQuality(q))
		accepted := 0
		const n = 10000
		for range n {
			if ok, sampled := a.compareSites(site); ok {
				accepted++
				require.Equal(t, max(q, 1), sampled)
			}
		}
		return float64(accepted) / n
	}
	assert.InDelta(t, 0.75, rate(cfg.MaxSiteQuality*2), 0.03)
	assert.InDelta(t, 0.5, rate(cfg.MaxSiteQuality/2), 0.03)
	assert.InDelta(t, 0.25, rate(0), 0.03)
}

// checkIdleAgents asserts that agents without a preference carry no
// recruitment state.
func checkIdleAgents(t *testing.T, c *Colony, where ...any) {
	t.Helper()
	for i, a := range c.Agents() {
		if a.Preference() != nil {
			continue
		}
		require.Zero(t, a.recruitmentDelay, "agent %d recruitment delay %v", i, where)
		require.Zero(t, a.recruitmentProb, "agent %d recruitment prob %v", i, where)
		require.False(t, a.Transporting(), "agent %d transporting %v", i, where)
	}
}

func TestQuorumConservationAndPreferenceInvariant(t *testing.T) {
	for mode := range 16 {
		cfg := DefaultConfig()
		cfg.PrattEquivalent = mode&1 != 0
		cfg.CompareSiteQualities = mode&2 != 0
		cfg.DistanceAffectsDiscovery = mode&4 != 0
		cfg.EnvironmentHostile = mode&8 != 0
		cfg.StopScoutingProb = 0.05
		cfg.AssessmentDelay = 2

		for seed := int64(1); seed <= 3; seed++ {
			l := threeNests(t)
			home := l.Get("nest1")
			c := must.M1(New(testID, cfg, home, entropy.NewStream(seed)))

			for tick := 0; tick < 4000 && c.QuorumThreshold() > 0; tick++ {
				c.Tick()
				require.Equal(t, cfg.Size, l.TotalQuorum(testID), "mode %04b seed %d tick %d", mode, seed, tick)
				for _, s := range l.Sites {
					want := 0
					for _, a := range c.Agents() {
						if a.Preference() == s || (a.Preference() == nil && a.CurrentNest() == s) {
							want++
						}
					}
					require.Equal(t, want, s.ColonyQuorumSizeBy(testID, true),
						"mode %04b seed %d tick %d site %s", mode, seed, tick, s.Name)
				}
				checkIdleAgents(t, c, "mode", mode, "seed", seed, "tick", tick)
			}
		}
	}
}

// prattSetup returns a colony of two scouts at a destroyed home: the first
// recruits to target, the second prefers the poor site other.
func prattSetup(t *testing.T, pratt bool) (c *Colony, target, other *world.Site) {
	t.Helper()
	home, target := twoSites(t, 5, 50, 10)
	other = world.NewSite("other", world.FixedQuality(2))
	for _, s := range []*world.Site{home, target} {
		require.NoError(t, s.AddNeighbor(other, 10))
		require.NoError(t, other.AddNeighbor(s, 10))
	}
	cfg := eagerConfig(4, 2)
	cfg.PrattEquivalent = pratt
	cfg.PreferenceSwitchProb = 1
	c = must.M1(New(testID, cfg, home, entropy.NewStream(4)))

	recruiter, follower := c.Agents()[0], c.Agents()[1]
	prefer(recruiter, target)
	recruiter.preferenceAssessedQuality = 50
	recruiter.transportDelay = 5 // mid-run
	prefer(follower, other)
	follower.preferenceAssessedQuality = 2
	return c, target, other
}

func TestPrattRecruitsDuringTandemRun(t *testing.T) {
	c, target, other := prattSetup(t, true)
	recruiter, follower := c.Agents()[0], c.Agents()[1]

	recruiter.Update()
	assert.Equal(t, 4, recruiter.transportDelay)
	assert.Same(t, target, follower.Preference(), "active scout recruited mid-run")
	assert.Equal(t, 2, target.ColonyQuorumSizeBy(testID, true))
	assert.Equal(t, 0, other.QuorumSize())
	assert.Equal(t, 0, c.NumRecruitmentActs(), "mid-run recruitment is not a recruitment act")
	checkIdleAgents(t, c)
}

func TestNoMidRunRecruitmentWithoutPratt(t *testing.T) {
	c, target, other := prattSetup(t, false)
	recruiter, follower := c.Agents()[0], c.Agents()[1]

	recruiter.Update()
	assert.Same(t, other, follower.Preference())
	assert.Equal(t, 1, target.ColonyQuorumSizeBy(testID, true))
	assert.Equal(t, 1, other.ColonyQuorumSizeBy(testID, true))
}

func TestPrattDoublesSwitchProbability(t *testing.T) {
	// The alternative drawn is always the current preference, so every
	// attempted switch is rejected and only resets the assessment delay.
	switchRate := func(pratt bool, p float64) float64 {
		home, target := twoSites(t, 5, 50, 0)
		cfg := eagerConfig(2, 1)
		cfg.PrattEquivalent = pratt
		cfg.PreferenceSwitchProb = p
		cfg.AssessmentDelay = 7
		c := must.M1(New(testID, cfg, home, entropy.NewStream(21)))
		a := c.Agents()[0]
		prefer(a, target)
		a.preferenceAssessedQuality = 50

		const n = 10000
		attempts := 0
		for range n {
			a.assessmentDelay = 0
			a.considerAlternativeSite()
			require.Same(t, target, a.Preference())
			if a.assessmentDelay == cfg.AssessmentDelay {
				attempts++
			}
		}
		return float64(attempts) / n
	}
	assert.InDelta(t, 0.3, switchRate(false, 0.3), 0.03)
	assert.InDelta(t, 0.6, switchRate(true, 0.3), 0.03)
	assert.Equal(t, 1.0, switchRate(true, 0.7), "doubled probability is capped at 1")
}

func TestRecruitedBackToOriginReversesDirection(t *testing.T) {
	for _, transported := range []bool{false, true} {
		home := world.NewSite("home", world.FixedQuality(60))
		target := world.NewSite("target", world.FixedQuality(20))
		require.NoError(t, home.AddNeighbor(target, 10))
		require.NoError(t, target.AddNeighbor(home, 10))
		cfg := eagerConfig(3, 1)
		cfg.PreferenceSwitchProb = 1
		c := must.M1(New(testID, cfg, home, entropy.NewStream(6)))
		a := c.Agents()[0]
		prefer(a, target)
		a.preferenceAssessedQuality = 20

		require.True(t, a.RecruitToNestSite(home, transported))
		assert.Equal(t, 1, home.ColonyQuorumSizeBy(testID, true))
		assert.Equal(t, 0, target.ColonyQuorumSizeBy(testID, true))
		assert.Equal(t, 60, a.AssessedQuality())
		if transported {
			assert.Same(t, home, a.CurrentNest())
			assert.Nil(t, a.Preference())
			checkIdleAgents(t, c)
		} else {
			assert.Same(t, target, a.CurrentNest(), "now recruits from its old preference")
			assert.Same(t, home, a.Preference())
		}
	}
}

func TestStopScoutingReleasesQuorum(t *testing.T) {
	home, target := twoSites(t, 5, 50, 10)
	cfg := eagerConfig(4, 2)
	cfg.StopScoutingProb = 1
	c := must.M1(New(testID, cfg, home, entropy.NewStream(8)))
	quitter, carrier := c.Agents()[0], c.Agents()[1]
	prefer(quitter, target)
	quitter.preferenceAssessedQuality = 50
	quitter.transportDelay = 3

	quitter.Update()
	assert.Nil(t, quitter.Preference())
	assert.Same(t, home, quitter.CurrentNest())
	assert.Equal(t, 0, quitter.transportDelay)
	assert.Equal(t, 0, target.QuorumSize())
	assert.Equal(t, 2, home.ColonyQuorumSizeBy(testID, true))
	checkIdleAgents(t, c)

	// Transporters never stop mid-emigration.
	prefer(carrier, target)
	carrier.preferenceAssessedQuality = 50
	carrier.transporting = true
	carrier.Update()
	assert.Same(t, target, carrier.Preference())
}
