package colony

import (
	"github.com/gomlx/exceptions"

	"github.com/talgya/househunt/internal/world"
)

// Agent is a single scout. Its state machine moves between assessing a
// site, waiting to recruit, and recruiting (tandem-running or transporting).
type Agent struct {
	colony *Colony // owner, not owned

	currentNest *world.Site
	preference  *world.Site // nil: no preference, agent counted at currentNest

	preferenceAssessedQuality int
	quorumThreshold           int // > 0 while scouting

	assessmentDelay  int
	recruitmentDelay int
	recruitmentProb  float64

	transporting   bool // false: tandem-running
	transportDelay int
	assessing      bool
}

func newAgent(c *Colony) *Agent {
	return &Agent{colony: c, currentNest: c.currentNest}
}

// CurrentNest returns the nest the agent recruits from.
func (a *Agent) CurrentNest() *world.Site { return a.currentNest }

// Preference returns the site the agent recruits to, or nil.
func (a *Agent) Preference() *world.Site { return a.preference }

// Assessing reports whether the agent spent its last update assessing.
func (a *Agent) Assessing() bool { return a.assessing }

// Transporting reports whether the agent's recruitment mode is carrying.
func (a *Agent) Transporting() bool { return a.transporting }

// AssessedQuality is the agent's last reading of its preference (or of its
// current nest while it has none).
func (a *Agent) AssessedQuality() int { return a.preferenceAssessedQuality }

// QuorumThreshold is the quorum the agent needs at its preference before it
// switches to transporting.
func (a *Agent) QuorumThreshold() int { return a.quorumThreshold }

// Update advances the agent by one tick.
func (a *Agent) Update() {
	c := a.colony
	cfg := &c.cfg

	if a.preferenceAssessedQuality == 0 {
		a.preferenceAssessedQuality = a.currentNest.SampleQuality(c.rng)
	}
	if c.quorumThreshold == 0 {
		// Colony is not house-hunting.
		a.resetToIdle()
		a.currentNest = c.currentNest
		return
	}

	if a.preference == nil {
		if a.assessmentDelay > 0 {
			a.assessing = true
			a.assessmentDelay--
		}
		if a.assessmentDelay == 0 && c.rng.EventOccurs(cfg.StartScoutingProb) {
			a.assessing = false
			a.startScouting()
		}
	}
	// A site picked above is handled in the same update.
	if a.preference == nil {
		return
	}

	switch {
	case a.assessmentDelay > 0:
		a.assessing = true
		a.assessmentDelay--

	case a.recruitmentDelay > 0 || a.recruitmentProb > 0:
		a.assessing = false
		a.recruitmentDelay = max(a.recruitmentDelay-1, 0)
		if a.recruitmentDelay == 0 && c.rng.EventOccurs(a.recruitmentProb) {
			a.beginRecruiting()
		} else {
			a.considerAlternativeSite()
		}

	default:
		a.assessing = false
		a.recruit()
	}
}

// startScouting draws a neighbour of the current nest and adopts it if it
// is habitable and either the current nest is not or the site compares well.
func (a *Agent) startScouting() {
	c := a.colony
	cfg := &c.cfg

	switch {
	case !a.currentNest.Habitable():
		a.quorumThreshold = cfg.EmergencyQuorumThreshold
	case cfg.EnvironmentHostile:
		a.quorumThreshold = cfg.HostileQuorumThreshold
	default:
		a.quorumThreshold = cfg.NormalQuorumThreshold
	}

	candidate := a.currentNest.RandomNeighbor(c.rng, cfg.DistanceAffectsDiscovery)
	if !candidate.Habitable() {
		return
	}
	// The comparison always runs, so it consumes its draw even when the
	// current nest is uninhabitable.
	better, sampled := a.compareSites(candidate)
	if a.currentNest.Habitable() && !better {
		return
	}
	a.currentNest.DecrementQuorum(c.id, 1, true)
	candidate.IncrementQuorum(c.id, 1, true)
	a.preference = candidate
	a.preferenceAssessedQuality = sampled
	a.assessmentDelay = cfg.AssessmentDelay
	a.recruitmentDelay = a.calculateRecruitmentDelay()
	a.recruitmentProb = a.calculateRecruitmentProb()
}

// recruit is the recruiting branch of Update.
func (a *Agent) recruit() {
	c := a.colony
	cfg := &c.cfg

	a.transportDelay--
	if !a.transporting {
		a.considerStoppingScouting()
	}
	if cfg.PrattEquivalent && a.preference != nil {
		// Recruits other active scouts even mid-run.
		c.RecruitScoutToSite(a.preference, a.transporting, true)
	}
	if a.preference == nil || a.transportDelay > 0 {
		return
	}

	if c.rng.EventOccurs(cfg.ReverseTandemRunProb) {
		if c.ReverseTandemRunFromTo(a.preference, a.currentNest) {
			c.numRecruitmentActs++
		}
		return
	}

	if a.currentNest.ColonyQuorumSize(c.id) == 0 {
		// Old nest vacated.
		a.currentNest = a.preference
		if a.preference.ColonyQuorumSize(c.id) == c.cfg.Size {
			c.EmigrationCompleted(a.preference)
		}
		a.preference = nil
		a.transporting = false
		a.recruitmentDelay = 0
		a.recruitmentProb = 0
		return
	}

	if c.RecruitScoutToSite(a.preference, a.transporting, false) {
		c.numRecruitmentActs++
	} else if a.currentNest.ColonyQuorumSizeBy(c.id, false) > 0 {
		a.currentNest.DecrementQuorum(c.id, 1, false)
		a.preference.IncrementQuorum(c.id, 1, false)
		c.numRecruitmentActs++
	}
	a.considerAlternativeSite()
	a.beginRecruiting()
}

// compareSites samples candidate and reports whether it should replace the
// agent's preference, along with the sampled quality.
func (a *Agent) compareSites(candidate *world.Site) (accept bool, sampled int) {
	c := a.colony
	sampled = candidate.SampleQuality(c.rng)
	if c.cfg.CompareSiteQualities {
		return sampled > a.preferenceAssessedQuality, sampled
	}
	p := min(float64(sampled)/float64(c.cfg.MaxSiteQuality), 1)
	return c.rng.EventOccurs(p*0.5 + 0.25), sampled
}

func (a *Agent) calculateRecruitmentDelay() int {
	cfg := &a.colony.cfg
	if !cfg.DistanceAffectsDiscovery || cfg.PrattEquivalent {
		return 0
	}
	return a.currentNest.DistanceTo(a.preference) / cfg.CarryingSpeed
}

func (a *Agent) calculateRecruitmentProb() float64 {
	return min(float64(a.preferenceAssessedQuality)/float64(a.colony.cfg.MaxSiteQuality), 1)
}

// beginRecruiting senses the quorum at the preference and starts the next
// tandem run or transport.
func (a *Agent) beginRecruiting() {
	c := a.colony
	a.recruitmentProb = 0
	a.transporting = a.preference.ColonyQuorumSize(c.id) > a.quorumThreshold
	if !c.cfg.DistanceAffectsDiscovery {
		// Without distance the act is instantaneous; the delay is left as is.
		return
	}
	speed := c.cfg.TandemRunSpeed
	if a.transporting {
		speed = c.cfg.CarryingSpeed
	}
	a.transportDelay = a.currentNest.DistanceTo(a.preference) / speed
}

// considerAlternativeSite probabilistically compares another neighbour of
// the current nest against the preference and switches to it if it wins.
func (a *Agent) considerAlternativeSite() {
	c := a.colony
	cfg := &c.cfg

	p := cfg.PreferenceSwitchProb
	if cfg.PrattEquivalent {
		p *= 2
	}
	if !c.rng.EventOccurs(min(p, 1)) {
		return
	}
	alt := a.currentNest.RandomNeighbor(c.rng, cfg.DistanceAffectsDiscovery)
	if !alt.Habitable() {
		a.assessmentDelay = cfg.AssessmentDelay
		return
	}
	better, sampled := a.compareSites(alt)
	if !better || alt == a.currentNest || alt == a.preference {
		a.assessmentDelay = cfg.AssessmentDelay
		return
	}

	old := a.preference
	old.DecrementQuorum(c.id, 1, true)
	alt.IncrementQuorum(c.id, 1, true)
	if old.ColonyQuorumSize(c.id) > 0 && c.rng.EventOccurs(cfg.CurrentNestSwitchProb) {
		a.currentNest = old
	}
	a.preference = alt
	a.preferenceAssessedQuality = sampled
	a.assessmentDelay = cfg.AssessmentDelay
	if a.recruitmentDelay > 0 || a.recruitmentProb > 0 {
		a.recruitmentDelay = a.calculateRecruitmentDelay()
		a.recruitmentProb = a.calculateRecruitmentProb()
	}
}

// considerStoppingScouting probabilistically abandons recruitment and
// returns the agent to its current nest.
func (a *Agent) considerStoppingScouting() {
	c := a.colony
	if !c.rng.EventOccurs(c.cfg.StopScoutingProb) {
		return
	}
	if a.preference != nil {
		a.preference.DecrementQuorum(c.id, 1, true)
	}
	a.currentNest.IncrementQuorum(c.id, 1, true)
	a.resetToIdle()
	a.transportDelay = 0
}

func (a *Agent) resetToIdle() {
	a.preference = nil
	a.transporting = false
	a.recruitmentDelay = 0
	a.recruitmentProb = 0
}

// RecruitToNestSite is called by the colony to recruit this agent to site.
// transported is true when the agent is carried rather than led; a carried
// agent becomes resident at site and does not recruit further.
func (a *Agent) RecruitToNestSite(site *world.Site, transported bool) bool {
	if site == nil {
		exceptions.Panicf("Agent.RecruitToNestSite called with site == nil")
	}
	c := a.colony
	cfg := &c.cfg

	if a.preference == nil {
		if site == a.currentNest {
			return false
		}
		// The comparison always runs when the site is eligible so far.
		better, sampled := a.compareSites(site)
		if (a.currentNest.Habitable() && !better) || !site.Habitable() {
			return false
		}
		a.currentNest.DecrementQuorum(c.id, 1, true)
		site.IncrementQuorum(c.id, 1, true)
		a.preferenceAssessedQuality = sampled
		a.assessmentDelay = cfg.AssessmentDelay
		if transported {
			a.currentNest = site
			a.resetToIdle()
		} else {
			a.preference = site
			a.recruitmentDelay = 0
			a.recruitmentProb = a.calculateRecruitmentProb()
		}
		return true
	}

	if !c.rng.EventOccurs(cfg.PreferenceSwitchProb) {
		return false
	}
	better, sampled := a.compareSites(site)
	if !better || site == a.preference || !site.Habitable() {
		a.assessmentDelay = cfg.AssessmentDelay
		return false
	}

	old := a.preference
	old.DecrementQuorum(c.id, 1, true)
	site.IncrementQuorum(c.id, 1, true)
	if site == a.currentNest {
		// Recruited back to its origin, so recruitment direction reverses.
		a.currentNest = old
	} else if old.ColonyQuorumSize(c.id) > 0 && c.rng.EventOccurs(cfg.CurrentNestSwitchProb) {
		a.currentNest = old
	}
	a.preferenceAssessedQuality = sampled
	a.assessmentDelay = cfg.AssessmentDelay
	if transported {
		a.currentNest = site
		a.resetToIdle()
	} else {
		a.preference = site
	}
	return true
}

// ReverseTandemRunFromTo swaps the agent's recruitment direction to run from
// origin to destination. Quorum counts are untouched.
func (a *Agent) ReverseTandemRunFromTo(origin, destination *world.Site) {
	if origin == nil || destination == nil {
		exceptions.Panicf("Agent.ReverseTandemRunFromTo called with nil site (origin=%v, destination=%v)", origin, destination)
	}
	a.currentNest = destination
	a.preference = origin
}
