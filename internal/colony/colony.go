// Package colony implements the house-hunting decision engine: a colony of
// scouts that assess candidate sites, recruit nestmates and emigrate once a
// quorum forms.
package colony

import (
	"fmt"
	"log/slog"

	"github.com/gomlx/exceptions"

	"github.com/talgya/househunt/internal/entropy"
	"github.com/talgya/househunt/internal/world"
)

// Colony owns its scouts and coordinates recruitment between them. Only the
// scouts are modelled as agents; the remaining Size-NumScouts ants exist
// only as passive quorum at sites.
type Colony struct {
	id  world.ColonyID
	cfg Config
	rng *entropy.Stream

	agents      []*Agent
	currentNest *world.Site

	quorumThreshold    int // 0: not house-hunting
	numRecruitmentActs int
}

// New creates a colony resident at home. All ants are added to home's
// ledger: NumScouts active and the rest passive.
func New(id world.ColonyID, cfg Config, home *world.Site, rng *entropy.Stream) (*Colony, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid colony config: %w", err)
	}
	if home == nil {
		return nil, fmt.Errorf("invalid colony config: home site is nil")
	}
	if rng == nil {
		return nil, fmt.Errorf("invalid colony config: random stream is nil")
	}

	c := &Colony{
		id:          id,
		cfg:         cfg,
		rng:         rng,
		currentNest: home,
	}
	c.agents = make([]*Agent, cfg.NumScouts)
	for i := range c.agents {
		c.agents[i] = newAgent(c)
	}
	home.IncrementQuorum(id, cfg.NumScouts, true)
	home.IncrementQuorum(id, cfg.Size-cfg.NumScouts, false)

	switch {
	case !home.Habitable() && cfg.EnvironmentHostile:
		c.quorumThreshold = cfg.HostileQuorumThreshold
	case !home.Habitable():
		c.quorumThreshold = cfg.EmergencyQuorumThreshold
	case home.SampleQuality(rng) < cfg.NestQualityRequirement:
		c.quorumThreshold = cfg.NormalQuorumThreshold
	}
	return c, nil
}

// ID returns the colony's ledger key.
func (c *Colony) ID() world.ColonyID { return c.id }

// Config returns the colony's parameters.
func (c *Colony) Config() Config { return c.cfg }

// Size returns the total number of ants.
func (c *Colony) Size() int { return c.cfg.Size }

// NumScouts returns the number of modelled agents.
func (c *Colony) NumScouts() int { return c.cfg.NumScouts }

// QuorumThreshold returns 0 when the colony is not house-hunting.
func (c *Colony) QuorumThreshold() int { return c.quorumThreshold }

// NumRecruitmentActs counts recruitments since the current emigration began.
func (c *Colony) NumRecruitmentActs() int { return c.numRecruitmentActs }

// CurrentNest returns the colony's home.
func (c *Colony) CurrentNest() *world.Site { return c.currentNest }

// Agents returns the scouts in update order. The slice must not be modified.
func (c *Colony) Agents() []*Agent { return c.agents }

// Tick advances the colony by one timestep. An idle colony first decides
// whether to start house-hunting; a house-hunting colony then updates every
// agent in list order.
func (c *Colony) Tick() {
	if c.quorumThreshold == 0 {
		switch {
		case !c.currentNest.Habitable():
			c.quorumThreshold = c.cfg.EmergencyQuorumThreshold
		case c.currentNest.SampleQuality(c.rng) < c.cfg.NestQualityRequirement:
			if c.cfg.EnvironmentHostile {
				c.quorumThreshold = c.cfg.HostileQuorumThreshold
			} else {
				c.quorumThreshold = c.cfg.NormalQuorumThreshold
			}
		}
		c.numRecruitmentActs = 0
		if c.quorumThreshold > 0 {
			slog.Debug("emigration started", "colony", c.id, "from", c.currentNest.Name, "threshold", c.quorumThreshold)
		}
	}
	if c.quorumThreshold == 0 {
		return
	}
	for _, a := range c.agents {
		a.Update()
	}
}

// RecruitScoutToSite asks one scout to be recruited to site. With
// activeOnly false, the first scout without a preference is tried. Otherwise
// a random scout is tried, or in Pratt-equivalent mode the first scout whose
// preference is some other site. Reports whether a scout was recruited.
func (c *Colony) RecruitScoutToSite(site *world.Site, transporting, activeOnly bool) bool {
	if site == nil {
		exceptions.Panicf("Colony.RecruitScoutToSite called with site == nil")
	}
	if !activeOnly {
		for _, a := range c.agents {
			if a.preference == nil {
				return a.RecruitToNestSite(site, transporting)
			}
		}
	}
	if !c.cfg.PrattEquivalent {
		return c.agents[c.rng.IntN(len(c.agents))].RecruitToNestSite(site, transporting)
	}
	for _, a := range c.agents {
		if a.preference != nil && a.preference != site {
			return a.RecruitToNestSite(site, transporting)
		}
	}
	return false
}

// ReverseTandemRunFromTo redirects the first scout recruiting to origin (and
// not already based at destination), or resident at origin, to recruit from
// destination to origin instead.
func (c *Colony) ReverseTandemRunFromTo(origin, destination *world.Site) bool {
	if origin == nil || destination == nil {
		exceptions.Panicf("Colony.ReverseTandemRunFromTo called with nil site (origin=%v, destination=%v)", origin, destination)
	}
	for _, a := range c.agents {
		if (a.preference == origin && a.currentNest != destination) ||
			(a.preference == nil && a.currentNest == origin) {
			a.ReverseTandemRunFromTo(origin, destination)
			return true
		}
	}
	return false
}

// EmigrationCompleted moves the colony's home to site and ends house-hunting.
func (c *Colony) EmigrationCompleted(site *world.Site) {
	if site == nil {
		exceptions.Panicf("Colony.EmigrationCompleted called with site == nil")
	}
	slog.Debug("emigration completed", "colony", c.id, "to", site.Name, "recruitment_acts", c.numRecruitmentActs)
	c.currentNest = site
	c.quorumThreshold = 0
}

// Emigrate destroys the colony's current nest, forcing an emergency
// emigration on the next tick.
func (c *Colony) Emigrate() {
	slog.Debug("nest destroyed", "colony", c.id, "site", c.currentNest.Name)
	c.currentNest.SetHabitable(false)
}

// NumRecruitersBetweenSites counts scouts recruiting from origin to destination.
func (c *Colony) NumRecruitersBetweenSites(origin, destination *world.Site) int {
	if origin == nil || destination == nil {
		exceptions.Panicf("Colony.NumRecruitersBetweenSites called with nil site")
	}
	n := 0
	for _, a := range c.agents {
		if a.currentNest == origin && a.preference == destination {
			n++
		}
	}
	return n
}

// NumAssessingSite counts scouts currently assessing site.
func (c *Colony) NumAssessingSite(site *world.Site) int {
	if site == nil {
		exceptions.Panicf("Colony.NumAssessingSite called with site == nil")
	}
	n := 0
	for _, a := range c.agents {
		if a.assessing && a.preference == site {
			n++
		}
	}
	return n
}
