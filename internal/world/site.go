// Package world provides candidate nest sites, their per-colony quorum
// ledgers and the distance graph between them.
// Distances are scalar edge weights between abstract sites, not coordinates.
package world

import (
	"fmt"

	"github.com/gomlx/exceptions"

	"github.com/talgya/househunt/internal/entropy"
)

// ColonyID is the stable handle a site uses to key its quorum ledger.
type ColonyID int

// colonyQuorum counts one colony's ants present at, assessing, or
// recruiting to a site.
type colonyQuorum struct {
	active  int // scouts
	passive int // non-scouts, moved only by transport
}

type neighbor struct {
	site     *Site
	distance int
}

// Site is a candidate nest location.
type Site struct {
	Name string

	quality   Quality
	habitable bool

	quorum   int // total over all colonies
	colonies map[ColonyID]*colonyQuorum

	neighbors     []neighbor
	totalDistance int
}

// NewSite creates a habitable site with no neighbours and an empty ledger.
func NewSite(name string, quality Quality) *Site {
	if quality == nil {
		exceptions.Panicf("world.NewSite(%q) called with nil quality", name)
	}
	return &Site{
		Name:      name,
		quality:   quality,
		habitable: true,
		colonies:  make(map[ColonyID]*colonyQuorum),
	}
}

// SampleQuality returns an independent noisy reading of the site's quality.
// The result is always >= 1.
func (s *Site) SampleQuality(rng *entropy.Stream) int {
	return s.quality.Sample(rng)
}

// Quality returns the site's quality model.
func (s *Site) Quality() Quality {
	return s.quality
}

// Habitable reports whether the site can house a colony.
func (s *Site) Habitable() bool {
	return s.habitable
}

// SetHabitable marks the site habitable or destroyed.
func (s *Site) SetHabitable(habitable bool) {
	s.habitable = habitable
}

// QuorumSize returns the number of ants of every colony at the site.
func (s *Site) QuorumSize() int {
	return s.quorum
}

// ColonyQuorumSize returns the number of the colony's ants at the site.
func (s *Site) ColonyQuorumSize(id ColonyID) int {
	q, ok := s.colonies[id]
	if !ok {
		return 0
	}
	return q.active + q.passive
}

// ColonyQuorumSizeBy returns the colony's active (scout) or passive count.
func (s *Site) ColonyQuorumSizeBy(id ColonyID, active bool) int {
	q, ok := s.colonies[id]
	if !ok {
		return 0
	}
	if active {
		return q.active
	}
	return q.passive
}

// IncrementQuorum adds n of the colony's ants to the site.
func (s *Site) IncrementQuorum(id ColonyID, n int, active bool) {
	if n < 0 {
		exceptions.Panicf("site %s: IncrementQuorum called with n < 0 (n == %d)", s.Name, n)
	}
	q, ok := s.colonies[id]
	if !ok {
		q = &colonyQuorum{}
		s.colonies[id] = q
	}
	if active {
		q.active += n
	} else {
		q.passive += n
	}
	s.quorum += n
}

// DecrementQuorum removes n of the colony's ants from the site. The ledger
// entry is dropped once both counts reach zero.
func (s *Site) DecrementQuorum(id ColonyID, n int, active bool) {
	q, ok := s.colonies[id]
	if !ok {
		exceptions.Panicf("site %s: DecrementQuorum: no ants from colony %d present", s.Name, id)
	}
	if n < 0 {
		exceptions.Panicf("site %s: DecrementQuorum called with n < 0 (n == %d)", s.Name, n)
	}
	if active {
		if q.active < n {
			exceptions.Panicf("site %s: DecrementQuorum called with n > active quorum of colony %d (n == %d, active == %d)",
				s.Name, id, n, q.active)
		}
		q.active -= n
	} else {
		if q.passive < n {
			exceptions.Panicf("site %s: DecrementQuorum called with n > passive quorum of colony %d (n == %d, passive == %d)",
				s.Name, id, n, q.passive)
		}
		q.passive -= n
	}
	s.quorum -= n
	if q.active == 0 && q.passive == 0 {
		delete(s.colonies, id)
	}
}

// AddNeighbor registers other as a neighbour at the given distance. The edge
// is one-way: callers add the reverse edge themselves (see Landscape.Connect).
func (s *Site) AddNeighbor(other *Site, distance int) error {
	if other == nil {
		exceptions.Panicf("site %s: AddNeighbor called with nil site", s.Name)
	}
	if other == s {
		return fmt.Errorf("site %s: cannot be its own neighbour", s.Name)
	}
	if distance < 0 {
		return fmt.Errorf("site %s: distance to %s must be >= 0, got %d", s.Name, other.Name, distance)
	}
	for _, n := range s.neighbors {
		if n.site == other {
			return fmt.Errorf("site %s: %s is already a neighbour", s.Name, other.Name)
		}
	}
	s.neighbors = append(s.neighbors, neighbor{site: other, distance: distance})
	s.totalDistance += distance
	return nil
}

// Neighbors returns the neighbouring sites in registration order.
func (s *Site) Neighbors() []*Site {
	sites := make([]*Site, len(s.neighbors))
	for i, n := range s.neighbors {
		sites[i] = n.site
	}
	return sites
}

// IsNeighbor reports whether other is a registered neighbour.
func (s *Site) IsNeighbor(other *Site) bool {
	for _, n := range s.neighbors {
		if n.site == other {
			return true
		}
	}
	return false
}

// DistanceTo returns the distance to a registered neighbour.
func (s *Site) DistanceTo(other *Site) int {
	if other == nil {
		exceptions.Panicf("site %s: DistanceTo called with nil site", s.Name)
	}
	for _, n := range s.neighbors {
		if n.site == other {
			return n.distance
		}
	}
	exceptions.Panicf("site %s: DistanceTo called with non-neighbouring site %s", s.Name, other.Name)
	return 0
}

// RandomNeighbor draws a neighbour. Unweighted draws are uniform. Weighted
// draws favour closer neighbours: a uniform draw over [0, totalDistance) is
// matched against consecutive buckets of width (totalDistance - distance).
// A single neighbour, or neighbours all at distance 0, fall back to uniform.
func (s *Site) RandomNeighbor(rng *entropy.Stream, distanceWeighted bool) *Site {
	if len(s.neighbors) == 0 {
		exceptions.Panicf("site %s: RandomNeighbor called on site with no neighbours", s.Name)
	}
	if !distanceWeighted || len(s.neighbors) == 1 || s.totalDistance == 0 {
		return s.neighbors[rng.IntN(len(s.neighbors))].site
	}

	draw := rng.IntN(s.totalDistance)
	lower := 0
	for _, n := range s.neighbors {
		width := s.totalDistance - n.distance
		if draw >= lower && draw < lower+width {
			return n.site
		}
		lower += width
	}
	exceptions.Panicf("site %s: weighted neighbour draw %d fell outside every bucket", s.Name, draw)
	return nil
}

// String returns a summary of the site.
func (s *Site) String() string {
	return fmt.Sprintf("Site(%s, quorum=%d, habitable=%t)", s.Name, s.quorum, s.habitable)
}
