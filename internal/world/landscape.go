package world

import (
	"fmt"
	"slices"
)

// Landscape holds every candidate site of an experiment and the symmetric
// distance graph between them.
type Landscape struct {
	Sites  []*Site
	byName map[string]*Site
}

// NewLandscape creates an empty landscape.
func NewLandscape() *Landscape {
	return &Landscape{byName: make(map[string]*Site)}
}

// Add registers a site. Site names must be unique.
func (l *Landscape) Add(site *Site) error {
	if site == nil {
		return fmt.Errorf("landscape: nil site")
	}
	if _, ok := l.byName[site.Name]; ok {
		return fmt.Errorf("landscape: duplicate site %q", site.Name)
	}
	l.Sites = append(l.Sites, site)
	l.byName[site.Name] = site
	return nil
}

// Get returns the named site, or nil.
func (l *Landscape) Get(name string) *Site {
	return l.byName[name]
}

// Connect joins two registered sites in both directions.
func (l *Landscape) Connect(from, to string, distance int) error {
	a, b := l.Get(from), l.Get(to)
	if a == nil {
		return fmt.Errorf("landscape: unknown site %q", from)
	}
	if b == nil {
		return fmt.Errorf("landscape: unknown site %q", to)
	}
	if err := a.AddNeighbor(b, distance); err != nil {
		return err
	}
	if err := b.AddNeighbor(a, distance); err != nil {
		return err
	}
	return nil
}

// Others returns every site except home, in registration order.
func (l *Landscape) Others(home *Site) []*Site {
	return slices.DeleteFunc(slices.Clone(l.Sites), func(s *Site) bool { return s == home })
}

// TotalQuorum sums the colony's ants over all sites.
func (l *Landscape) TotalQuorum(id ColonyID) int {
	total := 0
	for _, s := range l.Sites {
		total += s.ColonyQuorumSize(id)
	}
	return total
}

// Best returns the habitable site with the highest base quality, excluding
// skip. Ties go to the earlier site. Returns nil if none qualifies.
func (l *Landscape) Best(skip *Site) *Site {
	var best *Site
	for _, s := range l.Sites {
		if s == skip || !s.Habitable() {
			continue
		}
		if best == nil || s.Quality().Base() > best.Quality().Base() {
			best = s
		}
	}
	return best
}

// MaxDistanceFrom returns the largest distance from site to any neighbour.
func (l *Landscape) MaxDistanceFrom(site *Site) int {
	maxDist := 0
	for _, n := range site.Neighbors() {
		maxDist = max(maxDist, site.DistanceTo(n))
	}
	return maxDist
}

// String returns a summary of the landscape.
func (l *Landscape) String() string {
	return fmt.Sprintf("Landscape(sites=%d)", len(l.Sites))
}
