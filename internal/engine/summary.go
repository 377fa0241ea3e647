package engine

// SiteResult is a site's state at the end of a run.
type SiteResult struct {
	Name      string `json:"name" db:"name"`
	Quality   int    `json:"quality" db:"quality"`
	Habitable bool   `json:"habitable" db:"habitable"`
	Distance  int    `json:"distance" db:"distance"` // from home; 0 for home
	Quorum    int    `json:"quorum" db:"quorum"`
	Passive   int    `json:"passive" db:"passive"`
}

// Summary is the outcome of one run.
type Summary struct {
	Seed                 int64        `json:"seed"`
	Ticks                uint64       `json:"ticks"`
	Halt                 HaltReason   `json:"halt"`
	ColonySplit          bool         `json:"colony_split"`
	FinalDecisionOptimal bool         `json:"final_decision_optimal"`
	TimeToVacate         uint64       `json:"time_to_vacate"`
	TimeToCompletion     uint64       `json:"time_to_completion"`
	RecruitmentActs      int          `json:"recruitment_acts"`
	Home                 string       `json:"home"`
	Best                 string       `json:"best"`
	Sites                []SiteResult `json:"sites"`
}

// Summary reports the run's outcome so far. The colony is split when its
// ants occupy more than one site. An unsplit colony decided optimally when
// it sits whole in the best habitable candidate; a split one when the best
// candidate holds more ants than any other candidate.
func (s *Simulation) Summary() Summary {
	occupied := 0
	for _, site := range s.Landscape.Sites {
		if site.ColonyQuorumSize(ColonyID) > 0 {
			occupied++
		}
	}
	split := occupied > 1
	sum := Summary{
		Seed:             s.Seed,
		Ticks:            s.tick,
		Halt:             s.halt,
		ColonySplit:      split,
		TimeToVacate:     s.timeToVacate,
		TimeToCompletion: s.lastChange,
		RecruitmentActs:  s.recruitmentActs,
		Home:             s.Home.Name,
	}
	if s.halt == HaltCompleted {
		sum.TimeToCompletion = s.tick
	}

	for _, site := range s.Landscape.Sites {
		r := SiteResult{
			Name:      site.Name,
			Quality:   site.Quality().Base(),
			Habitable: site.Habitable(),
			Quorum:    site.ColonyQuorumSize(ColonyID),
			Passive:   site.ColonyQuorumSizeBy(ColonyID, false),
		}
		if site != s.Home && s.Home.IsNeighbor(site) {
			r.Distance = s.Home.DistanceTo(site)
		}
		sum.Sites = append(sum.Sites, r)
	}

	best := s.Landscape.Best(s.Home)
	if best == nil {
		return sum
	}
	sum.Best = best.Name
	bestQuorum := best.ColonyQuorumSize(ColonyID)
	if !split {
		sum.FinalDecisionOptimal = bestQuorum == s.Colony.Size()
		return sum
	}
	sum.FinalDecisionOptimal = true
	for _, c := range s.Candidates {
		if c != best && c.ColonyQuorumSize(ColonyID) >= bestQuorum {
			sum.FinalDecisionOptimal = false
		}
	}
	return sum
}
