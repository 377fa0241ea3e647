package engine

import "strconv"

// TraceRow is the colony's state at the start of one tick.
type TraceRow struct {
	Tick      uint64 `json:"tick"`
	Size      int    `json:"n"`          // N: colony size
	Threshold int    `json:"q"`          // Q: colony quorum threshold
	Idle      int    `json:"s"`          // S: scouts neither recruiting from home nor assessing
	Passive   []int  `json:"passive"`    // P_i per site, landscape order
	Recruits  []int  `json:"recruiters"` // R_i home -> candidate i
	Assessing []int  `json:"assessing"`  // A_i per candidate
}

func (s *Simulation) traceRow(tick uint64) TraceRow {
	row := TraceRow{
		Tick:      tick,
		Size:      s.Colony.Size(),
		Threshold: s.Colony.QuorumThreshold(),
		Idle:      s.Colony.NumScouts(),
		Passive:   make([]int, len(s.Landscape.Sites)),
		Recruits:  make([]int, len(s.Candidates)),
		Assessing: make([]int, len(s.Candidates)),
	}
	for i, site := range s.Landscape.Sites {
		row.Passive[i] = site.ColonyQuorumSizeBy(ColonyID, false)
	}
	for i, c := range s.Candidates {
		row.Recruits[i] = s.Colony.NumRecruitersBetweenSites(s.Home, c)
		row.Assessing[i] = s.Colony.NumAssessingSite(c)
		row.Idle -= row.Recruits[i] + row.Assessing[i]
	}
	return row
}

// TraceHeader returns the column names for rows of a run over the given
// landscape: N, Q, S, then P_i for every site, R_i and A_i per candidate.
func TraceHeader(sites, candidates int) []string {
	cols := []string{"N", "Q", "S"}
	for i := range sites {
		cols = append(cols, "P_"+strconv.Itoa(i))
	}
	for i := range candidates {
		cols = append(cols, "R_"+strconv.Itoa(i+1))
	}
	for i := range candidates {
		cols = append(cols, "A_"+strconv.Itoa(i+1))
	}
	return cols
}

// Values flattens the row in TraceHeader order.
func (r TraceRow) Values() []int {
	v := []int{r.Size, r.Threshold, r.Idle}
	v = append(v, r.Passive...)
	v = append(v, r.Recruits...)
	return append(v, r.Assessing...)
}
