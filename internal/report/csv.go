// Package report writes run results as CSV and renders them for terminals.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/talgya/househunt/internal/colony"
	"github.com/talgya/househunt/internal/engine"
)

// SummaryWriter writes one CSV line per run. The header is written with the
// first run and names each site by position, so every run written must have
// the same number of sites.
type SummaryWriter struct {
	w     *csv.Writer
	sites int // 0 until the header is written
}

// NewSummaryWriter wraps w.
func NewSummaryWriter(w io.Writer) *SummaryWriter {
	return &SummaryWriter{w: csv.NewWriter(w)}
}

// SkipHeader is for appending to a file that already has a header for the
// given number of sites.
func (sw *SummaryWriter) SkipHeader(sites int) {
	sw.sites = sites
}

func summaryHeader(sites int) []string {
	cols := []string{
		"Seed", "ColonySize", "NumScouts", "NormalQuorumThreshold", "HostileQuorumThreshold",
		"EmergencyQuorumThreshold", "PreferenceSwitchProb", "StartScoutingProb", "StopScoutingProb",
		"ReverseTandemRunProb", "ChangeNestProb", "MaxNestSiteQuality", "AssessmentDelay",
		"TandemRunSpeed", "CarryingSpeed", "NestQualityRequirement", "PrattEbmEquivalent",
		"EnvironmentHostile", "DistanceSignificant", "CompareNestSiteQualities",
	}
	for i := range sites {
		n := strconv.Itoa(i + 1)
		cols = append(cols, "Nest"+n+"Name", "Nest"+n+"Quality", "Nest"+n+"Habitable", "Nest"+n+"Distance")
	}
	cols = append(cols, "ColonySplit", "FinalDecisionOptimal", "TimeToVacation", "TimeToCompletion",
		"NumRecruitmentActs", "Halt")
	for i := range sites {
		cols = append(cols, "Nest"+strconv.Itoa(i+1)+"QuorumSize")
	}
	return cols
}

// Write appends one run.
func (sw *SummaryWriter) Write(cfg colony.Config, sum engine.Summary) error {
	if sw.sites == 0 {
		sw.sites = len(sum.Sites)
		if err := sw.w.Write(summaryHeader(sw.sites)); err != nil {
			return fmt.Errorf("writing summary header: %w", err)
		}
	}
	if len(sum.Sites) != sw.sites {
		return fmt.Errorf("summary for seed %d has %d sites, expected %d", sum.Seed, len(sum.Sites), sw.sites)
	}

	row := []string{
		strconv.FormatInt(sum.Seed, 10),
		itoa(cfg.Size), itoa(cfg.NumScouts),
		itoa(cfg.NormalQuorumThreshold), itoa(cfg.HostileQuorumThreshold), itoa(cfg.EmergencyQuorumThreshold),
		ftoa(cfg.PreferenceSwitchProb), ftoa(cfg.StartScoutingProb), ftoa(cfg.StopScoutingProb),
		ftoa(cfg.ReverseTandemRunProb), ftoa(cfg.CurrentNestSwitchProb),
		itoa(cfg.MaxSiteQuality), itoa(cfg.AssessmentDelay),
		itoa(cfg.TandemRunSpeed), itoa(cfg.CarryingSpeed), itoa(cfg.NestQualityRequirement),
		btoa(cfg.PrattEquivalent), btoa(cfg.EnvironmentHostile),
		btoa(cfg.DistanceAffectsDiscovery), btoa(cfg.CompareSiteQualities),
	}
	for _, s := range sum.Sites {
		row = append(row, s.Name, itoa(s.Quality), btoa(s.Habitable), itoa(s.Distance))
	}
	row = append(row,
		btoa(sum.ColonySplit), btoa(sum.FinalDecisionOptimal),
		strconv.FormatUint(sum.TimeToVacate, 10), strconv.FormatUint(sum.TimeToCompletion, 10),
		itoa(sum.RecruitmentActs), string(sum.Halt))
	for _, s := range sum.Sites {
		row = append(row, itoa(s.Quorum))
	}
	if err := sw.w.Write(row); err != nil {
		return fmt.Errorf("writing summary row: %w", err)
	}
	sw.w.Flush()
	return sw.w.Error()
}

// WriteTrace writes a run's per-tick trace.
func WriteTrace(w io.Writer, sim *engine.Simulation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(engine.TraceHeader(len(sim.Landscape.Sites), len(sim.Candidates))); err != nil {
		return fmt.Errorf("writing trace header: %w", err)
	}
	for _, row := range sim.Trace() {
		values := row.Values()
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = itoa(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing trace row %d: %w", row.Tick, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func itoa(v int) string     { return strconv.Itoa(v) }
func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
func btoa(v bool) string    { return strconv.FormatBool(v) }
