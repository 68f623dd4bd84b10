package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/statline/internal/model"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// writeStructured writes v as JSON or YAML. YAML keys follow the JSON field
// names.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		raw, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "encode output")
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return eris.Wrap(err, "encode output")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	}
	return eris.Errorf("unknown output format %q", format)
}

func formatRefreshReport(out io.Writer, r *model.RefreshReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SEASON\tWEEK\tSTATUS\tROWS\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "------\t----\t------\t----\t--------\t-----")
	for _, u := range r.Units {
		week := fmt.Sprint(u.Week)
		if u.Week == 0 {
			week = "all"
		}
		msg := u.Error
		if msg == "" && u.Warning != "" {
			msg = "warning: " + u.Warning
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			u.Season, week, u.Status, u.Rows, u.Duration.Round(time.Millisecond), truncate(msg, 60))
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\nrun %s: %d committed, %d failed, %d already present",
		r.RunID, r.Count(model.UnitCommitted), r.Count(model.UnitFailed), r.Skipped)
	if r.Cancelled {
		_, _ = fmt.Fprint(out, " (cancelled)")
	}
	_, _ = fmt.Fprintln(out)
}

func formatRefreshLog(out io.Writer, entries []model.RefreshLogEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRUN\tUNIT\tSTATUS\tSTARTED\tDURATION\tROWS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t---\t----\t------\t-------\t--------\t----\t-----")
	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			shortID(e.RunID),
			model.NewUnit(e.Season, e.Week),
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.Rows,
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}

func formatWarehouseStats(out io.Writer, s *model.WarehouseStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TABLE\tSEASON\tROWS")
	_, _ = fmt.Fprintln(w, "-----\t------\t----")
	for _, c := range s.Counts {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", c.Table, c.Season, c.Rows)
	}
	_ = w.Flush()
}

func formatStatRows(out io.Writer, rows []model.StatRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PLAYER\tPOS\tTEAM\tSEASON\tWEEK\tGP\tPASS\tRUSH\tREC\tREC YDS\tTD\tFPTS")
	for _, r := range rows {
		week := "-"
		if r.Week > 0 {
			week = fmt.Sprint(r.Week)
		}
		gp := r.GamesPlayed
		if gp == 0 && r.Week > 0 {
			gp = 1
		}
		tds := r.PassingTDs + r.RushingTDs + r.ReceivingTDs
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%.2f\n",
			r.PlayerName, r.Position, r.Team, r.Season, week, gp,
			r.PassingYards, r.RushingYards, r.Receptions, r.ReceivingYards, tds, r.FantasyPoints)
	}
	_ = w.Flush()
}

func formatSlate(out io.Writer, entries []model.SlateEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PLAYER\tPOS\tTEAM\tPRICE\tPROJ\tPTS/1K")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			e.PlayerName, e.Position, e.Team, e.Price.StringFixed(0), e.ProjectedPoints, e.PointsPerThousand().StringFixed(2))
	}
	_ = w.Flush()
}

func formatInjuries(out io.Writer, report []model.InjuryRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PLAYER\tPOS\tTEAM\tSTATUS\tINJURY\tPRACTICE")
	for _, r := range report {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.PlayerName, r.Position, r.Team, r.Status, truncate(r.Injury, 30), r.PracticeStatus)
	}
	_ = w.Flush()
}

func formatInjurySummary(out io.Writer, s model.InjurySummary) {
	_, _ = fmt.Fprintf(out, "%d injuries, %d at skill positions\n\n", s.Total, s.FantasyRelevant)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tPLAYERS")
	for _, k := range sortedKeys(s.ByStatus) {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", k, s.ByStatus[k])
	}
	_, _ = fmt.Fprintln(w, "\t")
	_, _ = fmt.Fprintln(w, "POSITION\tPLAYERS")
	for _, k := range sortedKeys(s.ByPosition) {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", k, s.ByPosition[k])
	}
	_ = w.Flush()
}

func formatComparison(out io.Writer, c *model.Comparison) {
	if len(c.Players) == 0 {
		_, _ = fmt.Fprintf(out, "no players found for %d\n", c.Season)
		return
	}
	stats := sortedKeys(c.Players[0].Stats)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprint(w, "STAT")
	for _, p := range c.Players {
		_, _ = fmt.Fprintf(w, "\t%s", p.PlayerName)
	}
	_, _ = fmt.Fprintln(w)
	for _, st := range stats {
		_, _ = fmt.Fprint(w, st)
		for _, p := range c.Players {
			_, _ = fmt.Fprintf(w, "\t%g", p.Stats[st])
		}
		_, _ = fmt.Fprintln(w)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d of %d players found for %d\n", c.Found, c.Requested, c.Season)
}

func formatSeasonSummary(out io.Writer, s *model.SeasonSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "POS\tPLAYERS\tTOTAL FPTS\tAVG FPTS\tTOP")
	for _, p := range s.Positions {
		top := "-"
		if p.Top != nil {
			top = fmt.Sprintf("%s (%s) %.2f", p.Top.PlayerName, p.Top.Team, p.Top.FantasyPoints)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%s\n",
			p.Position, p.TotalPlayers, p.TotalFantasyPoints, p.AvgFantasyPoints, top)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d players in %d\n", s.TotalPlayers, s.Season)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
