package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/statline/internal/model"
)

func TestWriteStructured(t *testing.T) {
	report := &model.RefreshReport{
		RunID:   "run-1",
		Units:   []model.UnitResult{{Season: 2025, Week: 3, Status: model.UnitCommitted, Rows: 12}},
		Skipped: 2,
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeStructured(&buf, outputJSON, report))
		assert.Contains(t, buf.String(), `"run_id": "run-1"`)
		assert.Contains(t, buf.String(), `"skipped": 2`)
	})

	t.Run("yaml uses json field names", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeStructured(&buf, outputYAML, report))
		assert.Contains(t, buf.String(), "run_id: run-1")
		assert.Contains(t, buf.String(), "cache_invalidated: false")
		assert.NotContains(t, buf.String(), "runid")
	})

	t.Run("unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		err := writeStructured(&buf, "xml", report)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "xml")
	})
}

func TestFormatRefreshReport(t *testing.T) {
	var buf bytes.Buffer
	formatRefreshReport(&buf, &model.RefreshReport{
		RunID: "abc",
		Units: []model.UnitResult{
			{Season: 2023, Week: 0, Status: model.UnitCommitted, Rows: 500, Duration: 1500 * time.Millisecond},
			{Season: 2025, Week: 4, Status: model.UnitFailed, Error: "upstream: 503"},
			{Season: 2025, Week: 5, Status: model.UnitCommitted, Rows: 40, Warning: "participation: timeout"},
		},
		Skipped:   3,
		Cancelled: true,
	})

	out := buf.String()
	assert.Contains(t, out, "SEASON")
	assert.Contains(t, out, "all")
	assert.Contains(t, out, "upstream: 503")
	assert.Contains(t, out, "warning: participation: timeout")
	assert.Contains(t, out, "run abc: 2 committed, 1 failed, 3 already present (cancelled)")
}

func TestFormatRefreshLog(t *testing.T) {
	started := time.Date(2025, 10, 7, 6, 0, 0, 0, time.UTC)
	done := started.Add(4 * time.Second)

	var buf bytes.Buffer
	formatRefreshLog(&buf, []model.RefreshLogEntry{
		{ID: 7, RunID: "0123456789abcdef", Season: 2025, Week: 5, Status: model.UnitCommitted, StartedAt: started, CompletedAt: &done, Rows: 88},
		{ID: 8, RunID: "short", Season: 2023, Week: 0, Status: model.UnitLoading, StartedAt: started},
	})

	out := buf.String()
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "2025 week 5")
	assert.Contains(t, out, "2023 season")
	assert.Contains(t, out, "4s")
	assert.Contains(t, out, "2025-10-07 06:00")
}

func TestFormatStatRows(t *testing.T) {
	var buf bytes.Buffer
	formatStatRows(&buf, []model.StatRow{
		{
			PlayerName: "Joe Burrow", Position: model.PositionQB, Team: "CIN", Season: 2025, Week: 2,
			StatLine:      model.StatLine{PassingYards: 300, PassingTDs: 2, RushingTDs: 1},
			FantasyPoints: 25,
		},
		{PlayerName: "Christian McCaffrey", Position: model.PositionRB, Team: "SF", Season: 2023, GamesPlayed: 16, FantasyPoints: 391.3},
	})

	out := buf.String()
	assert.Contains(t, out, "Joe Burrow")
	assert.Contains(t, out, "25.00")
	assert.Contains(t, out, "391.30")
	assert.Contains(t, out, "16")
}

func TestFormatSlate(t *testing.T) {
	var buf bytes.Buffer
	formatSlate(&buf, []model.SlateEntry{
		{PlayerName: "Ja'Marr Chase", Position: model.PositionWR, Team: "CIN", Price: decimal.NewFromInt(8000), ProjectedPoints: 20},
	})

	out := buf.String()
	assert.Contains(t, out, "8000")
	assert.Contains(t, out, "2.50")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestFormatInjuries(t *testing.T) {
	var buf bytes.Buffer
	formatInjuries(&buf, []model.InjuryRecord{
		{PlayerName: "Travis Kelce", Position: "TE", Team: "KC", Status: "Questionable", Injury: "Ankle", PracticeStatus: "DNP"},
	})
	out := buf.String()
	assert.Contains(t, out, "PRACTICE")
	assert.Contains(t, out, "Travis Kelce")
	assert.Contains(t, out, "Questionable")

	buf.Reset()
	formatInjurySummary(&buf, model.InjurySummary{
		Total: 3, FantasyRelevant: 2,
		ByStatus:   map[string]int{"Out": 1, "Questionable": 1},
		ByPosition: map[string]int{"TE": 1, "WR": 1},
	})
	out = buf.String()
	assert.Contains(t, out, "3 injuries, 2 at skill positions")
	assert.Less(t, strings.Index(out, "Out"), strings.Index(out, "Questionable"))
}

func TestFormatComparison(t *testing.T) {
	var buf bytes.Buffer
	formatComparison(&buf, &model.Comparison{
		Season: 2025, Requested: 3, Found: 2,
		Players: []model.ComparedPlayer{
			{PlayerName: "Joe Burrow", Stats: map[string]float64{"passing_yards": 750, "fantasy_points": 49}},
			{PlayerName: "Josh Allen", Stats: map[string]float64{"passing_yards": 610, "fantasy_points": 52.5}},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "Josh Allen")
	assert.Contains(t, out, "52.5")
	assert.Contains(t, out, "2 of 3 players found for 2025")

	buf.Reset()
	formatComparison(&buf, &model.Comparison{Season: 2025})
	assert.Contains(t, buf.String(), "no players found")
}

func TestFormatSeasonSummary(t *testing.T) {
	var buf bytes.Buffer
	formatSeasonSummary(&buf, &model.SeasonSummary{
		Season: 2025, TotalPlayers: 1,
		Positions: []model.PositionSummary{
			{Position: model.PositionQB, TotalPlayers: 1, TotalFantasyPoints: 49, AvgFantasyPoints: 49,
				Top: &model.TopPerformer{PlayerName: "Joe Burrow", Team: "CIN", FantasyPoints: 49}},
			{Position: model.PositionRB},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "Joe Burrow (CIN) 49.00")
	assert.Contains(t, out, "1 players in 2025")
}
