package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/statline/internal/model"
)

var snapHeader = []string{"game_id", "pfr_game_id", "season", "game_type", "week", "player", "pfr_player_id", "position", "team", "opponent", "offense_snaps", "offense_pct", "defense_snaps", "defense_pct"}

func TestTransformParticipation(t *testing.T) {
	batch := &model.RawBatch{
		Format:  model.FormatCSVv1,
		Season:  2025,
		Week:    2,
		Columns: snapHeader,
		Rows: [][]string{
			{"g1", "p1", "2025", "REG", "2", "Josh Allen", "AlleJo02", "QB", "BUF", "NYJ", "64", "1.0", "0", "0"},
			{"g1", "p1", "2025", "REG", "2", "Dalton Kincaid", "KincDa00", "TE", "BUF", "NYJ", "41", "0.64", "0", "0"},
			{"g1", "p1", "2025", "REG", "2", "Terrel Bernard", "BernTe00", "LB", "BUF", "NYJ", "0", "0", "70", "1.0"},
			{"g1", "p1", "2025", "REG", "2", "Backup QB", "BackQB00", "QB", "BUF", "NYJ", "0", "0", "0", "0"},
			{"g0", "p0", "2025", "REG", "1", "Josh Allen", "AlleJo02", "QB", "BUF", "MIA", "70", "1.0", "0", "0"},
			{"g9", "p9", "2025", "POST", "2", "Josh Allen", "AlleJo02", "QB", "BUF", "KC", "70", "1.0", "0", "0"},
		},
	}

	parts, err := TransformParticipation(batch)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, "AlleJo02", parts[0].PlayerID)
	assert.Equal(t, 64, parts[0].OffenseSnaps)
	assert.InDelta(t, 100.0, parts[0].OffensePct, 1e-9)
	assert.Equal(t, model.PositionTE, parts[1].Position)
	assert.InDelta(t, 64.0, parts[1].OffensePct, 1e-9)
}

func TestTransformParticipation_MissingColumns(t *testing.T) {
	_, err := TransformParticipation(&model.RawBatch{Season: 2025, Week: 1, Columns: []string{"team"}, Rows: [][]string{{"BUF"}}})
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = TransformParticipation(&model.RawBatch{Season: 2025, Week: 1, Columns: []string{"player"}, Rows: [][]string{{"A"}}})
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestMergeParticipation(t *testing.T) {
	recs := []model.WeeklyRecord{
		{PlayerID: "00-1", PlayerName: "Josh Allen", Team: "BUF", Season: 2025, Week: 2},
		{PlayerID: "00-2", PlayerName: "Amon-Ra St. Brown", Team: "DET", Season: 2025, Week: 2},
		{PlayerID: "00-3", PlayerName: "Someone Else", Team: "DET", Season: 2025, Week: 2},
	}
	parts := []model.ParticipationRecord{
		{PlayerID: "AlleJo02", PlayerName: "Josh Allen", Team: "BUF", Season: 2025, Week: 2, OffensePct: 100},
		{PlayerID: "StBrAm00", PlayerName: "Amon-Ra St Brown", Team: "DET", Season: 2025, Week: 2, OffensePct: 91.5},
		{PlayerID: "AlleJo02", PlayerName: "Josh Allen", Team: "BUF", Season: 2025, Week: 1, OffensePct: 97},
	}

	matched := MergeParticipation(recs, parts)
	assert.Equal(t, 2, matched)
	require.NotNil(t, recs[0].ParticipationPct)
	assert.InDelta(t, 100.0, *recs[0].ParticipationPct, 1e-9)
	require.NotNil(t, recs[1].ParticipationPct)
	assert.InDelta(t, 91.5, *recs[1].ParticipationPct, 1e-9)
	assert.Nil(t, recs[2].ParticipationPct)
}

func TestSharePercent(t *testing.T) {
	assert.InDelta(t, 64.0, sharePercent(0.64), 1e-9)
	assert.InDelta(t, 33.3, sharePercent(0.3333), 1e-9)
	assert.InDelta(t, 87.5, sharePercent(87.5), 1e-9)
}
