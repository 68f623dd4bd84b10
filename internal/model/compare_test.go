package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizePosition(t *testing.T) {
	rows := []StatRow{
		{PlayerName: "A", Team: "KC", FantasyPoints: 10.04},
		{PlayerName: "B", Team: "BUF", FantasyPoints: 20.03},
		{PlayerName: "C", Team: "SF", FantasyPoints: 5.0},
	}
	s := SummarizePosition(PositionWR, rows)
	assert.Equal(t, 3, s.TotalPlayers)
	assert.InDelta(t, 35.1, s.TotalFantasyPoints, 1e-9)
	assert.InDelta(t, 11.7, s.AvgFantasyPoints, 1e-9)
	require.NotNil(t, s.Top)
	assert.Equal(t, TopPerformer{PlayerName: "B", Team: "BUF", FantasyPoints: 20.03}, *s.Top)

	empty := SummarizePosition(PositionTE, nil)
	assert.Zero(t, empty.AvgFantasyPoints)
	assert.Nil(t, empty.Top)
}

func TestCompareFilter_Normalize(t *testing.T) {
	f, err := CompareFilter{Names: []string{" a ", "", "b"}, Stats: []string{" Targets ", ""}}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.Names)
	assert.Equal(t, []string{"targets"}, f.Stats)

	_, err = CompareFilter{Names: []string{"a"}}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = CompareFilter{Names: []string{"a", "b"}, Stats: []string{"team"}}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestNewComparedPlayer(t *testing.T) {
	row := StatRow{PlayerID: "p1", StatLine: StatLine{Targets: 9, Receptions: 7}, GamesPlayed: 2}

	p := NewComparedPlayer(row, []string{"targets", "games_played"})
	assert.Equal(t, map[string]float64{"targets": 9, "games_played": 2}, p.Stats)

	p = NewComparedPlayer(row, nil)
	assert.Len(t, p.Stats, len(StatFields))
	assert.InDelta(t, 7.0, p.Stats["receptions"], 1e-9)
}
