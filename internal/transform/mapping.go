package transform

import "github.com/sells-group/statline/internal/model"

// statField ties a StatLine field to the raw columns that can feed it.
// Each source is a set of columns summed together; the first source with
// at least one column present in the batch wins.
type statField struct {
	name    string
	weight  func(s Scoring) float64
	sources [][]string
	set     func(l *model.StatLine, v int)
}

// columnMap is one versioned layout of a raw format.
type columnMap struct {
	format model.RawFormat

	playerID  []string
	name      []string
	firstName string
	lastName  string
	position  []string
	team      []string
	opponent  []string
	homeTeam  string
	awayTeam  string
	season    []string
	week      []string

	// seasonType columns hold "REG"/"POST"; postseason holds a boolean.
	seasonType []string
	postseason string

	stats []statField
}

func constWeight(w float64) func(Scoring) float64 {
	return func(Scoring) float64 { return w }
}

// Stat columns shared by all layouts; only the sources differ.
func statFields(src map[string][][]string) []statField {
	return []statField{
		{"passing_yards", constWeight(0.04), src["passing_yards"], func(l *model.StatLine, v int) { l.PassingYards = v }},
		{"passing_tds", constWeight(4), src["passing_tds"], func(l *model.StatLine, v int) { l.PassingTDs = v }},
		{"interceptions", constWeight(-1), src["interceptions"], func(l *model.StatLine, v int) { l.Interceptions = v }},
		{"rush_attempts", constWeight(0), src["rush_attempts"], func(l *model.StatLine, v int) { l.RushAttempts = v }},
		{"rushing_yards", constWeight(0.1), src["rushing_yards"], func(l *model.StatLine, v int) { l.RushingYards = v }},
		{"rushing_tds", constWeight(6), src["rushing_tds"], func(l *model.StatLine, v int) { l.RushingTDs = v }},
		{"receptions", func(s Scoring) float64 { return s.PPR }, src["receptions"], func(l *model.StatLine, v int) { l.Receptions = v }},
		{"targets", constWeight(0), src["targets"], func(l *model.StatLine, v int) { l.Targets = v }},
		{"receiving_yards", constWeight(0.1), src["receiving_yards"], func(l *model.StatLine, v int) { l.ReceivingYards = v }},
		{"receiving_tds", constWeight(6), src["receiving_tds"], func(l *model.StatLine, v int) { l.ReceivingTDs = v }},
		{"fumbles_lost", constWeight(-1), src["fumbles_lost"], func(l *model.StatLine, v int) { l.FumblesLost = v }},
	}
}

// jsonV1 is the stats API layout after flattening nested objects.
var jsonV1 = columnMap{
	format:     model.FormatJSONv1,
	playerID:   []string{"player.id"},
	name:       []string{"player.full_name", "player.name"},
	firstName:  "player.first_name",
	lastName:   "player.last_name",
	position:   []string{"player.position_abbreviation", "player.position"},
	team:       []string{"team.abbreviation", "player.team.abbreviation"},
	homeTeam:   "game.home_team.abbreviation",
	awayTeam:   "game.visitor_team.abbreviation",
	season:     []string{"game.season"},
	week:       []string{"game.week"},
	postseason: "game.postseason",
	stats: statFields(map[string][][]string{
		"passing_yards":   {{"passing_yards"}},
		"passing_tds":     {{"passing_touchdowns"}, {"passing_tds"}},
		"interceptions":   {{"passing_interceptions"}, {"interceptions"}},
		"rush_attempts":   {{"rushing_attempts"}},
		"rushing_yards":   {{"rushing_yards"}},
		"rushing_tds":     {{"rushing_touchdowns"}, {"rushing_tds"}},
		"receptions":      {{"receptions"}},
		"targets":         {{"receiving_targets"}, {"targets"}},
		"receiving_yards": {{"receiving_yards"}},
		"receiving_tds":   {{"receiving_touchdowns"}, {"receiving_tds"}},
		"fumbles_lost":    {{"fumbles_lost"}},
	}),
}

// csvV1 is the nflverse weekly player_stats layout.
var csvV1 = columnMap{
	format:     model.FormatCSVv1,
	playerID:   []string{"player_id", "gsis_id"},
	name:       []string{"player_display_name", "player_name", "name"},
	position:   []string{"position"},
	team:       []string{"recent_team", "team"},
	opponent:   []string{"opponent_team", "opponent"},
	season:     []string{"season"},
	week:       []string{"week"},
	seasonType: []string{"season_type", "game_type"},
	stats: statFields(map[string][][]string{
		"passing_yards":   {{"passing_yards"}},
		"passing_tds":     {{"passing_tds"}},
		"interceptions":   {{"interceptions"}, {"passing_interceptions"}},
		"rush_attempts":   {{"carries"}, {"rushing_attempts"}},
		"rushing_yards":   {{"rushing_yards"}},
		"rushing_tds":     {{"rushing_tds"}},
		"receptions":      {{"receptions"}},
		"targets":         {{"targets"}},
		"receiving_yards": {{"receiving_yards"}},
		"receiving_tds":   {{"receiving_tds"}},
		"fumbles_lost": {
			{"fumbles_lost"},
			{"rushing_fumbles_lost", "receiving_fumbles_lost", "sack_fumbles_lost"},
		},
	}),
}

func mappingFor(f model.RawFormat) (columnMap, bool) {
	switch f {
	case model.FormatJSONv1:
		return jsonV1, true
	case model.FormatCSVv1:
		return csvV1, true
	}
	return columnMap{}, false
}
