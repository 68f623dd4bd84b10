package transform

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/statline/internal/model"
)

// SlateMeta identifies the slate a salary sheet belongs to.
type SlateMeta struct {
	Season  int
	Week    int
	SlateID string
}

// Salary sheet header aliases, matched case-insensitively. Covers the
// common contest-site exports and a plain player/team/salary layout.
var (
	slateID         = []string{"id", "player_id", "playerid", "dk_player_id"}
	slateName       = []string{"name", "player", "player_name", "longname"}
	slatePosition   = []string{"position", "pos", "roster position"}
	slateTeam       = []string{"teamabbrev", "team"}
	slatePrice      = []string{"salary", "price"}
	slateProjection = []string{"avgpointspergame", "projected_points", "projection", "proj", "fpts"}
)

// ParseSlate converts a salary sheet (header row first) into slate entries.
// Non-skill positions are skipped. Rows without a player id are keyed by
// normalized name and team.
func ParseSlate(rows [][]string, meta SlateMeta) ([]model.SlateEntry, error) {
	if meta.SlateID == "" {
		return nil, eris.New("slate: slate id is required")
	}
	if len(rows) == 0 {
		return nil, eris.New("slate: empty sheet")
	}

	header := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		k := strings.ToLower(strings.TrimSpace(h))
		if _, ok := header[k]; !ok {
			header[k] = i
		}
	}
	find := func(aliases []string) int {
		for _, a := range aliases {
			if i, ok := header[a]; ok {
				return i
			}
		}
		return -1
	}

	nameCol, priceCol := find(slateName), find(slatePrice)
	if nameCol < 0 {
		return nil, eris.Wrap(ErrMissingColumn, "slate: player name")
	}
	if priceCol < 0 {
		return nil, eris.Wrap(ErrMissingColumn, "slate: salary")
	}
	idCol, posCol, teamCol, projCol := find(slateID), find(slatePosition), find(slateTeam), find(slateProjection)

	cell := func(row []string, col int) string {
		if col < 0 || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	seen := make(map[string]int)
	var out []model.SlateEntry
	for n, row := range rows[1:] {
		name := cell(row, nameCol)
		if name == "" {
			continue
		}
		// Contest exports list flex eligibility as "RB/FLEX".
		rawPos, _, _ := strings.Cut(cell(row, posCol), "/")
		pos, ok := model.ParsePosition(rawPos)
		if !ok {
			continue
		}

		price, err := parsePrice(cell(row, priceCol))
		if err != nil {
			return nil, eris.Wrapf(err, "slate: row %d salary", n+2)
		}
		proj, err := parseNumber(cell(row, projCol))
		if err != nil {
			return nil, eris.Wrapf(err, "slate: row %d projection", n+2)
		}

		team := NormalizeTeam(cell(row, teamCol))
		id := cell(row, idCol)
		if id == "" {
			id = NormalizeName(name) + "|" + team
		}

		e := model.SlateEntry{
			PlayerID:        id,
			PlayerName:      name,
			Position:        pos,
			Team:            team,
			Season:          meta.Season,
			Week:            meta.Week,
			SlateID:         meta.SlateID,
			Price:           price,
			ProjectedPoints: Round2(proj),
		}
		if j, dup := seen[id]; dup {
			out[j] = e
			continue
		}
		seen[id] = len(out)
		out = append(out, e)
	}
	return out, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrBadNumber
	}
	if d.IsNegative() {
		return decimal.Zero, eris.Wrap(ErrBadNumber, "negative price")
	}
	return d, nil
}
