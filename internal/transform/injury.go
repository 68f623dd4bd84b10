package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/statline/internal/model"
)

// Injury report columns.
var (
	injPlayerID = []string{"player_id"}
	injPlayer   = []string{"player", "player_name"}
	injTeam     = []string{"team", "tm"}
	injPosition = []string{"pos", "position"}
	injStatus   = []string{"status", "game_status"}
	injInjury   = []string{"injury", "injury_comment"}
	injPractice = []string{"practice_status"}
)

// TransformInjuries normalizes an injury report batch. Team codes are
// mapped to warehouse codes and positions upper-cased. A player listed
// twice keeps the last row. Every row is stamped with fetchedAt.
func TransformInjuries(batch *model.RawBatch, fetchedAt time.Time) ([]model.InjuryRecord, error) {
	if batch == nil || len(batch.Rows) == 0 {
		return nil, nil
	}
	t := newTable(batch)

	names, err := t.required(injPlayer...)
	if err != nil {
		return nil, err
	}
	ids := t.strings(t.col(injPlayerID...))
	teams := t.strings(t.col(injTeam...))
	positions := t.strings(t.col(injPosition...))
	statuses := t.strings(t.col(injStatus...))
	injuries := t.strings(t.col(injInjury...))
	practice := t.strings(t.col(injPractice...))

	fetchedAt = fetchedAt.UTC()
	idx := make(map[string]int, len(batch.Rows))
	var out []model.InjuryRecord
	for i := range batch.Rows {
		if names[i] == "" {
			continue
		}
		team := NormalizeTeam(teams[i])
		id := ids[i]
		if id == "" {
			id = fmt.Sprintf("%s|%s", NormalizeName(names[i]), team)
		}
		rec := model.InjuryRecord{
			PlayerID:       id,
			PlayerName:     names[i],
			Team:           team,
			Position:       strings.ToUpper(positions[i]),
			Status:         statuses[i],
			Injury:         injuries[i],
			PracticeStatus: practice[i],
			FetchedAt:      fetchedAt,
		}
		if j, ok := idx[id]; ok {
			out[j] = rec
			continue
		}
		idx[id] = len(out)
		out = append(out, rec)
	}
	return out, nil
}
