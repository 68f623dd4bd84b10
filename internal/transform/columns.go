package transform

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/statline/internal/model"
)

// table is a resolved view over a raw batch: header lookup happens once and
// every accessor works on whole columns.
type table struct {
	batch *model.RawBatch
	idx   map[string]int
}

func newTable(b *model.RawBatch) table {
	return table{batch: b, idx: b.Index()}
}

// find returns the position and name of the first alias present.
func (t table) find(aliases ...string) (int, string, bool) {
	for _, a := range aliases {
		if a == "" {
			continue
		}
		if i, ok := t.idx[a]; ok {
			return i, a, true
		}
	}
	return -1, "", false
}

// strings returns a trimmed string column; a missing column yields blanks.
func (t table) strings(col int) []string {
	out := make([]string, len(t.batch.Rows))
	if col < 0 {
		return out
	}
	for i, row := range t.batch.Rows {
		if col < len(row) {
			out[i] = strings.TrimSpace(row[col])
		}
	}
	return out
}

// numbers parses and sums the given columns row-wise. Columns absent from
// the batch contribute zero.
func (t table) numbers(names ...string) ([]float64, error) {
	out := make([]float64, len(t.batch.Rows))
	for _, name := range names {
		col, ok := t.idx[name]
		if !ok {
			continue
		}
		for i, row := range t.batch.Rows {
			if col >= len(row) {
				continue
			}
			v, err := parseNumber(row[col])
			if err != nil {
				return nil, &TransformError{
					Season: t.batch.Season,
					Week:   t.batch.Week,
					Column: name,
					Row:    i + 1,
					Err:    err,
				}
			}
			out[i] += v
		}
	}
	return out, nil
}

// stat resolves a stat field to the first source with any column present
// and parses it. A stat with no source present is all zeros.
func (t table) stat(f statField) ([]float64, error) {
	for _, src := range f.sources {
		for _, c := range src {
			if _, ok := t.idx[c]; ok {
				return t.numbers(src...)
			}
		}
	}
	return make([]float64, len(t.batch.Rows)), nil
}

// parseNumber treats blank and null markers as zero.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none", "-":
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrBadNumber
	}
	return v, nil
}

// parseInt parses an integer column value, treating blanks as zero.
func parseInt(s string) (int, error) {
	v, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

// Round2 rounds to two decimals, the precision fantasy points are kept at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
