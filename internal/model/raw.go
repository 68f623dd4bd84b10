package model

// RawFormat tags the layout of a raw batch so the transformer can pick the
// matching column mapping.
type RawFormat string

// Raw batch formats. The suffix is the mapping version.
const (
	FormatJSONv1 RawFormat = "json/v1"
	FormatCSVv1  RawFormat = "csv/v1"
	FormatHTMLv1 RawFormat = "html/v1"
)

// RawBatch is the untouched upstream payload for one refresh unit, held as
// a header plus string rows. Nested JSON objects are flattened to dotted
// column names ("player.id").
type RawBatch struct {
	Format  RawFormat
	Season  int
	Week    int
	Columns []string
	Rows    [][]string
}

// Len returns the number of rows.
func (b *RawBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Index maps each column name to its position. Duplicate names keep the first.
func (b *RawBatch) Index() map[string]int {
	idx := make(map[string]int, len(b.Columns))
	for i, c := range b.Columns {
		if _, ok := idx[c]; !ok {
			idx[c] = i
		}
	}
	return idx
}
