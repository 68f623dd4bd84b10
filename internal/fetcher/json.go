package fetcher

import (
	"encoding/json"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
)

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}

// FlattenJSON turns a decoded JSON object into dotted-path string fields:
// {"player":{"id":7}} becomes {"player.id":"7"}. Nulls become empty strings
// and arrays are skipped. The returned keys are in sorted path order.
func FlattenJSON(obj map[string]any) (map[string]string, []string) {
	out := make(map[string]string, len(obj))
	var keys []string
	flattenInto(out, &keys, "", obj)
	return out, keys
}

func flattenInto(out map[string]string, keys *[]string, prefix string, obj map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		v := obj[k]
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		var s string
		switch val := v.(type) {
		case map[string]any:
			flattenInto(out, keys, name, val)
			continue
		case []any:
			continue
		case nil:
			s = ""
		case string:
			s = val
		case json.Number:
			s = val.String()
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(val)
		default:
			continue
		}
		out[name] = s
		*keys = append(*keys, name)
	}
}

// tabulate lays out flattened records as a header plus rows. Columns appear
// in first-seen order; fields missing from a record are empty.
func tabulate(records []map[string]string, keys [][]string) ([]string, [][]string) {
	index := make(map[string]int)
	var columns []string
	for _, ks := range keys {
		for _, k := range ks {
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
	}

	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(columns))
		for k, v := range rec {
			row[index[k]] = v
		}
		rows[i] = row
	}
	return columns, rows
}
