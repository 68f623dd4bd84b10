package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONObject(t *testing.T) {
	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	got, err := DecodeJSONObject[doc](strings.NewReader(`{"name":"x","count":3}`))
	require.NoError(t, err)
	assert.Equal(t, "x", got.Name)
	assert.Equal(t, 3, got.Count)
}

func TestDecodeJSONObject_Invalid(t *testing.T) {
	_, err := DecodeJSONObject[map[string]any](strings.NewReader(`{"name":`))
	require.Error(t, err)
}

func TestFlattenJSON(t *testing.T) {
	obj, err := DecodeJSONObject[map[string]any](strings.NewReader(`{
		"player": {"id": 12, "first_name": "Josh", "last_name": "Allen"},
		"team": {"abbreviation": "BUF"},
		"passing_yards": 300,
		"rushing_yards": null,
		"yards_per_att": 7.5,
		"starter": true,
		"tags": ["a", "b"]
	}`))
	require.NoError(t, err)

	flat, keys := FlattenJSON(*obj)
	assert.Equal(t, "12", flat["player.id"])
	assert.Equal(t, "Josh", flat["player.first_name"])
	assert.Equal(t, "BUF", flat["team.abbreviation"])
	assert.Equal(t, "300", flat["passing_yards"])
	assert.Equal(t, "", flat["rushing_yards"])
	assert.Equal(t, "7.5", flat["yards_per_att"])
	assert.Equal(t, "true", flat["starter"])
	assert.NotContains(t, flat, "tags")
	assert.Len(t, keys, len(flat))
}

func TestTabulate_UnionOfColumns(t *testing.T) {
	a, ka := FlattenJSON(map[string]any{"id": "1", "yards": "10"})
	b, kb := FlattenJSON(map[string]any{"id": "2", "tds": "1"})

	cols, rows := tabulate([]map[string]string{a, b}, [][]string{ka, kb})
	assert.Equal(t, []string{"id", "yards", "tds"}, cols)
	assert.Equal(t, [][]string{{"1", "10", ""}, {"2", "", "1"}}, rows)
}
