package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	err := f.Save(path)
	require.NoError(t, err)
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Salaries": {
			{"Name", "Team", "Salary"},
			{"Josh Allen", "BUF", "8200"},
			{"Saquon Barkley", "PHI", "7900"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Team", "Salary"}, rows[0])
	assert.Equal(t, []string{"Saquon Barkley", "PHI", "7900"}, rows[2])
}

func TestReadXLSX_SkipRowsAndBlankLines(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Week 1 main slate"},
			{"Name", "Salary"},
			{"", ""},
			{" Josh Allen ", "8200"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Salary"}, {"Josh Allen", "8200"}}, rows)
}

func TestReadXLSX_SheetByName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Other": {{"x"}},
		"Main":  {{"y"}},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Main"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"y"}}, rows)

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Nope"})
	require.Error(t, err)
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})
	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "none.xlsx"), XLSXOptions{})
	require.Error(t, err)
}
