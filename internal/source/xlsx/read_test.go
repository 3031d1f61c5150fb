package xlsx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"observatory/internal/config"
	"observatory/internal/fault"
	"observatory/internal/source"
)

// writeWorkbook saves rows to a new workbook, one sheet per entry.
func writeWorkbook(t *testing.T, sheets map[string][][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for name, rows := range sheets {
		if name != "Sheet1" {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(name, cell, v))
			}
		}
	}

	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestRead_FirstSheet(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, map[string][][]any{
		"Sheet1": {
			{"REGIÓN", "PÉRDIDA 2023 (ha)", "PÉRDIDA 2024 (ha)"},
			{"LORETO", 1000, 1500.5},
			{},
			{"UCAYALI", 800},
		},
	})

	table, err := source.Read(context.Background(), config.Source{Kind: "xlsx", Path: path})
	require.NoError(t, err)

	assert.Equal(t, []string{"REGIÓN", "PÉRDIDA 2023 (ha)", "PÉRDIDA 2024 (ha)"}, table.Header)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, []any{"LORETO", "1000", "1500.5"}, table.Rows[0].Cells)
	assert.Equal(t, []any{"UCAYALI", "800", nil}, table.Rows[1].Cells)
	assert.Equal(t, 2, table.Rows[0].Line)
	assert.Equal(t, 4, table.Rows[1].Line)
}

func TestRead_NamedSheetAndSkipRows(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, map[string][][]any{
		"Sheet1": {{"ignored"}},
		"Datos": {
			{"Reporte de plantaciones"},
			{" Region ", "Hectareas"},
			{"CUSCO", 12.25},
		},
	})

	table, err := source.Read(context.Background(), config.Source{
		Kind: "xlsx",
		Path: path,
		Options: config.Options{
			"sheet":      "Datos",
			"skip_rows":  float64(1),
			"header_map": map[string]any{"Region": "REGIÓN"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"REGIÓN", "Hectareas"}, table.Header)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, []any{"CUSCO", "12.25"}, table.Rows[0].Cells)
	assert.Equal(t, 3, table.Rows[0].Line)
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, map[string][][]any{"Sheet1": {{"a"}, {"1"}}})

	_, err := source.Read(context.Background(), config.Source{Kind: "xlsx", Path: path, Options: config.Options{"sheet": "Nope"}})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindSource))

	_, err = source.Read(context.Background(), config.Source{Kind: "xlsx", Path: filepath.Join(t.TempDir(), "missing.xlsx")})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindSource))
}

func TestRead_HeaderOnly(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, map[string][][]any{"Sheet1": {{"a", "b"}}})

	table, err := source.Read(context.Background(), config.Source{Kind: "xlsx", Path: path})
	require.NoError(t, err)
	assert.Zero(t, table.Len())
	assert.Equal(t, []string{"a", "b"}, table.Header)
}
