package csv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"observatory/internal/config"
	"observatory/internal/fault"
	"observatory/internal/source"
)

func TestReadFrom_HeaderAndRows(t *testing.T) {
	t.Parallel()

	input := "\uFEFFREGIÓN,PÉRDIDA 2023 (ha), PÉRDIDA 2024 (ha) \n" +
		"LORETO,\"1,000\",\"1,500\"\n" +
		"UCAYALI,800,\n" +
		",,\n" +
		"SAN MARTÍN*,  12 ,7\n"

	table, err := ReadFrom(context.Background(), strings.NewReader(input), config.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"REGIÓN", "PÉRDIDA 2023 (ha)", "PÉRDIDA 2024 (ha)"}, table.Header)
	require.Equal(t, 3, table.Len(), "blank rows are skipped")

	assert.Equal(t, []any{"LORETO", "1,000", "1,500"}, table.Rows[0].Cells)
	assert.Equal(t, []any{"UCAYALI", "800", nil}, table.Rows[1].Cells)
	assert.Equal(t, []any{"SAN MARTÍN*", "12", "7"}, table.Rows[2].Cells)

	assert.Equal(t, 2, table.Rows[0].Line)
	assert.Equal(t, 5, table.Rows[2].Line)

	v, ok := table.Rows[0].Get("PÉRDIDA 2024 (ha)")
	assert.True(t, ok)
	assert.Equal(t, "1,500", v)
}

func TestReadFrom_Options(t *testing.T) {
	t.Parallel()

	input := "Reporte anual\n" +
		"Fuente: MINAM\n" +
		"Region;Monto\n" +
		"LORETO;1.234,5\n" +
		"UCAYALI;10\n"

	table, err := ReadFrom(context.Background(), strings.NewReader(input), config.Options{
		"comma":      ";",
		"skip_rows":  float64(2),
		"header_map": map[string]any{"Region": "REGIÓN"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"REGIÓN", "Monto"}, table.Header)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, []any{"LORETO", "1.234,5"}, table.Rows[0].Cells)
}

func TestReadFrom_AutoDelimiter(t *testing.T) {
	t.Parallel()

	input := "a\tb\tc\n1\t2,5\t3\n4\t5\t6\n"

	table, err := ReadFrom(context.Background(), strings.NewReader(input), config.Options{"comma": "auto"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, table.Header)
	assert.Equal(t, []any{"1", "2,5", "3"}, table.Rows[0].Cells)
}

func TestReadFrom_NoHeader(t *testing.T) {
	t.Parallel()

	table, err := ReadFrom(context.Background(), strings.NewReader("x,1\ny,2,extra\n"), config.Options{"has_header": false})
	require.NoError(t, err)

	assert.Equal(t, []string{"column_1", "column_2"}, table.Header)
	assert.Equal(t, []any{"y", "2"}, table.Rows[1].Cells, "cells beyond the header are dropped")
}

func TestReadFrom_Windows1252(t *testing.T) {
	t.Parallel()

	encoded, err := charmap.Windows1252.NewEncoder().String("REGIÓN,VALOR\nHUÁNUCO,5\n")
	require.NoError(t, err)

	table, err := ReadFrom(context.Background(), strings.NewReader(encoded), config.Options{"encoding": "windows-1252"})
	require.NoError(t, err)
	assert.Equal(t, "REGIÓN", table.Header[0])
	assert.Equal(t, "HUÁNUCO", table.Rows[0].Cells[0])
}

func TestReadFrom_EmptyInput(t *testing.T) {
	t.Parallel()

	table, err := ReadFrom(context.Background(), strings.NewReader(""), config.Options{})
	require.NoError(t, err)
	assert.Zero(t, table.Len())
}

func TestReadFrom_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadFrom(context.Background(), strings.NewReader("a,b\n\"unterminated,1\n"), config.Options{})
	assert.Error(t, err)

	_, err = ReadFrom(context.Background(), strings.NewReader("a\n1\n"), config.Options{"encoding": "ebcdic"})
	assert.Error(t, err)
}

func TestRead_ThroughRegistry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("REGIÓN,V\nLORETO,1\n"), 0o644))

	table, err := source.Read(context.Background(), config.Source{Kind: "csv", Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	_, err = source.Read(context.Background(), config.Source{Kind: "csv", Path: filepath.Join(dir, "missing.csv")})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindSource))
	assert.Contains(t, err.Error(), "missing.csv")

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("REGIÓN,V\n"), 0o644))

	table, err = source.Read(context.Background(), config.Source{Kind: "csv", Path: empty})
	require.NoError(t, err)
	assert.Zero(t, table.Len())

	_, err = source.Read(context.Background(), config.Source{Kind: "csv", Path: empty, RequireRows: true})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindSource))
}

func TestDeduceDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  rune
	}{
		{name: "comma", input: "a,b,c\n1,2,3\n", want: ','},
		{name: "semicolon_with_decimal_commas", input: "a;b;c\n1;2,5;3\n4;5,5;6\n", want: ';'},
		{name: "tab", input: "a\tb\n1\t2\n", want: '\t'},
		{name: "pipe", input: "a|b|c\n1|2|3\n", want: '|'},
		{name: "single_column_defaults_to_first", input: "a\n1\n", want: ','},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, DeduceDelimiter([]byte(tc.input), 20, nil))
		})
	}
}
