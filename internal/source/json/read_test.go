package json

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"observatory/internal/config"
	"observatory/internal/fault"
	"observatory/internal/source"
)

func read(t *testing.T, input string, opt config.Options) *source.Table {
	t.Helper()
	table, err := ReadFrom(context.Background(), strings.NewReader(input), opt)
	require.NoError(t, err)
	return table
}

func TestReadFrom_RootArray(t *testing.T) {
	t.Parallel()

	table := read(t, `[
		{"REGIÓN": "LORETO", "PÉRDIDA 2024 (ha)": "1,500"},
		null,
		{"REGIÓN": "UCAYALI", "PÉRDIDA 2024 (ha)": 600, "NOTA": "prelim"}
	]`, nil)

	assert.Equal(t, []string{"REGIÓN", "PÉRDIDA 2024 (ha)", "NOTA"}, table.Header)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, []any{"LORETO", "1,500", nil}, table.Rows[0].Cells)
	assert.Equal(t, []any{"UCAYALI", json.Number("600"), "prelim"}, table.Rows[1].Cells)
	assert.Equal(t, 2, table.Rows[1].Line)
}

func TestReadFrom_Envelope(t *testing.T) {
	t.Parallel()

	table := read(t, `{
		"meta": {"source": "MINAM"},
		"data": [{"a": 1}, {"a": 2}],
		"other": [{"a": 99}]
	}`, nil)

	assert.Equal(t, []string{"a"}, table.Header)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, json.Number("2"), table.Rows[1].Cells[0])
}

func TestReadFrom_EnvelopeRecordsKey(t *testing.T) {
	t.Parallel()

	table := read(t, `{"tags": ["x", "y"], "rows": [{"a": "first"}]}`, config.Options{"records_key": "rows"})

	require.Equal(t, 1, table.Len())
	assert.Equal(t, []any{"first"}, table.Rows[0].Cells)
}

func TestReadFrom_EnvelopeAfterScalarArray(t *testing.T) {
	t.Parallel()

	table := read(t, `{"tags": ["x", null, "y"], "rows": [null, {"a": "first"}, {"a": "second"}]}`, nil)

	assert.Equal(t, []string{"a"}, table.Header)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, []any{"second"}, table.Rows[1].Cells)
}

func TestReadFrom_SingleObjectWithOnlyScalarArrays(t *testing.T) {
	t.Parallel()

	table := read(t, `{"species": ["pino", 3], "region": "JUNIN", "codes": [[1], "a"]}`, nil)

	assert.Equal(t, []string{"species", "region", "codes"}, table.Header)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, []any{"pino,3", "JUNIN", "a"}, table.Rows[0].Cells)
}

func TestReadFrom_SingleObjectFlattens(t *testing.T) {
	t.Parallel()

	table := read(t, `{"region": {"name": "LORETO", "code": 16}, "species": ["pino", "eucalipto"], "active": true}`,
		config.Options{"array_join_separator": "|"})

	assert.Equal(t, []string{"region.name", "region.code", "species", "active"}, table.Header)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, []any{"LORETO", json.Number("16"), "pino|eucalipto", true}, table.Rows[0].Cells)
}

func TestReadFrom_JSONLines(t *testing.T) {
	t.Parallel()

	table := read(t, "{\"a\": 1}\n{\"b\": 2}\n", nil)

	assert.Equal(t, []string{"a", "b"}, table.Header)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, []any{nil, json.Number("2")}, table.Rows[1].Cells)
}

func TestReadFrom_HeaderMap(t *testing.T) {
	t.Parallel()

	table := read(t, `[{"region": "LORETO"}]`, config.Options{"header_map": map[string]any{"region": "REGIÓN"}})
	assert.Equal(t, []string{"REGIÓN"}, table.Header)

	v, ok := table.Rows[0].Get("REGIÓN")
	assert.True(t, ok)
	assert.Equal(t, "LORETO", v)
}

func TestReadFrom_Empty(t *testing.T) {
	t.Parallel()

	assert.Zero(t, read(t, ``, nil).Len())
	assert.Zero(t, read(t, `[]`, nil).Len())
	assert.Zero(t, read(t, `{"data": []}`, nil).Len())
}

func TestReadFrom_Errors(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"scalar_root":       `42`,
		"non_object_record": `[1, 2]`,
		"truncated":         `[{"a": 1}`,
		"bad_syntax":        `[{"a": }]`,
		"records_key_array": `{"rows": [1, 2]}`,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadFrom(context.Background(), strings.NewReader(input), config.Options{"records_key": "rows"})
			assert.Error(t, err)
		})
	}
}

func TestRead_ThroughRegistry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"a": 1}]`), 0o644))

	table, err := source.Read(context.Background(), config.Source{Kind: "json", Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	_, err = source.Read(context.Background(), config.Source{Kind: "json", Path: bad})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindSource))
}
