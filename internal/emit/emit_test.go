package emit

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"observatory/internal/aggregate"
	"observatory/internal/dataset"
	"observatory/internal/fault"
	"observatory/internal/record"
)

var lossFields = record.Spec{
	{Target: "region", Type: record.FieldString},
	{Target: "year", Type: record.FieldInteger},
	{Target: "loss", Type: record.FieldNumber},
}

func sampleDocument() dataset.Document {
	pct := 71.428571
	return dataset.Document{
		Metadata: dataset.Metadata{
			Title:       "Pérdida & degradación",
			Source:      "MINAM <geobosques>",
			LastUpdated: "2025-03-07",
			RowCount:    2,
			Checksum:    "abc123",
		},
		KPI: []dataset.Entry{
			{Name: "totalLoss", Result: aggregate.Result{Shape: aggregate.ShapeScalar, Number: 2100}},
			{Name: "maxLossRegion", Result: aggregate.Result{Shape: aggregate.ShapeScalar, Text: "LORETO", IsText: true}},
			{Name: "loretoShare", Result: aggregate.Result{Shape: aggregate.ShapeShare, Share: aggregate.Share{Value: 1500, Percent: 71.428571}}},
		},
		Rows: []record.Record{
			record.New(lossFields, "LORETO", int64(2024), 1500.0),
			record.New(lossFields, "UCAYALI", int64(2024), 600.126),
		},
		Derived: []dataset.Entry{
			{Name: "byRegion", Result: aggregate.Result{Shape: aggregate.ShapeList, Groups: []aggregate.Group{
				{Key: "LORETO", Value: 1500, Percent: &pct},
				{Key: "UCAYALI", Value: 600.126},
			}}},
		},
	}
}

const sampleJSON = `{
  "metadata": {
    "title": "Pérdida & degradación",
    "source": "MINAM <geobosques>",
    "lastUpdated": "2025-03-07",
    "rowCount": 2,
    "checksum": "abc123"
  },
  "kpi": {
    "totalLoss": 2100,
    "maxLossRegion": "LORETO",
    "loretoShare": {
      "value": 1500,
      "percent": 71.43
    }
  },
  "rows": [
    {
      "region": "LORETO",
      "year": 2024,
      "loss": 1500
    },
    {
      "region": "UCAYALI",
      "year": 2024,
      "loss": 600.13
    }
  ],
  "derived": {
    "byRegion": [
      {
        "key": "LORETO",
        "value": 1500,
        "percent": 71.43
      },
      {
        "key": "UCAYALI",
        "value": 600.13
      }
    ]
  }
}
`

func TestRender_Golden(t *testing.T) {
	t.Parallel()

	got, err := Render(sampleDocument(), Options{})
	require.NoError(t, err)
	assert.Equal(t, sampleJSON, string(got))
	assert.True(t, json.Valid(got))
}

func TestRender_ByteIdentical(t *testing.T) {
	t.Parallel()

	a, err := Render(sampleDocument(), Options{})
	require.NoError(t, err)
	b, err := Render(sampleDocument(), Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRender_Precision(t *testing.T) {
	t.Parallel()

	zero := 0
	got, err := Render(sampleDocument(), Options{
		Default:    &zero,
		Precision:  map[string]int{"loss": 3},
		Aggregates: map[string]int{"loretoShare": 4, "loss": 5},
	})
	require.NoError(t, err)

	var doc struct {
		KPI struct {
			LoretoShare struct {
				Percent float64 `json:"percent"`
			} `json:"loretoShare"`
		} `json:"kpi"`
		Rows []struct {
			Loss float64 `json:"loss"`
		} `json:"rows"`
		Derived struct {
			ByRegion []struct {
				Value float64 `json:"value"`
			} `json:"byRegion"`
		} `json:"derived"`
	}
	require.NoError(t, json.Unmarshal(got, &doc))

	assert.Equal(t, 71.4286, doc.KPI.LoretoShare.Percent)
	// The aggregate entry named "loss" does not reach the row field.
	assert.Equal(t, 600.126, doc.Rows[1].Loss)
	assert.Equal(t, 600.0, doc.Derived.ByRegion[1].Value)
}

func TestRender_EmptyDocument(t *testing.T) {
	t.Parallel()

	got, err := Render(dataset.Document{Metadata: dataset.Metadata{LastUpdated: "2025-01-01"}}, Options{})
	require.NoError(t, err)

	want := `{
  "metadata": {
    "title": "",
    "source": "",
    "lastUpdated": "2025-01-01",
    "rowCount": 0,
    "checksum": ""
  },
  "kpi": {},
  "rows": [],
  "derived": {}
}
`
	assert.Equal(t, want, string(got))
}

func TestRender_NonFinite(t *testing.T) {
	t.Parallel()

	doc := dataset.Document{KPI: []dataset.Entry{
		{Name: "bad", Result: aggregate.Result{Shape: aggregate.ShapeScalar, Number: math.Inf(1)}},
	}}
	_, err := Render(doc, Options{})
	require.Error(t, err)
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		v    float64
		prec int
		want string
	}{
		{2100, 2, "2100"},
		{12.3456, 2, "12.35"},
		{-12.3456, 2, "-12.35"},
		{0.5, 0, "1"},
		{-0.001, 2, "0"},
		{math.Copysign(0, -1), 2, "0"},
		{1e21, 2, "1000000000000000000000"},
		{0.1 + 0.2, 2, "0.3"},
	}
	for _, tc := range testCases {
		got, err := FormatNumber(tc.v, tc.prec)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "FormatNumber(%v, %d)", tc.v, tc.prec)
	}

	_, err := FormatNumber(math.NaN(), 2)
	assert.Error(t, err)
}

func TestEmit_WritesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "loss.json")

	require.NoError(t, Emit(sampleDocument(), path, Options{}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleJSON, string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestEmit_OverwritesPrevious(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "loss.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, Emit(sampleDocument(), path, Options{}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleJSON, string(got))
}

func TestEmit_FailureKeepsPreviousFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "loss.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	doc := sampleDocument()
	doc.KPI = append(doc.KPI, dataset.Entry{Name: "nan", Result: aggregate.Result{Shape: aggregate.ShapeScalar, Number: math.NaN()}})

	err := Emit(doc, path, Options{})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindDestination))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestEmit_UnwritableDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := Emit(sampleDocument(), filepath.Join(blocker, "out.json"), Options{})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindDestination))
}

func TestEmit_EndToEnd(t *testing.T) {
	t.Parallel()

	fields := record.Spec{
		{Target: "region", Aliases: []string{"REGIÓN"}, Type: record.FieldString},
		{Target: "loss2024", Aliases: []string{"PÉRDIDA 2024 (ha)"}, Type: record.FieldNumber},
	}
	aggs := []aggregate.Spec{
		{Name: "totalLoss2024", Kind: aggregate.KindSum, Field: "loss2024"},
		{Name: "byRegion", Kind: aggregate.KindGroupSum, Field: "loss2024", GroupBy: "region"},
		{Name: "maxLossRegion", Kind: aggregate.KindTopKey, Field: "loss2024", GroupBy: "region"},
	}
	header := []string{"REGIÓN", "PÉRDIDA 2024 (ha)"}
	rows := []record.RawRow{
		{Labels: header, Cells: []any{"LORETO", "1,500"}, Line: 2},
		{Labels: header, Cells: []any{"UCAYALI", "600"}, Line: 3},
	}
	clock := func() time.Time { return time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC) }

	doc, _, err := dataset.BuildDataset(rows, fields, aggs, dataset.Meta{Title: "t", Source: "s"}, dataset.WithClock(clock))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, Emit(doc, path, Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got struct {
		KPI struct {
			TotalLoss2024 float64 `json:"totalLoss2024"`
			MaxLossRegion string  `json:"maxLossRegion"`
		} `json:"kpi"`
		Derived struct {
			ByRegion []struct {
				Key   string  `json:"key"`
				Value float64 `json:"value"`
			} `json:"byRegion"`
		} `json:"derived"`
	}
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, 2100.0, got.KPI.TotalLoss2024)
	assert.Equal(t, "LORETO", got.KPI.MaxLossRegion)
	require.Len(t, got.Derived.ByRegion, 2)
	assert.Equal(t, "LORETO", got.Derived.ByRegion[0].Key)
	assert.Equal(t, 1500.0, got.Derived.ByRegion[0].Value)
}
