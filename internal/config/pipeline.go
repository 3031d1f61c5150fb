package config

import (
	"observatory/internal/aggregate"
	"observatory/internal/normalize"
	"observatory/internal/record"
)

// Pipeline is one pipeline file: a batch of independent datasets.
type Pipeline struct {
	Job      string        `json:"job"`
	Output   Output        `json:"output"`
	Runtime  RuntimeConfig `json:"runtime"`
	Datasets []Dataset     `json:"datasets"`
}

type Output struct {
	// Dir is the root every dataset output path is resolved against.
	Dir string `json:"dir"`

	// Precision is the default number of decimals for numbers that have no
	// per-field setting. Nil means 2.
	Precision *int `json:"precision,omitempty"`
}

// RuntimeConfig controls batch execution.
type RuntimeConfig struct {
	// Workers is the number of datasets processed at once. 0 means 1.
	Workers int `json:"workers"`

	// WatchDebounceMillis is how long watch mode waits after the last change
	// to a source before re-running its dataset. 0 means 500.
	WatchDebounceMillis int `json:"watch_debounce_ms"`
}

// Dataset is one source-to-JSON unit.
type Dataset struct {
	Name string `json:"name"`

	// Title and Attribution are copied to the document metadata.
	Title       string `json:"title"`
	Attribution string `json:"attribution"`

	Source Source `json:"source"`

	Fields     record.Spec      `json:"fields"`
	Aggregates []aggregate.Spec `json:"aggregates"`

	// Output is the document path relative to Pipeline.Output.Dir.
	Output string `json:"output"`

	// Decimal is the decimal separator of numeric cells: "." (default) or ",".
	Decimal string `json:"decimal,omitempty"`

	// Markers are stripped from both ends of text cells. Nil means "*".
	Markers *string `json:"markers,omitempty"`

	// DropIncomplete removes rows that lack a required field from both the
	// document rows and the aggregates.
	DropIncomplete bool `json:"drop_incomplete,omitempty"`

	// Precision overrides the number of decimals per field or aggregate name.
	Precision map[string]int `json:"precision,omitempty"`
}

// MarkerSet returns the effective marker characters.
func (d Dataset) MarkerSet() string {
	if d.Markers == nil {
		return "*"
	}
	return *d.Markers
}

// Normalizer returns the cell coercion rules of the dataset.
func (d Dataset) Normalizer() normalize.Normalizer {
	return normalize.Normalizer{Locale: normalize.LocaleFor(d.Decimal), Markers: d.MarkerSet()}
}

// Source names where a dataset's rows come from.
type Source struct {
	// Kind selects the reader: csv, json, xlsx, html or sql.
	Kind string `json:"kind"`

	// Path is the source file for file kinds.
	Path string `json:"path,omitempty"`

	// Driver, DSN and Query configure the sql kind. DSN is env-expanded.
	Driver string `json:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty"`
	Query  string `json:"query,omitempty"`

	// RequireRows makes an empty source a source error.
	RequireRows bool `json:"require_rows,omitempty"`

	Options Options `json:"options,omitempty"`
}

// Label identifies the source in errors and logs.
func (s Source) Label() string {
	if s.Path != "" {
		return s.Path
	}
	if s.Driver != "" {
		return s.Driver + " query"
	}
	return s.Kind
}
