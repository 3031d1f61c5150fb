// Package source reads tabular inputs into raw rows. Readers live in
// subpackages and register themselves by kind from init(); import
// observatory/internal/source/all to get every reader.
package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"observatory/internal/config"
	"observatory/internal/fault"
	"observatory/internal/normalize"
	"observatory/internal/record"
)

// Table is a fully read source: the header and the rows in source order.
// Every row shares Header as its label slice.
type Table struct {
	Header []string
	Rows   []record.RawRow
}

// NewTable returns an empty table with the given header.
func NewTable(header []string) *Table {
	return &Table{Header: header}
}

// Append adds a row read from the given 1-based source line.
func (t *Table) Append(cells []any, line int) {
	t.Rows = append(t.Rows, record.RawRow{Labels: t.Header, Cells: cells, Line: line})
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Factory reads a whole source described by cfg.
type Factory func(ctx context.Context, cfg config.Source) (*Table, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a reader available under kind.
//
// When to use:
//   - Call Register from an init() function in a reader package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("source: Register called with empty kind")
	}
	if f == nil {
		panic("source: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("source: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Read reads the source described by cfg with the registered reader.
//
// Errors:
//   - Every failure is a source fault carrying cfg.Label(): unknown kind,
//     unreadable or unparsable input, and an empty source when
//     cfg.RequireRows is set.
func Read(ctx context.Context, cfg config.Source) (*Table, error) {
	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fault.Source(cfg.Label(), fmt.Errorf("unsupported source kind %q", cfg.Kind))
	}

	t, err := f(ctx, cfg)
	if err != nil {
		return nil, fault.Source(cfg.Label(), err)
	}
	if t == nil {
		t = &Table{}
	}
	if cfg.RequireRows && t.Len() == 0 {
		return nil, fault.Source(cfg.Label(), fmt.Errorf("source has no data rows"))
	}
	return t, nil
}

// CleanHeader prepares raw header labels: the first label loses a UTF-8 BOM,
// labels found in rename are replaced, and the remaining labels with edge
// whitespace are trimmed when trim is set. A rename entry matches either the
// untrimmed or the trimmed label. Alias matching stays exact, so nothing else
// about a label changes.
func CleanHeader(raw []string, trim bool, rename map[string]string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if mapped, ok := rename[h]; ok {
			out[i] = mapped
			continue
		}
		if trim && normalize.HasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		if mapped, ok := rename[h]; ok {
			h = mapped
		}
		out[i] = h
	}
	return out
}
