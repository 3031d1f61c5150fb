package html

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"hermannm.dev/wrap"

	"observatory/internal/config"
	"observatory/internal/source"
)

func init() {
	source.Register("html", Read)
}

// Read loads cfg.Path (a file or an http(s) URL) and reads one table from it.
// Option timeout_seconds bounds remote fetches, default 30.
func Read(ctx context.Context, cfg config.Source) (*source.Table, error) {
	timeout := time.Duration(cfg.Options.Int("timeout_seconds", 30)) * time.Second
	b, err := NewLoader(nil, timeout).Load(ctx, cfg.Path)
	if err != nil {
		return nil, wrap.Error(err, "failed to load HTML")
	}
	return ReadFrom(ctx, bytes.NewReader(b), cfg.Options)
}

// ReadFrom reads one table of an HTML document.
//
// Options:
//   - table_selector: CSS selector of candidate tables, default "table".
//   - index: which match to read, default 0.
//   - header_map, trim_space: as for CSV.
//
// The header is the last row of <thead>, or the first row when the table has
// no <thead>. Cell text has its whitespace collapsed the way a browser renders
// it. A cell spanning several columns fills the first with its text and the
// rest with nil; a spanning header cell repeats its label.
func ReadFrom(ctx context.Context, r io.Reader, opt config.Options) (*source.Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, wrap.Error(err, "failed to parse HTML")
	}

	selector := opt.String("table_selector", "table")
	index := opt.Int("index", 0)

	tables := doc.Find(selector)
	if index < 0 || index >= tables.Length() {
		return nil, fmt.Errorf("no table matches %q at index %d (found %d)", selector, index, tables.Length())
	}
	tbl := tables.Eq(index)

	// Rows of this table only, not of tables nested in its cells.
	rows := tbl.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(tbl)
	})
	if rows.Length() == 0 {
		return &source.Table{}, nil
	}

	headerIdx := 0
	if head := rows.FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.ParentsFiltered("thead").Length() > 0
	}); head.Length() > 0 {
		headerIdx = rows.IndexOfSelection(head.Last())
	}

	labels := cellTexts(rows.Eq(headerIdx), true)
	table := source.NewTable(source.CleanHeader(labels, opt.Bool("trim_space", true), opt.StringMap("header_map")))

	var walkErr error
	rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		if i <= headerIdx {
			return true
		}
		if err := ctx.Err(); err != nil {
			walkErr = err
			return false
		}

		texts := cellTexts(tr, false)
		cells := make([]any, len(table.Header))
		blank := true
		for j := 0; j < len(cells) && j < len(texts); j++ {
			if texts[j] == "" {
				continue
			}
			cells[j] = texts[j]
			blank = false
		}
		if !blank {
			table.Append(cells, i+1)
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return table, nil
}

// cellTexts returns the text of each th/td of tr, expanded by colspan.
func cellTexts(tr *goquery.Selection, repeatSpan bool) []string {
	var out []string
	tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
		text := strings.Join(strings.Fields(cell.Text()), " ")
		span := 1
		if v, ok := cell.Attr("colspan"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 1 {
				span = n
			}
		}
		out = append(out, text)
		for k := 1; k < span; k++ {
			if repeatSpan {
				out = append(out, text)
			} else {
				out = append(out, "")
			}
		}
	})
	return out
}
