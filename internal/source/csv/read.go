package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"hermannm.dev/wrap"

	"observatory/internal/config"
	"observatory/internal/normalize"
	"observatory/internal/source"
)

func init() {
	source.Register("csv", Read)
}

// Read reads the CSV file at cfg.Path.
func Read(ctx context.Context, cfg config.Source) (*source.Table, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, wrap.Error(err, "failed to open CSV file")
	}
	defer f.Close()

	return ReadFrom(ctx, f, cfg.Options)
}

// ReadFrom reads CSV from r.
//
// Options:
//   - comma: field delimiter, default ','. "auto" deduces it from the first
//     rows.
//   - encoding: utf-8 (default), utf-16, windows-1252 or iso-8859-1.
//   - skip_rows: records discarded before the header, e.g. report banners.
//   - has_header: default true. Without a header, columns are labelled
//     column_1, column_2, ...
//   - trim_space: trim edge whitespace of labels and cells, default true.
//   - lazy_quotes, fields_per_record: passed to encoding/csv.
//   - header_map: renames header labels before alias matching.
//   - skip_blank_rows: drop rows whose cells are all empty, default true.
//
// Empty cells become nil.
func ReadFrom(ctx context.Context, r io.Reader, opt config.Options) (*source.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, wrap.Error(err, "failed to read CSV input")
	}

	dec, err := decoderFor(opt.String("encoding", "utf-8"))
	if err != nil {
		return nil, err
	}
	if dec != nil {
		if raw, err = dec.Bytes(raw); err != nil {
			return nil, wrap.Error(err, "failed to decode CSV input")
		}
	}
	raw = bytes.TrimPrefix(raw, []byte("\uFEFF"))

	comma := opt.Rune("comma", ',')
	if strings.EqualFold(opt.String("comma", ""), "auto") {
		comma = DeduceDelimiter(raw, 20, DefaultDelimiters)
	}

	hasHeader := opt.Bool("has_header", true)
	trim := opt.Bool("trim_space", true)
	skipBlank := opt.Bool("skip_blank_rows", true)
	skipRows := opt.Int("skip_rows", 0)

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = comma
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	if n := opt.Int("fields_per_record", 0); n != 0 {
		cr.FieldsPerRecord = n
	} else {
		cr.FieldsPerRecord = -1
	}

	read := func() ([]string, int, error) {
		rec, err := cr.Read()
		if err != nil {
			return nil, 0, err
		}
		line, _ := cr.FieldPos(0)
		return rec, line, nil
	}

	for i := 0; i < skipRows; i++ {
		if _, _, err := read(); err != nil {
			if errors.Is(err, io.EOF) {
				return &source.Table{}, nil
			}
			return nil, wrap.Errorf(err, "failed to skip CSV banner row %d", i+1)
		}
	}

	var table *source.Table
	if hasHeader {
		hdr, _, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return &source.Table{}, nil
			}
			return nil, wrap.Error(err, "failed to read CSV header")
		}
		table = source.NewTable(source.CleanHeader(hdr, trim, opt.StringMap("header_map")))
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, line, err := read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrap.Error(err, "failed to parse CSV")
		}

		if table == nil {
			table = source.NewTable(positionalHeader(len(rec)))
		}

		cells, blank := toCells(rec, len(table.Header), trim)
		if blank && skipBlank {
			continue
		}
		table.Append(cells, line)
	}

	if table == nil {
		return &source.Table{}, nil
	}
	return table, nil
}

func toCells(rec []string, width int, trim bool) ([]any, bool) {
	cells := make([]any, width)
	blank := true
	for i := 0; i < width && i < len(rec); i++ {
		v := rec[i]
		if trim && normalize.HasEdgeSpace(v) {
			v = strings.TrimSpace(v)
		}
		if v == "" {
			continue
		}
		cells[i] = v
		blank = false
	}
	return cells, blank
}

func positionalHeader(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("column_%d", i+1)
	}
	return out
}

// decoderFor returns the decoder of a named charset, or nil for UTF-8.
func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported CSV encoding %q", name)
	}
}
