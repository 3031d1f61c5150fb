package xlsx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"hermannm.dev/wrap"

	"observatory/internal/config"
	"observatory/internal/normalize"
	"observatory/internal/source"
)

func init() {
	source.Register("xlsx", Read)
}

// Read reads one sheet of the workbook at cfg.Path.
func Read(ctx context.Context, cfg config.Source) (*source.Table, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, wrap.Error(err, "failed to open workbook")
	}
	defer f.Close()

	return ReadFrom(ctx, f, cfg.Options)
}

// ReadFrom reads one sheet of a workbook from r.
//
// Options:
//   - sheet: sheet name, default the first sheet.
//   - skip_rows: rows discarded before the header (titles, notes).
//   - formatted: when true, cells are read as displayed (number formats
//     applied). The default reads stored values, so "1,500.00" shown in
//     the sheet arrives as "1500".
//   - header_map, trim_space: as for CSV.
//
// Rows are padded with nil up to the header width; rows with no content are
// skipped. Row lines are 1-based sheet row numbers.
func ReadFrom(ctx context.Context, r io.Reader, opt config.Options) (*source.Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, wrap.Error(err, "failed to parse workbook")
	}
	defer wb.Close()

	sheet := opt.String("sheet", "")
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	} else if idx, err := wb.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook has no sheet %q", sheet)
	}

	rows, err := wb.GetRows(sheet, excelize.Options{RawCellValue: !opt.Bool("formatted", false)})
	if err != nil {
		return nil, wrap.Errorf(err, "failed to read sheet %q", sheet)
	}

	start := opt.Int("skip_rows", 0)
	if start >= len(rows) {
		return &source.Table{}, nil
	}

	trim := opt.Bool("trim_space", true)
	table := source.NewTable(source.CleanHeader(rows[start], trim, opt.StringMap("header_map")))

	for i := start + 1; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cells := make([]any, len(table.Header))
		blank := true
		for j := 0; j < len(cells) && j < len(rows[i]); j++ {
			v := rows[i][j]
			if trim && normalize.HasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				continue
			}
			cells[j] = v
			blank = false
		}
		if blank {
			continue
		}
		table.Append(cells, i+1)
	}
	return table, nil
}
