// Package postgres registers the "postgres" sql source driver, backed by a
// pgx connection pool.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"hermannm.dev/wrap"

	"observatory/internal/source"
	sqlsource "observatory/internal/source/sql"
)

func init() {
	sqlsource.RegisterDriver("postgres", Open)
}

type Backend struct {
	pool *pgxpool.Pool
}

// Open creates a pool for dsn and checks connectivity.
func Open(ctx context.Context, dsn string) (sqlsource.Backend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, wrap.Error(err, "invalid postgres dsn")
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Backend{pool: pool}, nil
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

// Query reads the whole result set. Column labels are the result field
// names; numeric and date values are converted with sqlsource.Cell.
func (b *Backend) Query(ctx context.Context, query string) (*source.Table, error) {
	rows, err := b.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	table := source.NewTable(cols)

	line := 0
	for rows.Next() {
		line++
		vals, err := rows.Values()
		if err != nil {
			return nil, wrap.Errorf(err, "failed to scan row %d", line)
		}
		cells := make([]any, len(vals))
		for i, v := range vals {
			cells[i] = sqlsource.Cell(v)
		}
		table.Append(cells, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
