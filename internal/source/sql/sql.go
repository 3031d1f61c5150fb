// Package sql reads a table from the result set of a SQL query. Database
// backends register themselves by driver name; import
// observatory/internal/source/all to get all of them.
package sql

import (
	"context"
	"database/sql/driver"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"hermannm.dev/wrap"

	"observatory/internal/config"
	"observatory/internal/source"
)

// Backend runs read-only queries against one database.
type Backend interface {
	// Query runs query and returns the result set as a table.
	Query(ctx context.Context, query string) (*source.Table, error)
	Close() error
}

// Opener connects to a database. dsn is already env-expanded.
type Opener func(ctx context.Context, dsn string) (Backend, error)

var (
	mu      sync.RWMutex
	openers = map[string]Opener{}
)

func init() {
	source.Register("sql", Read)
}

// RegisterDriver makes a backend available under name.
//
// Panics:
//   - If name is empty, open is nil, or name is already registered.
func RegisterDriver(name string, open Opener) {
	mu.Lock()
	defer mu.Unlock()

	if name == "" {
		panic("sql source: RegisterDriver called with empty name")
	}
	if open == nil {
		panic("sql source: RegisterDriver called with nil opener")
	}
	if _, exists := openers[name]; exists {
		panic(fmt.Sprintf("sql source: driver already registered for name=%q", name))
	}
	openers[name] = open
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Read connects with cfg.Driver, runs cfg.Query and closes the connection.
// Option query_timeout_seconds bounds the query, default 60.
func Read(ctx context.Context, cfg config.Source) (*source.Table, error) {
	mu.RLock()
	open := openers[cfg.Driver]
	mu.RUnlock()

	if open == nil {
		return nil, fmt.Errorf("unsupported sql driver %q (registered: %v)", cfg.Driver, Drivers())
	}

	if secs := cfg.Options.Int("query_timeout_seconds", 60); secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	b, err := open(ctx, os.ExpandEnv(cfg.DSN))
	if err != nil {
		return nil, wrap.Errorf(err, "failed to connect with driver '%s'", cfg.Driver)
	}
	defer b.Close()

	t, err := b.Query(ctx, cfg.Query)
	if err != nil {
		return nil, wrap.Error(err, "query failed")
	}
	return t, nil
}

// DB adapts a database/sql connection opened through sqlx.
type DB struct {
	X *sqlx.DB
}

// Connect opens and pings a database/sql connection.
func Connect(ctx context.Context, driverName, dsn string) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{X: db}, nil
}

func (d *DB) Close() error { return d.X.Close() }

// Query scans every row of the result set. Column labels come from the
// result set in select order.
func (d *DB) Query(ctx context.Context, query string) (*source.Table, error) {
	rows, err := d.X.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	table := source.NewTable(cols)

	line := 0
	for rows.Next() {
		line++
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, wrap.Errorf(err, "failed to scan row %d", line)
		}
		cells := make([]any, len(vals))
		for i, v := range vals {
			cells[i] = Cell(v)
		}
		table.Append(cells, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// Cell converts a driver value to a raw cell: []byte becomes string, times
// become ISO dates (or RFC 3339 when they carry a time of day), and
// driver.Valuer types such as decimal wrappers are unwrapped.
func Cell(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return nil
		}
		if _, again := dv.(driver.Valuer); again {
			return fmt.Sprint(dv)
		}
		return Cell(dv)
	default:
		return v
	}
}
