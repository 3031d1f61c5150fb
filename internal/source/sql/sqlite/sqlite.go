// Package sqlite registers the "sqlite" sql source driver (pure Go,
// modernc.org/sqlite). DSNs are file paths or "file:...?mode=ro" URIs.
package sqlite

import (
	"context"

	_ "modernc.org/sqlite"

	sqlsource "observatory/internal/source/sql"
)

func init() {
	sqlsource.RegisterDriver("sqlite", Open)
}

func Open(ctx context.Context, dsn string) (sqlsource.Backend, error) {
	db, err := sqlsource.Connect(ctx, "sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}
