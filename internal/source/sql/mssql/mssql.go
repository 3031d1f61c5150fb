// Package mssql registers the "mssql" sql source driver, backed by the
// "sqlserver" database/sql driver.
package mssql

import (
	"context"

	_ "github.com/microsoft/go-mssqldb"

	sqlsource "observatory/internal/source/sql"
)

func init() {
	sqlsource.RegisterDriver("mssql", Open)
}

func Open(ctx context.Context, dsn string) (sqlsource.Backend, error) {
	db, err := sqlsource.Connect(ctx, "sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	// A source read is one query; keep the pool small.
	db.X.SetMaxOpenConns(2)
	return db, nil
}
