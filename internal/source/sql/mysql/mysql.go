// Package mysql registers the "mysql" sql source driver.
package mysql

import (
	"context"

	"github.com/go-sql-driver/mysql"
	"hermannm.dev/wrap"

	sqlsource "observatory/internal/source/sql"
)

func init() {
	sqlsource.RegisterDriver("mysql", Open)
}

// Open parses dsn and forces parseTime so DATE columns arrive as times.
func Open(ctx context.Context, dsn string) (sqlsource.Backend, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, wrap.Error(err, "invalid mysql dsn")
	}
	cfg.ParseTime = true
	db, err := sqlsource.Connect(ctx, "mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	return db, nil
}
