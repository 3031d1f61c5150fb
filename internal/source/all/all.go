// Package all registers every source reader and sql driver.
package all

import (
	_ "observatory/internal/source/csv"
	_ "observatory/internal/source/html"
	_ "observatory/internal/source/json"
	_ "observatory/internal/source/sql"
	_ "observatory/internal/source/sql/mssql"
	_ "observatory/internal/source/sql/mysql"
	_ "observatory/internal/source/sql/postgres"
	_ "observatory/internal/source/sql/sqlite"
	_ "observatory/internal/source/xlsx"
)
