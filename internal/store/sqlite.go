package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lapdcalls/internal/calls"
)

const (
	// SQLiteTable is the row-store table holding the canonical table.
	SQLiteTable = "calls_for_service"

	// SQLiteTimeLayout is how timestamps are stored in the row store.
	SQLiteTimeLayout = "2006-01-02 15:04:05"
)

var sqliteIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_primary_date ON calls_for_service(primary_date)`,
	`CREATE INDEX IF NOT EXISTS idx_year ON calls_for_service(year)`,
	`CREATE INDEX IF NOT EXISTS idx_call_type ON calls_for_service(call_type)`,
	`CREATE INDEX IF NOT EXISTS idx_area ON calls_for_service(area_occ)`,
}

// WriteSQLite writes the table into a fresh database at path, replacing any
// existing file only once the new one is complete.
func WriteSQLite(ctx context.Context, path string, t *calls.Table) error {
	return replaceFile(path, func(tmp string) error {
		return writeSQLite(ctx, tmp, t)
	})
}

func writeSQLite(ctx context.Context, path string, t *calls.Table) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	var defs, qCols []string
	for _, c := range calls.Columns {
		defs = append(defs, fmt.Sprintf("%q %s", c.Name, c.Type.SQLType()))
		qCols = append(qCols, fmt.Sprintf("%q", c.Name))
	}
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS "`+SQLiteTable+`"`); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE "`+SQLiteTable+`" (`+strings.Join(defs, ",")+`)`); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ph := strings.TrimRight(strings.Repeat("?,", len(calls.Columns)), ",")
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO "`+SQLiteTable+`" (`+strings.Join(qCols, ",")+`) VALUES (`+ph+`)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	args := make([]any, len(calls.Columns))
	for _, r := range t.Records {
		for i, c := range calls.Columns {
			args[i] = sqliteValue(r.Value(c.Name))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s: %w", r.IncidentNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, idx := range sqliteIndexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

func sqliteValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(SQLiteTimeLayout)
	default:
		return v
	}
}

// ParseSQLiteTime reads a timestamp stored by WriteSQLite.
func ParseSQLiteTime(s string) (time.Time, error) {
	return time.Parse(SQLiteTimeLayout, s)
}
