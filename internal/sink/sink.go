// Package sink provides the destination database for synced workforce data.
//
// The sink is an embedded SQLite database (ncruces/go-sqlite3) opened in WAL
// mode so dashboards and ad-hoc queries can read while a sync run writes.
// It deliberately exposes only the tabular primitives the sync engine needs:
// existence checks, table creation from rows, bulk appends, and key-matched
// deletes, all of which can run inside a single transaction.
//
// Schemas are inferred from the rows themselves; there are no migrations.
// Every synced entity lands in its own table whose shape follows the API
// payloads of the day.
package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Row is one flat record destined for a table: column name to scalar value.
// Values must be SQLite-representable scalars; nested maps and slices are
// stored as JSON text.
type Row map[string]any

// DB wraps the SQLite connection with the tabular-write primitives used by
// the sync engine.
type DB struct {
	conn *sql.DB
	path string
}

// insertChunkRows bounds the number of rows per INSERT statement so the
// bound-parameter count stays well under SQLite's variable limit.
const insertChunkRows = 200

// Open creates or opens the sink database at path.
//
// The parent directory is created if needed. WAL mode and a busy timeout are
// enabled so concurrent readers don't fail while a sync transaction commits.
// The caller must Close the returned DB.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// TableExists reports whether a table with the given name exists.
func (db *DB) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
	if err := db.conn.QueryRowContext(ctx, query, name).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return count > 0, nil
}

// DropTableIfExists removes a table outside of any transaction. Used to
// clean up scratch tables on failure paths.
func (db *DB) DropTableIfExists(ctx context.Context, name string) error {
	if _, err := db.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	return nil
}

// InTx runs fn inside a single transaction, committing on nil return and
// rolling back otherwise.
func (db *DB) InTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Tx exposes the sink's write primitives inside one transaction.
type Tx struct {
	tx *sql.Tx
}

// CreateFromRows creates table name with columns cols (types inferred from
// the row values) and inserts all rows. keys, when non-empty, become the
// table's primary key. Returns the number of rows inserted.
func (t *Tx) CreateFromRows(ctx context.Context, name string, cols, keys []string, rows []Row) (int, error) {
	stmt := createTableSQL(name, cols, keys, rows)
	if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return t.AppendRows(ctx, name, cols, rows)
}

// AppendRows inserts all rows into an existing table, in order. Returns the
// number of rows inserted.
func (t *Tx) AppendRows(ctx context.Context, name string, cols []string, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ",
		quoteIdent(name), strings.Join(quoted, ", "))
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	written := 0
	for start := 0; start < len(rows); start += insertChunkRows {
		end := min(start+insertChunkRows, len(rows))
		chunk := rows[start:end]

		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(cols))
		for i, row := range chunk {
			values[i] = placeholder
			for _, c := range cols {
				args = append(args, bindValue(row[c]))
			}
		}

		if _, err := t.tx.ExecContext(ctx, prefix+strings.Join(values, ", "), args...); err != nil {
			return written, fmt.Errorf("failed to insert into %s: %w", name, err)
		}
		written += len(chunk)
	}
	return written, nil
}

// DeleteWhereKeyIn deletes every row of dest whose keyCol value appears in
// the same column of src.
func (t *Tx) DeleteWhereKeyIn(ctx context.Context, dest, keyCol, src string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (SELECT %s FROM %s)",
		quoteIdent(dest), quoteIdent(keyCol), quoteIdent(keyCol), quoteIdent(src))
	if _, err := t.tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to delete matched keys from %s: %w", dest, err)
	}
	return nil
}

// DropTable removes a table within the transaction.
func (t *Tx) DropTable(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(name)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	return nil
}

func createTableSQL(name string, cols, keys []string, rows []Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (", quoteIdent(name))
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", quoteIdent(c), columnType(c, rows))
	}
	if len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, k := range keys {
			quoted[i] = quoteIdent(k)
		}
		fmt.Fprintf(&b, ", PRIMARY KEY (%s)", strings.Join(quoted, ", "))
	}
	b.WriteString(")")
	return b.String()
}

// columnType infers a column's affinity from the first non-nil value seen.
// Columns with no values default to TEXT.
func columnType(col string, rows []Row) string {
	for _, row := range rows {
		switch v := row[col].(type) {
		case nil:
			continue
		case bool, int, int64:
			return "INTEGER"
		case float64:
			if v == float64(int64(v)) {
				return "INTEGER"
			}
			return "REAL"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

// bindValue converts a row value into a driver-friendly form. Booleans
// become 0/1, integral floats become integers, and any remaining composite
// value is stored as JSON text.
func bindValue(v any) any {
	switch val := v.(type) {
	case nil, string, int, int64, float64, []byte:
		if f, ok := val.(float64); ok && f == float64(int64(f)) {
			return int64(f)
		}
		return val
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return val.UTC().Format("2006-01-02 15:04:05")
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(encoded)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
