package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store wraps the database handle together with the dialect of the
// selected backend. Handlers write queries with ? placeholders and go
// through Store, so every backend difference (placeholders, insert id
// retrieval, catalog introspection, error classification) lives behind
// the dialect instead of being branched on in each handler.
type Store struct {
	DB      *sql.DB
	dialect dialect
}

type dialect interface {
	name() string
	rebind(query string) string
	insertID(ctx context.Context, db *sql.DB, query string, args ...any) (int64, error)
	tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error)
	retryable(err error) bool
	uniqueViolation(err error) bool
	pkColumn() string
	timestampDefault() string
}

// openStore selects the backend from the environment: a DATABASE_URL
// picks Postgres, otherwise an embedded SQLite file is used.
func openStore(ctx context.Context, databaseURL, sqlitePath string) (*Store, error) {
	if databaseURL != "" {
		db, err := sql.Open("pgx", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return &Store{DB: db, dialect: postgresDialect{}}, nil
	}

	// WAL plus a 60s busy timeout keeps concurrent request handlers from
	// tripping over each other on a single database file.
	dsn := sqlitePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{DB: db, dialect: sqliteDialect{}}, nil
}

func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.DB.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.DB.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.DB.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// InsertID runs an INSERT (written without RETURNING) and reports the
// generated id the way the backend exposes it.
func (s *Store) InsertID(ctx context.Context, query string, args ...any) (int64, error) {
	return s.dialect.insertID(ctx, s.DB, query, args...)
}

// TableColumns lists the column names a table currently has.
func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	return s.dialect.tableColumns(ctx, s.DB, table)
}

// rebindPositional rewrites ? placeholders to $1..$n, leaving anything
// inside single-quoted literals alone.
func rebindPositional(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			fmt.Fprintf(&b, "$%d", n)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// retryableMessage is the fallback classification for drivers or error
// paths that do not surface a typed code.
func retryableMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "deadlock")
}

type postgresDialect struct{}

func (postgresDialect) name() string { return "postgres" }

func (postgresDialect) rebind(query string) string { return rebindPositional(query) }

func (d postgresDialect) insertID(ctx context.Context, db *sql.DB, query string, args ...any) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, d.rebind(query)+" RETURNING id", args...).Scan(&id)
	return id, err
}

func (postgresDialect) tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (postgresDialect) retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected, lock_not_available
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}
	return retryableMessage(err)
}

func (postgresDialect) uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}

func (postgresDialect) pkColumn() string { return "SERIAL PRIMARY KEY" }

func (postgresDialect) timestampDefault() string { return "DEFAULT NOW()" }

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) insertID(ctx context.Context, db *sql.DB, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (sqliteDialect) tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (sqliteDialect) retryable(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return retryableMessage(err)
}

func (sqliteDialect) uniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT ||
			code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

func (sqliteDialect) pkColumn() string { return "INTEGER PRIMARY KEY" }

func (sqliteDialect) timestampDefault() string { return "DEFAULT CURRENT_TIMESTAMP" }
