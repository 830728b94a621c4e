// Package rdb implements store.MailAccountStorage with hand-written SQL
// against SQLite or PostgreSQL.
package rdb

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailacct/internal/store"
)

var log = logrus.WithField("component", "rdb")

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB holding the mail account tables.
type DB struct {
	db      *sql.DB
	dialect dialect

	cryptor   store.Cryptor
	ids       IDGenerator
	folders   store.FolderNameProvider
	aliases   store.AliasProvider
	pop3      store.POP3FolderRemover
	resolver  store.Resolver
	listeners []store.DeleteListener
}

var _ store.MailAccountStorage = (*DB)(nil)

// Option configures a DB.
type Option func(*DB)

// WithFolderNames sets the provider for missing standard folder names.
func WithFolderNames(p store.FolderNameProvider) Option {
	return func(s *DB) { s.folders = p }
}

// WithAliases sets the provider for the default account's addresses property.
func WithAliases(p store.AliasProvider) Option {
	return func(s *DB) { s.aliases = p }
}

// WithPOP3FolderRemover sets the collaborator removing POP3 backup folders.
func WithPOP3FolderRemover(r store.POP3FolderRemover) Option {
	return func(s *DB) { s.pop3 = r }
}

// WithResolver sets the resolver used for host name comparison.
func WithResolver(r store.Resolver) Option {
	return func(s *DB) { s.resolver = r }
}

// WithIDGenerator replaces the sequence table based ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *DB) { s.ids = g }
}

// WithDeleteListener adds a listener notified around account deletion.
func WithDeleteListener(l store.DeleteListener) Option {
	return func(s *DB) { s.listeners = append(s.listeners, l) }
}

// New opens a SQLite database at the given DSN and runs migrations.
// Use ":memory:" for an in-memory database.
func New(dsn string, cryptor store.Cryptor, opts ...Option) (*DB, error) {
	return Open(DriverSQLite, dsn, cryptor, opts...)
}

// Open opens a database with the given driver and runs migrations.
func Open(driver, dsn string, cryptor store.Cryptor, opts ...Option) (*DB, error) {
	var d dialect
	connStr := dsn
	switch driver {
	case DriverSQLite:
		d = dialectSQLite
		if dsn != ":memory:" {
			connStr = dsn + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
		} else {
			connStr = ":memory:?_foreign_keys=on"
		}
	case DriverPostgres:
		d = dialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if cryptor == nil {
		return nil, fmt.Errorf("no password cryptor configured")
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite && dsn == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &DB{
		db:       db,
		dialect:  d,
		cryptor:  cryptor,
		ids:      sequenceIDGenerator{dialect: d},
		folders:  store.NewDefaultFolderNames(),
		resolver: net.DefaultResolver,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *DB) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

// BeginTx starts a transaction that can be handed to the *Tx methods.
func (s *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, sqlError(err, "failed to begin transaction")
	}
	return tx, nil
}

func (s *DB) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *DB) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *DB) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// inTx runs fn in a transaction that is committed if fn succeeds and rolled
// back otherwise.
func (s *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return sqlError(err, "failed to commit transaction")
	}
	return nil
}

// InvalidateMailAccount is a no-op; there is nothing cached at this layer.
func (s *DB) InvalidateMailAccount(ctx context.Context, id, userID, contextID int) error {
	return nil
}

// InvalidateMailAccounts is a no-op; there is nothing cached at this layer.
func (s *DB) InvalidateMailAccounts(ctx context.Context, userID, contextID int) error {
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
