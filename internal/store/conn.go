package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/security"
	_ "modernc.org/sqlite"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func newID() string {
	return security.RandomStringWithAlphabet(15, idAlphabet)
}

// Conn is the datastore the stores run against. Transaction hands fn a
// builder bound to a single transaction; every statement issued through it
// commits or rolls back together.
type Conn interface {
	Builder() dbx.Builder
	Transaction(ctx context.Context, fn func(tx dbx.Builder) error) error
}

// AppConn runs statements on the PocketBase application database.
type AppConn struct {
	app core.App
}

func NewAppConn(app core.App) *AppConn {
	return &AppConn{app: app}
}

// Builder returns the nonconcurrent pool so writes outside a transaction
// never race the PocketBase writer for the SQLite lock.
func (c *AppConn) Builder() dbx.Builder {
	return c.app.NonconcurrentDB()
}

func (c *AppConn) Transaction(ctx context.Context, fn func(tx dbx.Builder) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.app.RunInTransaction(func(txApp core.App) error {
		return fn(txApp.NonconcurrentDB())
	})
}

// SQLConn runs statements on a plain dbx handle. It backs the standalone
// SQLite database used by tests and tooling.
type SQLConn struct {
	db *dbx.DB
}

func NewSQLConn(db *dbx.DB) *SQLConn {
	return &SQLConn{db: db}
}

func (c *SQLConn) Builder() dbx.Builder {
	return c.db
}

func (c *SQLConn) Transaction(ctx context.Context, fn func(tx dbx.Builder) error) error {
	return c.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		return fn(tx)
	})
}

func (c *SQLConn) Close() error {
	return c.db.Close()
}

// OpenSQLite opens dsn with the pure Go driver and creates the tables the
// stores need. A single open connection serializes writers the same way the
// PocketBase nonconcurrent pool does.
func OpenSQLite(ctx context.Context, dsn string) (*SQLConn, error) {
	db, err := dbx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.DB().SetMaxOpenConns(1)

	conn := NewSQLConn(db)
	if err := EnsureSchema(ctx, conn.Builder()); err != nil {
		db.Close()
		return nil, err
	}
	return conn, nil
}

// schema mirrors the column layout the PocketBase migrations produce.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY NOT NULL,
		name TEXT DEFAULT '' NOT NULL,
		mobile TEXT DEFAULT '' NOT NULL,
		role TEXT DEFAULT '' NOT NULL,
		is_active BOOLEAN DEFAULT FALSE NOT NULL,
		partner_code TEXT DEFAULT '' NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_partner_code ON users (partner_code) WHERE partner_code != ''`,
	`CREATE TABLE IF NOT EXISTS ticket_tiers (
		id TEXT PRIMARY KEY NOT NULL,
		name TEXT DEFAULT '' NOT NULL,
		price NUMERIC DEFAULT 0 NOT NULL,
		remaining_qty NUMERIC DEFAULT 0 NOT NULL,
		initial_qty NUMERIC DEFAULT 0 NOT NULL,
		created TEXT DEFAULT '' NOT NULL,
		updated TEXT DEFAULT '' NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY NOT NULL,
		partner TEXT DEFAULT '' NOT NULL,
		status TEXT DEFAULT '' NOT NULL,
		buyer_name TEXT DEFAULT '' NOT NULL,
		buyer_mobile TEXT DEFAULT '' NOT NULL,
		reference_last4 TEXT DEFAULT '' NOT NULL,
		screenshot_path TEXT DEFAULT '' NOT NULL,
		tickets_data JSON DEFAULT NULL,
		amount NUMERIC DEFAULT 0 NOT NULL,
		rejection_reason TEXT DEFAULT '' NOT NULL,
		submitted_at TEXT DEFAULT '' NOT NULL,
		approved_at TEXT DEFAULT '' NOT NULL,
		created TEXT DEFAULT '' NOT NULL,
		updated TEXT DEFAULT '' NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_status ON sales (status)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_partner ON sales (partner, submitted_at)`,
	`CREATE TABLE IF NOT EXISTS webhook_logs (
		id TEXT PRIMARY KEY NOT NULL,
		sale TEXT DEFAULT '' NOT NULL,
		status TEXT DEFAULT '' NOT NULL,
		attempts NUMERIC DEFAULT 0 NOT NULL,
		last_attempt_at TEXT DEFAULT '' NOT NULL,
		response_status NUMERIC DEFAULT 0 NOT NULL,
		response_body TEXT DEFAULT '' NOT NULL,
		error_message TEXT DEFAULT '' NOT NULL,
		created TEXT DEFAULT '' NOT NULL,
		updated TEXT DEFAULT '' NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_logs_sale ON webhook_logs (sale)`,
}

func EnsureSchema(ctx context.Context, b dbx.Builder) error {
	for _, stmt := range schema {
		if _, err := b.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
