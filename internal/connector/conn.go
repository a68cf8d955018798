// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package connector opens database connections for the supported engines
// and turns result sets into tables.
package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "modernc.org/sqlite"             // sqlite driver

	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/querycache"
	"github.com/staranto/cofgo/internal/table"
)

// BatchSize is the number of rows committed per insert transaction.
const BatchSize = 10000

// Conn is an open database connection.
type Conn struct {
	db     *sql.DB
	engine Engine
	tunnel *Tunnel
}

// Open connects to the database described by cfg and pings it. Failures
// wrap errs.ErrConnection.
func Open(ctx context.Context, cfg Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var tunnel *Tunnel
	if cfg.Connection == SSH {
		remoteHost := cfg.SSH.RemoteHost
		if remoteHost == "" {
			remoteHost = "localhost"
		}
		remote := net.JoinHostPort(remoteHost, strconv.Itoa(cfg.port()))
		t, err := OpenTunnel(jumpAddr(cfg.Host, cfg.SSH.Port), remote, cfg.SSH)
		if err != nil {
			return nil, err
		}
		tunnel = t
		host, port := t.Addr()
		cfg.Host, cfg.Port = host, port
	}

	db, err := sql.Open(cfg.Engine.Driver(), cfg.DSN())
	if err == nil {
		err = db.PingContext(ctx)
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		if tunnel != nil {
			_ = tunnel.Close()
		}
		return nil, fmt.Errorf("%w: %s %s: %w", errs.ErrConnection, cfg.Engine, target(cfg), err)
	}

	log.Debugf("connected to %s %s", cfg.Engine, target(cfg))
	return &Conn{db: db, engine: cfg.Engine, tunnel: tunnel}, nil
}

// Factory returns a querycache.Factory opening connections with cfg.
func Factory(cfg Config) querycache.Factory {
	return func(ctx context.Context) (querycache.Conn, error) {
		c, err := Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Engine reports the engine of the connection.
func (c *Conn) Engine() Engine { return c.engine }

// DB exposes the underlying handle.
func (c *Conn) DB() *sql.DB { return c.db }

// Close closes the connection and its tunnel, if any.
func (c *Conn) Close() error {
	err := c.db.Close()
	if c.tunnel != nil {
		err = errors.Join(err, c.tunnel.Close())
	}
	return err
}

// Query runs q and reads the whole result into a table.
func (c *Conn) Query(ctx context.Context, q string) (*table.Table, error) {
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	names := make([]string, len(types))
	binary := make([]bool, len(types))
	for i, ct := range types {
		names[i] = ct.Name()
		binary[i] = isBinary(ct.DatabaseTypeName())
	}

	var out [][]any
	for rows.Next() {
		cells := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range cells {
			// Text often arrives as []byte.
			if b, ok := v.([]byte); ok && !binary[i] {
				cells[i] = string(b)
			}
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	t := table.FromRows(names, out)
	for i := range t.Columns {
		if binary[i] && t.Columns[i].Kind == table.String && allNil(out, i) {
			t.Columns[i].Kind = table.Bytes
		}
	}
	return t, nil
}

// Exec runs a statement returning no rows and reports the rows affected.
func (c *Conn) Exec(ctx context.Context, q string) (int64, error) {
	res, err := c.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr
	}
	return n, nil
}

// Insert appends the rows of t to the table name. Rows are sent in batches
// of BatchSize, each in its own transaction.
func (c *Conn) Insert(ctx context.Context, name string, t *table.Table) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, errs.Config("destination table not defined")
	}
	if t.NumRows() == 0 {
		return 0, fmt.Errorf("%w: %s", errs.ErrInsertSize, name)
	}

	stmt := insertStatement(c.engine, name, t.Names())

	var total int64
	for start := 0; start < len(t.Rows); start += BatchSize {
		end := min(start+BatchSize, len(t.Rows))
		n, err := c.insertBatch(ctx, stmt, t.Rows[start:end])
		total += n
		if err != nil {
			return total, err
		}
		log.Debugf("inserted rows %d-%d into %s", start+1, end, name)
	}
	return total, nil
}

func (c *Conn) insertBatch(ctx context.Context, stmt string, rows [][]any) (int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ps, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer ps.Close()

	for _, row := range rows {
		if _, err := ps.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("insert failed: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit insert: %w", err)
	}
	return int64(len(rows)), nil
}

func insertStatement(e Engine, name string, cols []string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = e.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(cols, ", "), strings.Join(ph, ", "))
}

func isBinary(dbType string) bool {
	t := strings.ToUpper(dbType)
	return strings.Contains(t, "BLOB") || strings.Contains(t, "BINARY") || t == "BYTEA"
}

func allNil(rows [][]any, c int) bool {
	for _, r := range rows {
		if r[c] != nil {
			return false
		}
	}
	return true
}

func target(cfg Config) string {
	if cfg.Engine == SQLite {
		return cfg.Database
	}
	return cfg.Addr()
}
