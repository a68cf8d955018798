// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package sqlexec runs a SQL request of a given kind, sending SELECTs
// through the query cache when asked to.
package sqlexec

import (
	"context"
	"fmt"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/cofgo/internal/connector"
	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/querycache"
	"github.com/staranto/cofgo/internal/table"
)

// Request kinds.
const (
	Select = "SELECT"
	Insert = "INSERT"
	Delete = "DELETE"
	Copy   = "COPY"
	Unload = "UNLOAD"
)

var kinds = []string{Select, Insert, Delete, Copy, Unload}

// Session is a connection able to read, write and load rows.
type Session interface {
	querycache.Conn
	Exec(ctx context.Context, sql string) (int64, error)
	Insert(ctx context.Context, name string, t *table.Table) (int64, error)
}

// Opener opens a Session.
type Opener func(ctx context.Context) (Session, error)

// Connector returns an Opener for a database configuration.
func Connector(cfg connector.Config) Opener {
	return func(ctx context.Context) (Session, error) {
		c, err := connector.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Request describes one statement to run.
type Request struct {
	SQL string
	// Kind is one of SELECT, INSERT, DELETE, COPY or UNLOAD. When empty it
	// is SELECT if SQL is set, else INSERT if Data is set.
	Kind string
	// Table is the table operated on. For a SELECT it defaults to the
	// first table after FROM.
	Table string
	Data  *table.Table

	Cache     bool
	CacheTime string
	CacheName string
}

// Result is the outcome of Run.
type Result struct {
	Kind         string
	Target       string
	Table        *table.Table
	RowsAffected int64
}

// Executor runs requests. Cache may be nil, which disables caching.
type Executor struct {
	Cache *querycache.Cache
	Open  Opener
}

// ResolveKind returns the kind req will run as.
func ResolveKind(req Request) (string, error) {
	switch {
	case req.Kind != "":
		k := strings.ToUpper(strings.TrimSpace(req.Kind))
		for _, known := range kinds {
			if k == known {
				return k, nil
			}
		}
		return "", errs.Config("unknown query kind %q, expected %s", req.Kind, strings.Join(kinds, ", "))
	case strings.TrimSpace(req.SQL) != "":
		return Select, nil
	case req.Data != nil:
		return Insert, nil
	default:
		return "", errs.Config("nothing to run, expected a query or data to insert")
	}
}

// FromTable returns the first word following FROM in sql, upper-cased.
func FromTable(sql string) string {
	s := strings.ToUpper(strings.NewReplacer("\n", " ", "\t", " ", "\r", " ").Replace(sql))
	_, after, ok := strings.Cut(s, "FROM ")
	if !ok {
		return ""
	}
	fields := strings.Fields(after)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[0], ";)")
}

// Run executes req. The session is always closed before Run returns.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	kind, err := ResolveKind(req)
	if err != nil {
		return nil, err
	}
	res := &Result{Kind: kind, Target: req.Table}

	switch kind {
	case Select:
		if res.Target == "" {
			res.Target = FromTable(req.SQL)
		} else if !mentions(req.SQL, res.Target) {
			return nil, errs.Config("table %q does not appear in the query", res.Target)
		}
		t, err := e.query(ctx, req)
		if err != nil {
			return nil, err
		}
		res.Table = t
		res.RowsAffected = int64(t.NumRows())

	case Insert:
		if req.Data == nil {
			return nil, fmt.Errorf("%w: %s", errs.ErrInsertSize, req.Table)
		}
		n, err := e.withSession(ctx, func(s Session) (int64, error) {
			return s.Insert(ctx, req.Table, req.Data)
		})
		if err != nil {
			return nil, err
		}
		res.RowsAffected = n

	default:
		if !mentions(req.SQL, req.Table) {
			return nil, errs.Config("table %q does not appear in the query", req.Table)
		}
		n, err := e.withSession(ctx, func(s Session) (int64, error) {
			return s.Exec(ctx, req.SQL)
		})
		if err != nil {
			return nil, err
		}
		res.RowsAffected = n
	}

	log.WithFields(log.Fields{"kind": kind, "target": res.Target, "rows": res.RowsAffected}).Debug("statement done")
	return res, nil
}

func (e *Executor) query(ctx context.Context, req Request) (*table.Table, error) {
	if req.Cache && e.Cache != nil {
		return e.Cache.Fetch(ctx, querycache.Request{
			Query:     req.SQL,
			Kind:      querycache.Read,
			Freshness: req.CacheTime,
			Name:      req.CacheName,
		}, e.factory())
	}

	var t *table.Table
	_, err := e.withSession(ctx, func(s Session) (int64, error) {
		var err error
		t, err = s.Query(ctx, req.SQL)
		return 0, err
	})
	return t, err
}

func (e *Executor) factory() querycache.Factory {
	return func(ctx context.Context) (querycache.Conn, error) {
		s, err := e.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (e *Executor) withSession(ctx context.Context, fn func(Session) (int64, error)) (int64, error) {
	s, err := e.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Warn("failed to close session")
		}
	}()
	return fn(s)
}

func mentions(sql, name string) bool {
	return strings.Contains(strings.ToUpper(sql), strings.ToUpper(name))
}
