// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"strconv"
	"strings"

	"github.com/staranto/cofgo/internal/errs"
)

// Engine is the database flavor behind a connection. It is always chosen
// explicitly, never guessed from a host name.
type Engine int

const (
	Postgres Engine = iota + 1
	MySQL
	SQLite
)

// ParseEngine maps an engine name to an Engine. Redshift speaks the
// Postgres protocol and MariaDB the MySQL one.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg", "redshift":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return 0, errs.Config("unknown engine %q, expected postgres, mysql or sqlite", s)
	}
}

func (e Engine) String() string {
	switch e {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Driver is the database/sql driver name registered for e.
func (e Engine) Driver() string {
	switch e {
	case Postgres:
		return "pgx"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return ""
	}
}

// DefaultPort is the usual server port of e, 0 for SQLite.
func (e Engine) DefaultPort() int {
	switch e {
	case Postgres:
		return 5432 //nolint:mnd
	case MySQL:
		return 3306 //nolint:mnd
	default:
		return 0
	}
}

// Placeholder returns the bind parameter marker for the n-th (1-based)
// argument of a statement.
func (e Engine) Placeholder(n int) string {
	if e == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
