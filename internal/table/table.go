// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package table holds the typed, column-oriented result of a query or a
// loaded data file.
package table

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/staranto/cofgo/internal/freshness"
)

// Kind is the value type shared by every cell of a column.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
	Time
	Bytes
)

var kindNames = map[Kind]string{
	String: "string",
	Int:    "int",
	Float:  "float",
	Bool:   "bool",
	Time:   "time",
	Bytes:  "bytes",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return String, fmt.Errorf("unknown column kind %q", s)
}

// Column describes one column of a Table.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// CacheInfo is attached to a Table returned by the query cache so callers
// can see where it came from without re-deriving paths.
type CacheInfo struct {
	Key       string
	DataPath  string
	QueryPath string
	// CreatedAt is the modification time of the data file.
	CreatedAt time.Time
	Freshness freshness.Window
	Hit       bool
}

// Table is a rectangular result set. A nil cell is NULL; other cells hold
// string, int64, float64, bool, time.Time (UTC) or []byte according to the
// column kind.
type Table struct {
	Columns []Column
	Rows    [][]any
	Cache   *CacheInfo
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Records returns the rows as maps keyed by column name.
func (t *Table) Records() []map[string]any {
	records := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			rec[c.Name] = row[i]
		}
		records = append(records, rec)
	}
	return records
}

// Equal reports whether two tables have the same columns and cells. Cache
// metadata is ignored.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.Columns) != len(o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for r := range t.Rows {
		if len(t.Rows[r]) != len(o.Rows[r]) {
			return false
		}
		for c := range t.Rows[r] {
			if !cellEqual(t.Rows[r][c], o.Rows[r][c]) {
				return false
			}
		}
	}
	return true
}

func cellEqual(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	default:
		return a == b
	}
}

// FromRows builds a Table from driver values. Cells are normalized, each
// column takes the kind of its first non-NULL cell, and a column holding
// more than one kind is turned into strings. Ints mixed with floats are
// widened to floats instead.
func FromRows(names []string, rows [][]any) *Table {
	t := &Table{Columns: make([]Column, len(names)), Rows: make([][]any, len(rows))}

	for r, row := range rows {
		norm := make([]any, len(names))
		for c := range names {
			if c < len(row) {
				norm[c] = Normalize(row[c])
			}
		}
		t.Rows[r] = norm
	}

	for c, name := range names {
		kind, mixed, seen := String, false, false
		numeric := true
		for _, row := range t.Rows {
			if row[c] == nil {
				continue
			}
			k := KindOf(row[c])
			numeric = numeric && (k == Int || k == Float)
			if !seen {
				kind, seen = k, true
			} else if k != kind {
				mixed = true
			}
		}
		switch {
		case mixed && numeric:
			kind = Float
			for _, row := range t.Rows {
				if n, ok := row[c].(int64); ok {
					row[c] = float64(n)
				}
			}
		case mixed:
			kind = String
			for _, row := range t.Rows {
				if row[c] != nil {
					row[c] = Format(row[c])
				}
			}
		}
		t.Columns[c] = Column{Name: name, Kind: kind}
	}

	return t
}

// Normalize maps a driver or decoder value onto one of the cell types.
func Normalize(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case string, int64, float64, bool:
		return n
	case time.Time:
		return n.UTC()
	case []byte:
		return bytes.Clone(n)
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return float64(n)
	case fmt.Stringer:
		return n.String()
	default:
		return fmt.Sprintf("%v", n)
	}
}

// KindOf returns the kind of a normalized cell.
func KindOf(v any) Kind {
	switch v.(type) {
	case int64:
		return Int
	case float64:
		return Float
	case bool:
		return Bool
	case time.Time:
		return Time
	case []byte:
		return Bytes
	default:
		return String
	}
}

// Format renders a cell the way text output and CSV show it. NULL is "".
func Format(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	case time.Time:
		return n.Format(time.RFC3339Nano)
	case []byte:
		return string(n)
	default:
		return fmt.Sprintf("%v", n)
	}
}

// InferStrings builds a Table from text cells, as read from CSV. Empty cells
// are NULL. A column whose remaining cells all parse as one of int, float,
// bool or RFC 3339 time gets that kind; otherwise it stays String.
func InferStrings(names []string, rows [][]string) *Table {
	t := &Table{Columns: make([]Column, len(names)), Rows: make([][]any, len(rows))}
	for r := range rows {
		t.Rows[r] = make([]any, len(names))
	}

	for c, name := range names {
		kind := inferColumn(rows, c)
		t.Columns[c] = Column{Name: name, Kind: kind}
		for r, row := range rows {
			if c >= len(row) || strings.TrimSpace(row[c]) == "" {
				continue
			}
			t.Rows[r][c] = parseAs(strings.TrimSpace(row[c]), kind)
		}
	}

	return t
}

func inferColumn(rows [][]string, c int) Kind {
	candidates := []Kind{Int, Float, Bool, Time}
	seen := false
	for _, row := range rows {
		if c >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[c])
		if cell == "" {
			continue
		}
		seen = true
		kept := candidates[:0]
		for _, k := range candidates {
			if parses(cell, k) {
				kept = append(kept, k)
			}
		}
		candidates = kept
		if len(candidates) == 0 {
			return String
		}
	}
	if !seen {
		return String
	}
	return candidates[0]
}

func parses(s string, k Kind) bool {
	var err error
	switch k {
	case Int:
		_, err = strconv.ParseInt(s, 10, 64)
	case Float:
		_, err = strconv.ParseFloat(s, 64)
	case Bool:
		_, err = strconv.ParseBool(s)
		if err == nil && (s == "0" || s == "1") {
			// 0/1 columns are integers.
			return false
		}
	case Time:
		_, err = time.Parse(time.RFC3339Nano, s)
	}
	return err == nil
}

func parseAs(s string, k Kind) any {
	switch k {
	case Int:
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	case Float:
		f, _ := strconv.ParseFloat(s, 64)
		return f
	case Bool:
		b, _ := strconv.ParseBool(s)
		return b
	case Time:
		ts, _ := time.Parse(time.RFC3339Nano, s)
		return ts.UTC()
	default:
		return s
	}
}
