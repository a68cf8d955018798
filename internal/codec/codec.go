// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package codec persists tables as Parquet files. Column kinds survive the
// round trip, including timestamps.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/table"
)

// Extension is the file extension of encoded tables.
const Extension = ".parquet"

// columnsKey is the key/value metadata entry holding column order and kinds.
const columnsKey = "cof.columns"

const readBatch = 256

// storedColumn is a column as kept in the columnsKey metadata. Field is the
// parquet field holding it, which differs from Name when names repeat.
type storedColumn struct {
	Name  string     `json:"name"`
	Kind  table.Kind `json:"kind"`
	Field string     `json:"field,omitempty"`
}

// Encode writes t to w.
func Encode(w io.Writer, t *table.Table) error {
	names := uniqueNames(t.Columns)

	group := parquet.Group{}
	for i, c := range t.Columns {
		group[names[i]] = parquet.Optional(node(c.Kind))
	}
	schema := parquet.NewSchema("table", group)

	// Group fields are laid out in name order; leaf[i] is the leaf column of
	// table column i.
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	leafOf := make(map[string]int, len(sorted))
	for i, n := range sorted {
		leafOf[n] = i
	}
	leaf := make([]int, len(names))
	for i, n := range names {
		leaf[i] = leafOf[n]
	}

	meta := make([]storedColumn, len(t.Columns))
	for i, c := range t.Columns {
		meta[i] = storedColumn{Name: c.Name, Kind: c.Kind, Field: names[i]}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode column metadata: %w", err)
	}

	pw := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(columnsKey, string(raw)))

	rows := make([]parquet.Row, 0, len(t.Rows))
	for r, cells := range t.Rows {
		row := make(parquet.Row, len(t.Columns))
		for i, c := range t.Columns {
			var cell any
			if i < len(cells) {
				cell = cells[i]
			}
			v, err := value(cell, c.Kind)
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", r, c.Name, err)
			}
			def := 1
			if cell == nil {
				def = 0
			}
			row[leaf[i]] = v.Level(0, def, leaf[i])
		}
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if _, err := pw.WriteRows(rows); err != nil {
			return fmt.Errorf("failed to write rows: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// Decode reads a table from r. Errors wrap errs.ErrCorruptCache.
func Decode(r io.ReaderAt, size int64) (*table.Table, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, corrupt(err)
	}

	cols, fields, err := columns(f)
	if err != nil {
		return nil, corrupt(err)
	}

	// leaf index -> table column index
	colOf := make([]int, len(fields))
	for i := range colOf {
		colOf[i] = i
	}
	if _, ok := f.Lookup(columnsKey); ok {
		sorted := append([]string(nil), fields...)
		sort.Strings(sorted)
		pos := make(map[string]int, len(fields))
		for i, n := range fields {
			pos[n] = i
		}
		for i, n := range sorted {
			colOf[i] = pos[n]
		}
	}

	t := &table.Table{Columns: cols, Rows: make([][]any, 0, f.NumRows())}
	buf := make([]parquet.Row, readBatch)

	for _, rg := range f.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				cells := make([]any, len(cols))
				for _, v := range row {
					li := v.Column()
					if li < 0 || li >= len(colOf) || v.IsNull() {
						continue
					}
					ci := colOf[li]
					cells[ci] = cell(v, cols[ci].Kind)
				}
				t.Rows = append(t.Rows, cells)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = rows.Close()
				return nil, corrupt(err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, corrupt(err)
		}
	}

	return t, nil
}

// WriteFile encodes t to path through a temporary file in the same
// directory, so readers never see a partially written file.
func WriteFile(path string, t *table.Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := Encode(tmp, t); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move table into place: %w", err)
	}
	return nil
}

// ReadFile decodes the table stored at path.
func ReadFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Decode(f, info.Size())
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", errs.ErrCorruptCache, err)
}

func node(k table.Kind) parquet.Node {
	switch k {
	case table.Int:
		return parquet.Int(64)
	case table.Float:
		return parquet.Leaf(parquet.DoubleType)
	case table.Bool:
		return parquet.Leaf(parquet.BooleanType)
	case table.Time:
		return parquet.Timestamp(parquet.Nanosecond)
	case table.Bytes:
		return parquet.Leaf(parquet.ByteArrayType)
	default:
		return parquet.String()
	}
}

func value(v any, k table.Kind) (parquet.Value, error) {
	if v == nil {
		return parquet.NullValue(), nil
	}
	switch k {
	case table.Int:
		if n, ok := v.(int64); ok {
			return parquet.Int64Value(n), nil
		}
	case table.Float:
		if f, ok := v.(float64); ok {
			return parquet.DoubleValue(f), nil
		}
	case table.Bool:
		if b, ok := v.(bool); ok {
			return parquet.BooleanValue(b), nil
		}
	case table.Time:
		if ts, ok := v.(time.Time); ok {
			return parquet.Int64Value(ts.UnixNano()), nil
		}
	case table.Bytes:
		if b, ok := v.([]byte); ok {
			return parquet.ByteArrayValue(b), nil
		}
	default:
		return parquet.ByteArrayValue([]byte(table.Format(v))), nil
	}
	return parquet.Value{}, fmt.Errorf("value of type %T does not match kind %s", v, k)
}

func cell(v parquet.Value, k table.Kind) any {
	switch k {
	case table.Int:
		if v.Kind() == parquet.Int32 {
			return int64(v.Int32())
		}
		return v.Int64()
	case table.Float:
		if v.Kind() == parquet.Float {
			return float64(v.Float())
		}
		return v.Double()
	case table.Bool:
		return v.Boolean()
	case table.Time:
		return time.Unix(0, v.Int64()).UTC()
	case table.Bytes:
		b := v.ByteArray()
		out := make([]byte, len(b))
		copy(out, b)
		return out
	default:
		return string(v.ByteArray())
	}
}

// columns recovers column order, names and kinds along with the parquet
// field of each column, from our metadata when present and otherwise from
// the flat schema.
func columns(f *parquet.File) ([]table.Column, []string, error) {
	if raw, ok := f.Lookup(columnsKey); ok {
		var stored []storedColumn
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, nil, fmt.Errorf("bad %s metadata: %w", columnsKey, err)
		}
		cols := make([]table.Column, len(stored))
		fields := make([]string, len(stored))
		seen := make(map[string]bool, len(stored))
		for i, sc := range stored {
			cols[i] = table.Column{Name: sc.Name, Kind: sc.Kind}
			fields[i] = sc.Field
			if fields[i] == "" {
				fields[i] = sc.Name
			}
			if seen[fields[i]] {
				return nil, nil, fmt.Errorf("bad %s metadata: field %q repeats", columnsKey, fields[i])
			}
			seen[fields[i]] = true
		}
		return cols, fields, nil
	}

	schema := f.Schema().Fields()
	cols := make([]table.Column, 0, len(schema))
	fields := make([]string, 0, len(schema))
	for _, field := range schema {
		if !field.Leaf() {
			return nil, nil, fmt.Errorf("nested column %q is not supported", field.Name())
		}
		cols = append(cols, table.Column{Name: field.Name(), Kind: kindOf(field.Type())})
		fields = append(fields, field.Name())
	}
	return cols, fields, nil
}

func kindOf(t parquet.Type) table.Kind {
	lt := t.LogicalType()
	switch t.Kind() {
	case parquet.Boolean:
		return table.Bool
	case parquet.Int32:
		return table.Int
	case parquet.Int64:
		if lt != nil && lt.Timestamp != nil {
			return timestampKind(lt.Timestamp)
		}
		return table.Int
	case parquet.Float, parquet.Double:
		return table.Float
	case parquet.ByteArray, parquet.FixedLenByteArray:
		if lt != nil && (lt.UTF8 != nil || lt.Json != nil || lt.Enum != nil) {
			return table.String
		}
		return table.Bytes
	default:
		return table.String
	}
}

// timestampKind only accepts nanosecond timestamps; other units are read as
// plain integers.
func timestampKind(ts *format.TimestampType) table.Kind {
	if ts.Unit.Nanos != nil {
		return table.Time
	}
	return table.Int
}

// uniqueNames returns a distinct parquet field name for every column.
// Repeats and blanks get a numeric suffix that no other column uses.
func uniqueNames(cols []table.Column) []string {
	names := make([]string, len(cols))
	used := make(map[string]bool, len(cols))
	next := make(map[string]int, len(cols))
	for i, c := range cols {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("column_%d", i)
		}
		if used[name] {
			base, n := name, max(next[name], 1)
			for used[name] {
				name = fmt.Sprintf("%s_%d", base, n)
				n++
			}
			next[base] = n
		}
		used[name] = true
		names[i] = name
	}
	return names
}
