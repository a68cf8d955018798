// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/table"
)

func testTable() *table.Table {
	return table.FromRows(
		[]string{"name", "count", "type"},
		[][]any{
			{"zebra", 3.0, "aws_instance"},
			{"alpha", 1.0, "gcp_compute"},
			{"beta", 2.0, nil},
		},
	)
}

func names(t *table.Table) []string {
	var out []string
	for _, r := range t.Rows {
		out = append(out, r[0].(string))
	}
	return out
}

func TestSortRows(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		wantOrder []string
	}{
		{
			name:      "ascending by name",
			spec:      "name",
			wantOrder: []string{"alpha", "beta", "zebra"},
		},
		{
			name:      "descending by name",
			spec:      "-name",
			wantOrder: []string{"zebra", "beta", "alpha"},
		},
		{
			name:      "ascending by count",
			spec:      "count",
			wantOrder: []string{"alpha", "beta", "zebra"},
		},
		{
			name:      "descending by count",
			spec:      "-count",
			wantOrder: []string{"zebra", "beta", "alpha"},
		},
		{
			name:      "case sensitive",
			spec:      "!name",
			wantOrder: []string{"alpha", "beta", "zebra"},
		},
		{
			name:      "multiple fields",
			spec:      "count,name",
			wantOrder: []string{"alpha", "beta", "zebra"},
		},
		{
			name:      "nulls first",
			spec:      "type",
			wantOrder: []string{"beta", "zebra", "alpha"},
		},
		{
			name:      "empty spec",
			spec:      "",
			wantOrder: []string{"zebra", "alpha", "beta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testTable()
			require.NoError(t, SortRows(data, tt.spec))
			assert.Equal(t, tt.wantOrder, names(data))
		})
	}
}

func TestSortRowsCase(t *testing.T) {
	mk := func() *table.Table {
		return table.FromRows([]string{"name"}, [][]any{{"b"}, {"a"}, {"A"}})
	}

	data := mk()
	require.NoError(t, SortRows(data, "name"))
	assert.Equal(t, []string{"a", "A", "b"}, names(data))

	data = mk()
	require.NoError(t, SortRows(data, "!name"))
	assert.Equal(t, []string{"A", "a", "b"}, names(data))
}

func TestSortRowsTimes(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := table.FromRows([]string{"name", "at"}, [][]any{
		{"later", jan.Add(48 * time.Hour)},
		{"first", jan},
	})
	require.NoError(t, SortRows(data, "at"))
	assert.Equal(t, []string{"first", "later"}, names(data))
}

func TestSortRowsUnknownColumn(t *testing.T) {
	err := SortRows(testTable(), "name,size")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfig))
	assert.Contains(t, err.Error(), `"size"`)
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, testTable(), Options{Titles: true, Sort: "name", Padding: 2})
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "\x1b[")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "name")
	assert.Contains(t, lines[0], "count")
	assert.Contains(t, lines[1], "alpha")
	assert.Contains(t, lines[2], "beta")
	assert.Contains(t, lines[2], NullText)
	assert.Contains(t, lines[3], "zebra")
}

func TestRenderTextNoTitles(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, testTable(), Options{Format: Text}))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.NotContains(t, buf.String(), "count")
}

func TestRenderTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	empty := &table.Table{Columns: []table.Column{{Name: "a"}}}
	require.NoError(t, Render(&buf, empty, Options{Titles: true}))
	assert.Empty(t, buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, testTable(), Options{Format: "JSON", Filter: "count>1", Sort: "-count"}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "zebra", got[0]["name"])
	assert.Equal(t, "beta", got[1]["name"])
	assert.Nil(t, got[1]["type"])
}

func TestRenderYAMLKeepsColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, testTable(), Options{Format: YAML, Filter: "name=beta"}))

	out := buf.String()
	assert.Equal(t, "- name: beta\n  count: 2\n  type: null\n", out)

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "beta", got[0]["name"])
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, testTable(), Options{Format: CSV, Sort: "name"}))
	assert.Equal(t, "name,count,type\nalpha,1,gcp_compute\nbeta,2,\nzebra,3,aws_instance\n", buf.String())
}

func TestRenderAttrs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, testTable(), Options{Format: CSV, Sort: "name", Attrs: "type:kind,name::U"}))
	assert.Equal(t, "kind,name\ngcp_compute,ALPHA\n,BETA\naws_instance,ZEBRA\n", buf.String())

	// Filter and sort still see columns the attrs drop.
	buf.Reset()
	require.NoError(t, Render(&buf, testTable(), Options{Format: CSV, Sort: "-count", Filter: "count>1", Attrs: "name"}))
	assert.Equal(t, "name\nzebra\nbeta\n", buf.String())

	err := Render(&buf, testTable(), Options{Attrs: "size"})
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestRenderLeavesInputOrder(t *testing.T) {
	data := testTable()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, data, Options{Format: CSV, Sort: "name"}))
	assert.Equal(t, []string{"zebra", "alpha", "beta"}, names(data))
}

func TestRenderErrors(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, testTable(), Options{Format: "xml"})
	assert.True(t, errors.Is(err, errs.ErrConfig))
	assert.Contains(t, err.Error(), "text, json, yaml, csv")

	err = Render(&buf, testTable(), Options{Filter: "nope=1"})
	assert.True(t, errors.Is(err, errs.ErrConfig))

	assert.NoError(t, Render(&buf, nil, Options{}))
}

func TestCellText(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, NullText},
		{"string", "hello", "hello"},
		{"int", int64(42), "42"},
		{"float", 42.5, "42.5"},
		{"bool", false, "false"},
		{"time", time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC), "2024-03-04 05:06:07"},
		{"bytes", []byte{0xde, 0xad}, "dead"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CellText(tt.value))
		})
	}
}
