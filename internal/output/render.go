// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	lgtable "github.com/charmbracelet/lipgloss/v2/table"
	"gopkg.in/yaml.v3"

	"github.com/staranto/cofgo/internal/attrs"
	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/filters"
	"github.com/staranto/cofgo/internal/reader"
	"github.com/staranto/cofgo/internal/table"
)

// Output formats.
const (
	Text = "text"
	JSON = "json"
	YAML = "yaml"
	CSV  = "csv"
)

// Formats lists the accepted values of --output.
var Formats = []string{Text, JSON, YAML, CSV}

// NullText is how text output shows a NULL cell.
const NullText = "-"

// Colors are the lipgloss colors used by text output when color is on.
type Colors struct {
	Title string
	Even  string
	Odd   string
}

// DefaultColors is used when no colors are configured.
var DefaultColors = Colors{Title: "#f6be00", Even: "#ffffff", Odd: "#00c8f0"}

// Options controls Render.
type Options struct {
	Format  string
	Titles  bool
	Color   bool
	Colors  Colors
	Padding int
	Sort    string
	Filter  string
	Attrs   string
}

// Render filters, sorts, projects and writes t to w. Filters and sort
// keys name the result's own columns, before any attrs rename. The
// caller's table is not reordered.
func Render(w io.Writer, t *table.Table, opts Options) error {
	if t == nil {
		return nil
	}

	filtered, err := filters.Apply(t, opts.Filter)
	if err != nil {
		return err
	}

	view := &table.Table{Columns: filtered.Columns, Rows: slices.Clone(filtered.Rows), Cache: filtered.Cache}
	if err := SortRows(view, opts.Sort); err != nil {
		return err
	}

	al, err := attrs.Parse(opts.Attrs)
	if err != nil {
		return err
	}
	if view, err = al.Apply(view); err != nil {
		return err
	}

	switch strings.ToLower(opts.Format) {
	case "", Text:
		TableWriter(w, view, opts)
		return nil
	case JSON:
		return encodeWith(w, JSON, view)
	case CSV:
		return encodeWith(w, CSV, view)
	case YAML:
		return YAMLWriter(w, view)
	default:
		return errs.Config("unknown output %q, expected one of %s", opts.Format, strings.Join(Formats, ", "))
	}
}

func encodeWith(w io.Writer, ext string, t *table.Table) error {
	b, err := reader.EncodeTable(ext, t)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// TableWriter renders t in a tabular form honoring color, titles and
// padding options. An empty table prints nothing.
func TableWriter(w io.Writer, t *table.Table, opts Options) {
	if t.NumRows() == 0 {
		return
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if opts.Color {
		colors := opts.Colors
		if colors == (Colors{}) {
			colors = DefaultColors
		}
		headerStyle = headerStyle.Foreground(lipgloss.Color(colors.Title))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color(colors.Even))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color(colors.Odd))
	}

	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = CellText(v)
		}
		rows = append(rows, row)
	}

	pad := opts.Padding
	log.Debugf("padding: %v", pad)

	tw := lgtable.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == lgtable.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}

			if col > 0 {
				style = style.PaddingLeft(pad)
			}

			return style
		}).
		Headers().
		Rows(rows...)

	if opts.Titles {
		// https://github.com/charmbracelet/lipgloss/issues/261
		tw = tw.Headers(t.Names()...).BorderHeader(false)
	}
	fmt.Fprintln(w, tw)
}

// CellText renders a cell for text output.
func CellText(v any) string {
	switch n := v.(type) {
	case nil:
		return NullText
	case time.Time:
		return n.Format(time.DateTime)
	case []byte:
		return fmt.Sprintf("%x", n)
	default:
		return table.Format(v)
	}
}

// YAMLWriter writes t as a sequence of mappings, keeping column order.
func YAMLWriter(w io.Writer, t *table.Table) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range t.Rows {
		rec := &yaml.Node{Kind: yaml.MappingNode}
		for i, c := range t.Columns {
			v := r[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			val := &yaml.Node{}
			if err := val.Encode(v); err != nil {
				return fmt.Errorf("encoding column %q: %w", c.Name, err)
			}
			rec.Content = append(rec.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Name}, val)
		}
		doc.Content = append(doc.Content, rec)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
