// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package reader loads data files into tables, values or normalized text,
// from local paths or s3:// URIs, and writes tables back out.
package reader

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/apex/log"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/staranto/cofgo/internal/aws"
	"github.com/staranto/cofgo/internal/codec"
	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/table"
)

// Options tune Read.
type Options struct {
	// Extension overrides the extension taken from the path.
	Extension string
	// Sep is the CSV field separator, ',' when zero.
	Sep rune
	// KeepComments leaves comments in script files.
	KeepComments bool
	// Values replace {name} placeholders in script files.
	Values map[string]string

	// Store serves s3:// paths. When nil one is built from AWS.
	Store *aws.Store
	AWS   []aws.Option
}

// Content is what Read found. Exactly one of the fields is set, except for
// empty text files.
type Content struct {
	Table *table.Table
	Text  string
	Value any
}

// comment syntax of script files.
type syntax struct {
	line  []string
	block *regexp.Regexp
}

var (
	cBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	htmlBlock = regexp.MustCompile(`(?s)<!--.*?-->`)

	scripts = map[string]syntax{
		"sql":  {line: []string{"--"}, block: cBlock},
		"js":   {line: []string{"//"}, block: cBlock},
		"html": {block: htmlBlock},
		"py":   {line: []string{"#"}},
		"sh":   {line: []string{"#"}},
	}
)

// Extension returns the lower-cased extension of path without the dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Read loads path according to its extension.
func Read(ctx context.Context, path string, opts Options) (*Content, error) {
	ext := strings.ToLower(strings.TrimPrefix(opts.Extension, "."))
	if ext == "" {
		ext = Extension(path)
	}

	b, err := load(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"path": path, "ext": ext, "bytes": len(b)}).Debug("read file")

	switch ext {
	case "csv", "txt":
		t, err := decodeCSV(b, opts.Sep)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return &Content{Table: t}, nil

	case "json":
		return decodeJSON(b, path)

	case "yaml", "yml":
		var v any
		if err := yaml.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return &Content{Value: v}, nil

	case "parquet", "parq":
		t, err := codec.Decode(bytes.NewReader(b), int64(len(b)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return &Content{Table: t}, nil

	default:
		if s, ok := scripts[ext]; ok {
			return &Content{Text: normalize(string(b), s, opts)}, nil
		}
		return &Content{Text: string(b)}, nil
	}
}

func load(ctx context.Context, path string, opts Options) ([]byte, error) {
	if !aws.IsURI(path) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return b, nil
	}
	store, err := opts.store(ctx)
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, path)
}

func (o Options) store(ctx context.Context) (*aws.Store, error) {
	if o.Store != nil {
		return o.Store, nil
	}
	return aws.NewStore(ctx, o.AWS...)
}

func decodeCSV(b []byte, sep rune) (*table.Table, error) {
	r := csv.NewReader(bytes.NewReader(b))
	if sep != 0 {
		r.Comma = sep
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &table.Table{}, nil
	}
	return table.InferStrings(records[0], records[1:]), nil
}

// decodeJSON returns a table for an array of objects and a plain value for
// anything else.
func decodeJSON(b []byte, path string) (*Content, error) {
	if !gjson.ValidBytes(b) {
		return nil, errs.Config("%s is not valid JSON", path)
	}
	doc := gjson.ParseBytes(b)

	if !doc.IsArray() {
		return &Content{Value: doc.Value()}, nil
	}
	items := doc.Array()
	if len(items) == 0 {
		return &Content{Value: []any{}}, nil
	}
	for _, it := range items {
		if !it.IsObject() {
			return &Content{Value: doc.Value()}, nil
		}
	}

	var names []string
	index := map[string]int{}
	for _, it := range items {
		it.ForEach(func(k, _ gjson.Result) bool {
			if _, ok := index[k.String()]; !ok {
				index[k.String()] = len(names)
				names = append(names, k.String())
			}
			return true
		})
	}

	rows := make([][]any, len(items))
	for r, it := range items {
		row := make([]any, len(names))
		it.ForEach(func(k, v gjson.Result) bool {
			row[index[k.String()]] = scalar(v)
			return true
		})
		rows[r] = row
	}
	return &Content{Table: table.FromRows(names, rows)}, nil
}

func scalar(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True, gjson.False:
		return v.Bool()
	case gjson.Number:
		if strings.ContainsAny(v.Raw, ".eE") {
			return v.Float()
		}
		return v.Int()
	case gjson.String:
		return v.String()
	default:
		return v.Raw
	}
}

// normalize trims every line, drops comments and blank lines, fills in
// placeholders and joins what is left with spaces.
func normalize(text string, s syntax, opts Options) string {
	if !opts.KeepComments && s.block != nil {
		text = s.block.ReplaceAllString(text, "")
	}

	var pairs []string
	for k, v := range opts.Values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	fill := strings.NewReplacer(pairs...)

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !opts.KeepComments {
			for _, marker := range s.line {
				line, _, _ = strings.Cut(line, marker)
			}
			line = strings.TrimSpace(line)
		}
		line = fill.Replace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, " ")
}
