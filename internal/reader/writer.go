// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package reader

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"

	"github.com/staranto/cofgo/internal/aws"
	"github.com/staranto/cofgo/internal/codec"
	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/table"
)

// EncodeTable renders t in the format named by ext: csv, txt, json or
// parquet.
func EncodeTable(ext string, t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	switch ext {
	case "csv", "txt":
		w := csv.NewWriter(&buf)
		if err := w.Write(t.Names()); err != nil {
			return nil, err
		}
		for _, row := range t.Rows {
			rec := make([]string, len(row))
			for i, v := range row {
				rec[i] = table.Format(v)
			}
			if err := w.Write(rec); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(t.Records()); err != nil {
			return nil, err
		}
	case "parquet", "parq":
		if err := codec.Encode(&buf, t); err != nil {
			return nil, err
		}
	default:
		return nil, errs.Config("cannot write a table as %q, expected csv, json or parquet", ext)
	}
	return buf.Bytes(), nil
}

// WriteTable writes t to path, a local file or an s3:// URI, in the format
// given by the path's extension.
func WriteTable(ctx context.Context, path string, t *table.Table, opts Options) error {
	ext := opts.Extension
	if ext == "" {
		ext = Extension(path)
	}
	b, err := EncodeTable(ext, t)
	if err != nil {
		return err
	}
	return save(ctx, path, b, opts)
}

// WriteText writes text and a newline to path. With appendTo the line is
// added to the end of an existing file.
func WriteText(ctx context.Context, path, text string, appendTo bool, opts Options) error {
	line := []byte(text + "\n")

	if aws.IsURI(path) {
		store, err := opts.store(ctx)
		if err != nil {
			return err
		}
		if appendTo {
			if prev, err := store.Get(ctx, path); err == nil {
				line = append(prev, line...)
			}
		}
		return store.Put(ctx, path, line)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendTo {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644) //nolint:mnd
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func save(ctx context.Context, path string, b []byte, opts Options) error {
	if aws.IsURI(path) {
		store, err := opts.store(ctx)
		if err != nil {
			return err
		}
		return store.Put(ctx, path, b)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil { //nolint:mnd
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Debugf("wrote %d bytes to %s", len(b), path)
	return nil
}
