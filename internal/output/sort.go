// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"bytes"
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/table"
)

type sortKey struct {
	col       int
	desc      bool
	sensitive bool
}

// SortRows orders the rows of t by spec, a comma separated list of column
// names. A leading '-' sorts that column descending and a leading '!' makes
// string comparison case sensitive. NULLs sort first. An empty spec leaves
// the order alone.
func SortRows(t *table.Table, spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}

	var keys []sortKey
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		k := sortKey{}
		for len(part) > 0 && (part[0] == '-' || part[0] == '!') {
			if part[0] == '-' {
				k.desc = true
			} else {
				k.sensitive = true
			}
			part = part[1:]
		}
		k.col = t.ColumnIndex(part)
		if k.col < 0 {
			return errs.Config("sort key %q is not a column, expected one of %s",
				part, strings.Join(t.Names(), ", "))
		}
		keys = append(keys, k)
	}

	slices.SortStableFunc(t.Rows, func(a, b []any) int {
		for _, k := range keys {
			c := compareCells(a[k.col], b[k.col], k.sensitive)
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return nil
}

func compareCells(a, b any, sensitive bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, y)
		case float64:
			return cmp.Compare(float64(x), y)
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmp.Compare(x, y)
		case int64:
			return cmp.Compare(x, float64(y))
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y)
		}
	}

	sa, sb := table.Format(a), table.Format(b)
	if !sensitive {
		sa, sb = strings.ToLower(sa), strings.ToLower(sb)
	}
	return strings.Compare(sa, sb)
}
