// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package filters implements the --filter row selection language.
//
// A spec is a comma separated list of key, operator and target, for example
// "country=FR,amount>100". Operators are = ^ ~ < > @ and /, each of which
// can be negated with a leading '!'. A row is kept when it passes every
// filter.
package filters

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/table"
)

// filterRegex splits an expression into key, optionally negated operator,
// and target.
var filterRegex = regexp.MustCompile(`^(.*?)(!?[=^~<>@/])(.*)$`)

// Filter is a single parsed expression.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string
}

// BuildFilters parses spec. The separator is "," unless COF_FILTER_DELIM
// says otherwise. Malformed expressions are an error naming the expression.
func BuildFilters(spec string) ([]Filter, error) {
	//nolint:prealloc
	var filters []Filter

	if strings.TrimSpace(spec) == "" {
		return filters, nil
	}

	delim := ","
	if d, ok := os.LookupEnv("COF_FILTER_DELIM"); ok && d != "" {
		delim = d
	}

	for _, filterSpec := range strings.Split(spec, delim) {
		parts := filterRegex.FindStringSubmatch(filterSpec)
		if parts == nil || strings.TrimSpace(parts[1]) == "" {
			return nil, errs.Config("invalid filter %q", filterSpec)
		}

		negate := strings.HasPrefix(parts[2], "!")
		filters = append(filters, Filter{
			Key:     strings.TrimSpace(parts[1]),
			Negate:  negate,
			Operand: strings.TrimPrefix(parts[2], "!"),
			Target:  parts[3],
		})
	}

	return filters, nil
}

// Apply returns a table holding the rows of t that pass spec. Filter keys
// must name columns of t.
func Apply(t *table.Table, spec string) (*table.Table, error) {
	filters, err := BuildFilters(spec)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return t, nil
	}

	cols := make([]int, len(filters))
	for i, f := range filters {
		cols[i] = t.ColumnIndex(f.Key)
		if cols[i] < 0 {
			return nil, errs.Config("filter key %q is not a column, expected one of %s",
				f.Key, strings.Join(t.Names(), ", "))
		}
	}

	out := &table.Table{Columns: t.Columns, Cache: t.Cache}
	for _, row := range t.Rows {
		if keep(row, cols, filters) {
			out.Rows = append(out.Rows, row)
		}
	}
	log.Debugf("filter %q kept %d of %d rows", spec, out.NumRows(), t.NumRows())
	return out, nil
}

func keep(row []any, cols []int, filters []Filter) bool {
	for i, f := range filters {
		if !Match(row[cols[i]], f) {
			return false
		}
	}
	return true
}

// Match reports whether a single cell passes f. NULL never matches.
func Match(value any, f Filter) bool {
	switch v := value.(type) {
	case nil:
		return false
	case int64:
		return checkNumericOperand(float64(v), f)
	case float64:
		return checkNumericOperand(v, f)
	default:
		return checkStringOperand(table.Format(v), f)
	}
}

// checkNumericOperand compares numerically when the target is a number and
// falls back to string semantics otherwise.
func checkNumericOperand(value float64, f Filter) bool {
	tgt, err := strconv.ParseFloat(strings.TrimSpace(f.Target), 64)
	if err != nil {
		return checkStringOperand(table.Format(value), f)
	}

	switch f.Operand {
	case "=":
		return (value == tgt) == !f.Negate
	case ">":
		return (value > tgt) == !f.Negate
	case "<":
		return (value < tgt) == !f.Negate
	default:
		return checkStringOperand(strconv.FormatFloat(value, 'f', -1, 64), f)
	}
}

func checkStringOperand(value string, f Filter) bool {
	switch f.Operand {
	case "=":
		return value == f.Target == !f.Negate
	case "~":
		return strings.EqualFold(value, f.Target) == !f.Negate
	case "^":
		return strings.HasPrefix(value, f.Target) == !f.Negate
	case ">":
		return value > f.Target == !f.Negate
	case "<":
		return value < f.Target == !f.Negate
	case "@":
		return strings.Contains(value, f.Target) == !f.Negate
	case "/":
		matched, err := regexp.MatchString(f.Target, value)
		if err != nil {
			log.Error(fmt.Sprintf("invalid regex: %s", f.Target))
			return false
		}
		return matched == !f.Negate
	default:
		log.Error("unsupported filtering operand: " + f.Operand)
		return false
	}
}
