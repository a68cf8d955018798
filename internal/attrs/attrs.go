// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package attrs selects, renames and transforms the columns of a result
// for the --attrs flag.
package attrs

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/staranto/cofgo/internal/config"
	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/table"
)

var lengthRe = regexp.MustCompile(`-?\d+`)

// Attr represents each of the columns to be included in the output.
type Attr struct {
	// The column to take the value from.
	Key string `yaml:"key"`
	// Should this Attr be included in output or is it just
	// intended for filtering and sorting?
	Include bool `yaml:"include"`
	// The name to use in the output. This is also the column title when
	// output=text.
	OutputKey string `yaml:"outputKey"`
	// Transformation spec to apply to the output value.
	TransformSpec string `yaml:"transformSpec"`
}

// timezone is the location times are shown in by the t transform, from the
// timezone config key or TZ. Nil means leave times alone.
func timezone() *time.Location {
	tz, _ := config.GetString("timezone", "")
	if tz == "" {
		tz = os.Getenv("TZ")
	}
	if tz == "" {
		return nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.WithError(err).Warnf("unknown timezone %q", tz)
		return nil
	}
	return loc
}

// Transform applies the attr's spec to a cell. Times honor t/T, strings
// honor case (l/L, u/U) and length (n keeps n bytes, -n keeps both ends).
// Other values pass through.
func (a *Attr) Transform(value any) any {
	if tm, ok := value.(time.Time); ok {
		if strings.ContainsAny(a.TransformSpec, "tT") {
			if loc := timezone(); loc != nil {
				return tm.In(loc)
			}
		}
		return tm
	}

	result, ok := value.(string)
	if !ok {
		return value
	}

	// Convert an RFC 3339 string to local.
	if strings.ContainsAny(a.TransformSpec, "tT") {
		if loc := timezone(); loc != nil {
			if t, err := time.Parse(time.RFC3339, result); err == nil {
				result = t.In(loc).Format("2006-01-02T15:04:05MST")
			}
		}
	}

	// We need to know which case transformation appears last.  This covers the
	// case where there has been a global case transformation prepended to the
	// attrs transformation and, thus, allows the attr's to carry more weight.
	// IOW...  --attrs '*::U,name::l' will be lower case.
	lastL := strings.LastIndexAny(a.TransformSpec, "lL")
	lastU := strings.LastIndexAny(a.TransformSpec, "uU")

	if lastL > lastU {
		result = strings.ToLower(result)
	} else if lastU > lastL {
		result = strings.ToUpper(result)
	}

	// Same logic as above re: case.  This allows a more specific length
	// transformation to override a global one.
	if match := lengthRe.FindAllString(a.TransformSpec, -1); len(match) != 0 {
		l, _ := strconv.Atoi(match[len(match)-1])
		abs := int(math.Abs(float64(l)))
		if len(result) > abs {
			if l < 0 {
				lr := max(abs/2-1, 1)
				result = result[:lr] + ".." + result[len(result)-lr:]
			} else {
				result = result[:l]
			}
		}
	}

	return result
}

type AttrList []Attr

// Return a string representation of the AttrList.  This should match the format
// of the original --attrs flag.
func (a *AttrList) String() string {
	result := make([]string, 0, len(*a))
	for _, attr := range *a {
		result = append(result, fmt.Sprintf("%s:%s:%s", attr.Key, attr.OutputKey, attr.TransformSpec))
	}
	return strings.Join(result, ",")
}

// Set parses each spec from the --attrs flag and adds it to the AttrList.
// A spec is column[:title[:transform]]; a leading ! hides the column and
// * carries a transform for every column.
func (a *AttrList) Set(value string) error {
	if value == "" || value == "*" {
		return nil
	}

	const (
		keyIdx = iota
		outputIdx
		transformIdx
	)

	specs := strings.Split(value, ",")
specloop:
	for _, spec := range specs {
		attr := Attr{
			Include: true,
		}

		fields := strings.Split(spec, ":")
		if len(fields) > transformIdx+1 {
			return errs.Config("invalid attr %q, expected column[:title[:transform]]", spec)
		}

		attr.Key = strings.TrimSpace(fields[keyIdx])
		if strings.HasPrefix(attr.Key, "!") {
			attr.Include = false
			attr.Key = attr.Key[1:]
		}
		if attr.Key == "" {
			return errs.Config("invalid attr %q, no column", spec)
		}

		if attr.Key == "*" {
			attr.Include = false
		}

		attr.OutputKey = attr.Key
		if len(fields) > outputIdx && strings.TrimSpace(fields[outputIdx]) != "" {
			attr.OutputKey = strings.TrimSpace(fields[outputIdx])
		}

		if len(fields) > transformIdx {
			attr.TransformSpec = strings.TrimSpace(fields[transformIdx])
		}

		// If the attr already exists in the list (because it's one of the defaults
		// for cmd or the user double-entered it) just apply the OutputKey, Include
		// and TransformSpec to the existing Attr.
		for i := range *a {
			if (*a)[i].Key == attr.Key || (*a)[i].OutputKey == attr.Key {
				(*a)[i].Include = attr.Include
				(*a)[i].OutputKey = attr.OutputKey
				(*a)[i].TransformSpec = attr.TransformSpec
				continue specloop
			}
		}

		*a = append(*a, attr)
	}

	return nil
}

// SetGlobalTransformSpec inserts a global transform spec into the front of all
// attrs in the list.
func (alist *AttrList) SetGlobalTransformSpec() error {
	spec := ""

	// Find the global transform spec.  If there is more than one, we're not
	// dealing with it and just taking the first.
	for a := range *alist {
		if (*alist)[a].Key == "*" {
			spec = (*alist)[a].TransformSpec
			break
		}
	}

	// Return early if there is no global transform spec.
	if spec == "" {
		return nil
	}

	// Prepend it to every attr, the * attr included.
	for a := range *alist {
		(*alist)[a].TransformSpec = spec + "," + (*alist)[a].TransformSpec
	}

	return nil
}

func (a *AttrList) Type() string {
	return "list"
}

// Parse builds an AttrList from an --attrs value and applies the global
// transform.
func Parse(spec string) (AttrList, error) {
	var al AttrList
	if err := al.Set(spec); err != nil {
		return nil, err
	}
	if err := al.SetGlobalTransformSpec(); err != nil {
		return nil, err
	}
	return al, nil
}

// Apply projects t through the list. With no named columns every column is
// kept, in order, under the global transform. Otherwise the included
// columns come out in list order.
func (a AttrList) Apply(t *table.Table) (*table.Table, error) {
	global := Attr{}
	var named []Attr
	for _, attr := range a {
		if attr.Key == "*" {
			global = attr
			continue
		}
		named = append(named, attr)
	}

	if len(named) == 0 {
		if global.TransformSpec == "" {
			return t, nil
		}
		for _, c := range t.Columns {
			named = append(named, Attr{Key: c.Name, OutputKey: c.Name, Include: true, TransformSpec: global.TransformSpec})
		}
	}

	var (
		cols  []table.Column
		index []int
		use   []Attr
	)
	for _, attr := range named {
		i := t.ColumnIndex(attr.Key)
		if i < 0 {
			return nil, errs.Config("attr %q is not a column, expected one of %s",
				attr.Key, strings.Join(t.Names(), ", "))
		}
		if !attr.Include {
			continue
		}
		cols = append(cols, table.Column{Name: attr.OutputKey, Kind: t.Columns[i].Kind})
		index = append(index, i)
		use = append(use, attr)
	}

	out := &table.Table{Columns: cols, Rows: make([][]any, len(t.Rows)), Cache: t.Cache}
	for r, row := range t.Rows {
		nr := make([]any, len(index))
		for c, i := range index {
			nr[c] = row[i]
			if use[c].TransformSpec != "" && nr[c] != nil {
				nr[c] = use[c].Transform(nr[c])
			}
		}
		out.Rows[r] = nr
	}
	log.Debugf("attrs: %s", a.String())
	return out, nil
}
