// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package freshness parses the maximum age a cached query result may have
// before it is considered stale, e.g. "24h", "2 days" or a bare 30 (seconds).
package freshness

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/staranto/cofgo/internal/errs"
)

// Unit is the unit a freshness window is expressed in.
type Unit int

const (
	Seconds Unit = iota
	Minutes
	Hours
	Days
	Weeks
)

// Default is the window applied when none is given.
const Default = "24h"

// allowed lists the accepted unit tokens, in the order they are reported.
const allowed = "seconds (s, sec, second), minutes (m, min, mins, minute), " +
	"hours (h, hr, hrs, hour), days (d, day) or weeks (w, wk, wks, week)"

var tokens = map[string]Unit{
	"s": Seconds, "sec": Seconds, "second": Seconds, "seconds": Seconds,
	"m": Minutes, "min": Minutes, "mins": Minutes, "minute": Minutes, "minutes": Minutes,
	"h": Hours, "hr": Hours, "hrs": Hours, "hour": Hours, "hours": Hours,
	"d": Days, "day": Days, "days": Days,
	"w": Weeks, "wk": Weeks, "wks": Weeks, "week": Weeks, "weeks": Weeks,
}

// Seconds returns the number of seconds in one u.
func (u Unit) Seconds() float64 {
	switch u {
	case Minutes:
		return 60
	case Hours:
		return 3600
	case Days:
		return 86400
	case Weeks:
		return 604800
	default:
		return 1
	}
}

func (u Unit) String() string {
	switch u {
	case Minutes:
		return "minutes"
	case Hours:
		return "hours"
	case Days:
		return "days"
	case Weeks:
		return "weeks"
	default:
		return "seconds"
	}
}

// Window is a magnitude in a unit. The unit is kept so cache ages can be
// reported in the same terms the caller used.
type Window struct {
	Value float64
	Unit  Unit
}

// Seconds returns the window length in seconds.
func (w Window) Seconds() float64 {
	return w.Value * w.Unit.Seconds()
}

// Duration returns the window as a time.Duration.
func (w Window) Duration() time.Duration {
	return time.Duration(w.Seconds() * float64(time.Second))
}

func (w Window) String() string {
	return strconv.FormatFloat(w.Value, 'f', -1, 64) + " " + w.Unit.String()
}

// Parse parses a freshness string. Whitespace is removed and the value is
// lower-cased, then split into the leading numeric run and the trailing
// alphabetic run. A missing unit means seconds.
func Parse(s string) (Window, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)

	i := 0
	for i < len(compact) && (compact[i] == '.' || (compact[i] >= '0' && compact[i] <= '9')) {
		i++
	}
	num, unit := compact[:i], compact[i:]

	if num == "" {
		return Window{}, errs.Config("freshness %q has no numeric value", s)
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Window{}, errs.Config("freshness %q has an invalid numeric value", s)
	}

	if unit == "" {
		return Window{Value: value, Unit: Seconds}, nil
	}

	u, ok := tokens[unit]
	if !ok {
		return Window{}, errs.Config("freshness %q has unknown unit %q, expected %s", s, unit, allowed)
	}

	return Window{Value: value, Unit: u}, nil
}

// FromAny accepts the forms a freshness value arrives in from Go callers
// and YAML config: numbers are seconds, durations are converted, strings are
// parsed.
func FromAny(v any) (Window, error) {
	switch n := v.(type) {
	case nil:
		return Parse(Default)
	case string:
		if strings.TrimSpace(n) == "" {
			return Parse(Default)
		}
		return Parse(n)
	case time.Duration:
		return Window{Value: n.Seconds(), Unit: Seconds}, nil
	case int:
		return Window{Value: float64(n), Unit: Seconds}, nil
	case int64:
		return Window{Value: float64(n), Unit: Seconds}, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Window{}, errs.Config("freshness %v is not a finite number", n)
		}
		return Window{Value: n, Unit: Seconds}, nil
	default:
		return Window{}, errs.Config("freshness of type %T is not supported", v)
	}
}

// Age expresses d in unit u.
func Age(d time.Duration, u Unit) float64 {
	return d.Seconds() / u.Seconds()
}
