// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package format holds small display helpers for numbers, dates and the
// current user's name.
package format

import (
	"fmt"
	"math"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Group renders nb with a thousands separator and digits decimals. With
// digits > 0 the decimals are truncated; with digits <= 0 nb is rounded to
// the nearest integer. Zero and NaN render as "-".
//
//	Group(12345, 0)       == "12,345"
//	Group(12345.6, 0)     == "12,346"
//	Group(12345.54321, 3) == "12,345.543"
func Group(nb float64, digits int) string {
	return GroupUnit(nb, digits, "")
}

// GroupUnit is Group with a unit suffix such as "%".
func GroupUnit(nb float64, digits int, unit string) string {
	if math.IsNaN(nb) || nb == 0 {
		return "-"
	}

	if digits <= 0 {
		return humanize.Comma(int64(math.Round(nb))) + unit
	}

	whole := humanize.Comma(int64(nb))
	if nb < 0 && nb > -1 {
		whole = "-" + whole
	}

	_, frac, _ := strings.Cut(strconv.FormatFloat(nb, 'f', -1, 64), ".")
	if frac == "" {
		frac = "0"
	}
	if len(frac) > digits {
		frac = frac[:digits]
	}
	return whole + "." + frac + unit
}

// ReplaceZero renders 0 as "-" and anything else in thousands.
//
//	ReplaceZero(12345, 0) == "12"
func ReplaceZero(nb float64, digits int) string {
	if nb == 0 {
		return "-"
	}
	return Group(nb/1000, digits) //nolint:mnd
}

// AddZero left pads numbers below 10 with a zero.
func AddZero(n int) string {
	if n < 10 && n >= 0 { //nolint:mnd
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// Str2Bool reports whether v spells a true value: yes, y, true, t or 1.
func Str2Bool(v any) bool {
	switch strings.ToLower(strings.TrimSpace(fmt.Sprint(v))) {
	case "yes", "y", "true", "t", "1":
		return true
	default:
		return false
	}
}

// WeekSunday returns the Sunday starting the week of t, t itself on a
// Sunday. The time of day is dropped.
func WeekSunday(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// WeekNumber is the Sunday based week number of t: the ISO week of its
// Sunday plus one.
func WeekNumber(t time.Time) int {
	_, w := WeekSunday(t).ISOWeek()
	return w + 1
}

// Name parts accepted by DisplayName.
const (
	First = "first"
	Last  = "last"
	Full  = "full"
)

// DisplayName returns the first, last or full name of the current user,
// read from an account name written "Last, First". The login name is
// returned when the account has no such name.
func DisplayName(which string) (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to look up current user: %w", err)
	}
	return displayName(u.Name, u.Username, which), nil
}

func displayName(full, login, which string) string {
	switch strings.ToLower(which) {
	case Full:
		if full != "" {
			return full
		}
		return login
	case Last, First, "":
		last, first, ok := strings.Cut(full, ", ")
		if !ok {
			return login
		}
		if strings.ToLower(which) == Last {
			return last
		}
		return first
	default:
		return login
	}
}
