// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package format

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup(t *testing.T) {
	tests := []struct {
		nb     float64
		digits int
		want   string
	}{
		{12345, 0, "12,345"},
		{12345.54321, 3, "12,345.543"},
		{12345.6, 0, "12,346"},
		{1.239, 2, "1.23"},
		{1234567.891, 2, "1,234,567.89"},
		{-9876543, 0, "-9,876,543"},
		{12.54, 3, "12.54"},
		{100, 2, "100.0"},
		{-0.5, 1, "-0.5"},
		{0, 2, "-"},
		{math.NaN(), 0, "-"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Group(tt.nb, tt.digits), "Group(%v, %d)", tt.nb, tt.digits)
	}

	assert.Equal(t, "12.54%", GroupUnit(12.54, 3, "%"))
}

func TestReplaceZero(t *testing.T) {
	assert.Equal(t, "-", ReplaceZero(0, 0))
	assert.Equal(t, "12", ReplaceZero(12345, 0))
	assert.Equal(t, "12.3", ReplaceZero(12345, 1))
	assert.Equal(t, "1,234", ReplaceZero(1234000, 0))
}

func TestAddZero(t *testing.T) {
	assert.Equal(t, "02", AddZero(2))
	assert.Equal(t, "00", AddZero(0))
	assert.Equal(t, "10", AddZero(10))
	assert.Equal(t, "123", AddZero(123))
}

func TestStr2Bool(t *testing.T) {
	for _, v := range []any{"true", "T", "yes", "Y", 1, "1", true} {
		assert.True(t, Str2Bool(v), "%v", v)
	}
	for _, v := range []any{"false", "no", 0, "", nil, 2, "maybe"} {
		assert.False(t, Str2Bool(v), "%v", v)
	}
}

func TestWeekSunday(t *testing.T) {
	wed := time.Date(2020, 4, 15, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2020, 4, 12, 0, 0, 0, 0, time.UTC), WeekSunday(wed))
	assert.Equal(t, 16, WeekNumber(wed))

	sun := time.Date(2020, 4, 12, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2020, 4, 12, 0, 0, 0, 0, time.UTC), WeekSunday(sun))

	sat := time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2020, 12, 27, 0, 0, 0, 0, time.UTC), WeekSunday(sat))
	assert.Equal(t, 53, WeekNumber(sat))
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		full  string
		which string
		want  string
	}{
		{"Doe, Jane", First, "Jane"},
		{"Doe, Jane", "", "Jane"},
		{"Doe, Jane", Last, "Doe"},
		{"Doe, Jane", Full, "Doe, Jane"},
		{"Jane Doe", First, "jdoe"},
		{"", Full, "jdoe"},
		{"Doe, Jane", "middle", "jdoe"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, displayName(tt.full, "jdoe", tt.which), "%q/%q", tt.full, tt.which)
	}

	name, err := DisplayName(Full)
	require.NoError(t, err)
	assert.NotEmpty(t, name)
}
