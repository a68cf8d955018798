// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package output sorts, filters and emits tables as text, json, yaml or csv.
package output
