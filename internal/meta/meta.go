// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package meta holds the options shared by every cof command.
package meta

import (
	"context"

	"github.com/staranto/cofgo/internal/config"
)

// CacheSpec says where query results are cached and whether caching is on.
type CacheSpec struct {
	CacheRoot    string
	CacheEnabled bool
}

// Meta are the meta-options that are available on all or most commands.
type Meta struct {
	Args    []string
	Config  config.Type
	Context context.Context
	CacheSpec
	StartingDir string
}
