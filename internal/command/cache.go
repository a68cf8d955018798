// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cofgo/internal/config"
	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/meta"
	"github.com/staranto/cofgo/internal/querycache"
	"github.com/staranto/cofgo/internal/table"
)

// queryWidth is how much of a cached query cache ls shows.
const queryWidth = 60

func cacheFor(cmd *cli.Command) (*querycache.Cache, error) {
	m := GetMeta(cmd)
	if m.CacheRoot == "" {
		return nil, errs.Config("no cache directory, set COF_CACHE_DIR or cache.dir")
	}
	return querycache.New(querycache.Config{Root: m.CacheRoot})
}

func CacheListAction(ctx context.Context, cmd *cli.Command) error {
	c, err := cacheFor(cmd)
	if err != nil {
		return err
	}

	entries, err := c.Entries()
	if err != nil {
		return err
	}
	log.Debugf("%d cache entries under %s", len(entries), c.Root())

	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		q := e.Query
		if r := []rune(q); len(r) > queryWidth {
			q = string(r[:queryWidth]) + "..."
		}
		rows = append(rows, []any{e.Key, e.Size, humanize.Bytes(uint64(e.Size)), e.ModTime, humanize.Time(e.ModTime), q})
	}
	t := table.FromRows([]string{"key", "bytes", "size", "modified", "age", "query"}, rows)
	return Emit(cmd, t)
}

func CachePurgeAction(ctx context.Context, cmd *cli.Command) error {
	c, err := cacheFor(cmd)
	if err != nil {
		return err
	}

	var n int
	if cmd.Bool("all") {
		n, err = c.PurgeAll()
	} else {
		maxAge := time.Duration(cmd.Int("hours")) * time.Hour
		if maxAge <= 0 {
			return errs.Config("--hours must be positive, or use --all")
		}
		n, err = c.Purge(maxAge)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(Writer(cmd), "purged %d files from %s\n", n, c.Root())
	return err
}

func CachePathAction(ctx context.Context, cmd *cli.Command) error {
	c, err := cacheFor(cmd)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(Writer(cmd), c.Root())
	return err
}

func CacheCommandBuilder(cmd *cli.Command, meta meta.Meta, globalFlags []cli.Flag) *cli.Command {
	hours, _ := config.GetInt("cache.clean", 24)
	if hours <= 0 {
		hours = 24
	}

	return &cli.Command{
		Name:      "cache",
		Usage:     "inspect and maintain the query cache",
		UsageText: `cof cache ls|purge|path [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:     "ls",
				Usage:    "list cached results",
				Metadata: map[string]any{"meta": meta},
				Flags:    NewGlobalFlags("cache"),
				Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
					return ctx, GlobalFlagsValidator(ctx, c)
				},
				Action: CacheListAction,
			},
			{
				Name:     "purge",
				Usage:    "remove cached files older than --hours",
				Metadata: map[string]any{"meta": meta},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "hours",
						Usage: "age in hours after which files are removed",
						Value: hours,
					},
					&cli.BoolFlag{
						Name:        "all",
						Usage:       "remove every cached file",
						HideDefault: true,
					},
				},
				Action: CachePurgeAction,
			},
			{
				Name:     "path",
				Usage:    "print the cache directory",
				Metadata: map[string]any{"meta": meta},
				Action:   CachePathAction,
			},
		},
	}
}
