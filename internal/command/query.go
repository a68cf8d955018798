// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/meta"
	"github.com/staranto/cofgo/internal/querycache"
	"github.com/staranto/cofgo/internal/reader"
	"github.com/staranto/cofgo/internal/sqlexec"
	"github.com/staranto/cofgo/internal/table"
)

func QueryCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	values, err := ParseValues(cmd.StringSlice("value"))
	if err != nil {
		return err
	}

	sql, err := ScriptArg(ctx, cmd.Args().First(), values)
	if err != nil {
		return err
	}

	var data *table.Table
	if path := cmd.String("data"); path != "" {
		content, err := reader.Read(ctx, path, reader.Options{})
		if err != nil {
			return err
		}
		if content.Table == nil {
			return errs.Config("%s holds no table to insert", path)
		}
		data = content.Table
	}

	cfg, err := ConnectorConfig(cmd)
	if err != nil {
		return err
	}

	var cache *querycache.Cache
	if cmd.Bool("cache") {
		if cache, err = OpenCache(m); err != nil {
			return err
		}
	}

	executor := &sqlexec.Executor{Cache: cache, Open: sqlexec.Connector(cfg)}
	res, err := executor.Run(ctx, sqlexec.Request{
		SQL:       sql,
		Kind:      cmd.String("kind"),
		Table:     cmd.String("table"),
		Data:      data,
		Cache:     cache != nil,
		CacheTime: cmd.String("freshness"),
		CacheName: cmd.String("cache-name"),
	})
	if err != nil {
		return err
	}

	if res.Table != nil {
		return Emit(cmd, res.Table)
	}

	_, err = fmt.Fprintf(Writer(cmd), "%s %s: %d rows\n", res.Kind, res.Target, res.RowsAffected)
	return err
}

func QueryCommandBuilder(cmd *cli.Command, meta meta.Meta, globalFlags []cli.Flag) *cli.Command {
	src := meta.Config.Source

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "kind",
			Aliases: []string{"k"},
			Usage:   "statement kind: SELECT, INSERT, DELETE, COPY or UNLOAD",
		},
		&cli.StringFlag{
			Name:    "table",
			Aliases: []string{"T"},
			Usage:   "table the statement works on",
		},
		&cli.StringFlag{
			Name:      "data",
			Aliases:   []string{"d"},
			Usage:     "data file (csv, json, parquet or s3:// URI) whose rows are inserted",
			TakesFile: true,
		},
		&cli.StringSliceFlag{
			Name:    "value",
			Aliases: []string{"V"},
			Usage:   "name=value filling {name} in a @file script",
		},
		NewCredentialsFlag("query", src),
		NewEngineFlag("query", src),
	}
	flags = append(flags, NewCacheFlags("query")...)
	flags = append(flags, NewGlobalFlags("query")...)

	return &cli.Command{
		Name:      "query",
		Usage:     "run a SQL statement, caching SELECT results",
		UsageText: `cof query [options] SQL|@file.sql`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, GlobalFlagsValidator(ctx, c)
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() == 0 && c.String("data") == "" {
				return errs.Config("expected a query, @file or --data")
			}
			return QueryCommandAction(ctx, c)
		},
	}
}
