// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cofgo/internal/config"
	"github.com/staranto/cofgo/internal/meta"
	"github.com/staranto/cofgo/internal/querycache"
	"github.com/staranto/cofgo/internal/version"
)

// InitApp builds the cof command tree for args.
func InitApp(ctx context.Context, args []string) (*cli.Command, error) {
	sd, _ := os.Getwd()

	// The arg[1] immediately following the binary (arg[0]) is the cof
	// subcommand and also represents the namespace key to be used when retrieving
	// config values. arg[1] could be -h/--help, so ignore it if it appears to be
	// a flag.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	config.Config.Namespace = ns
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Debug("running without a config file")
		cfg = config.Type{Namespace: ns}
		config.Config = cfg
	}

	meta := meta.Meta{
		Args:        args,
		Config:      cfg,
		Context:     ctx,
		StartingDir: sd,
	}
	meta.CacheRoot, meta.CacheEnabled = CacheRoot()
	meta.CacheEnabled = meta.CacheEnabled && querycache.Enabled()
	log.Debugf("cache root=%s enabled=%t", meta.CacheRoot, meta.CacheEnabled)

	app := &cli.Command{
		Name:  "cof",
		Usage: "cached SQL queries and data file helpers",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "cof version info (" + version.Version + ")",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		QueryCommandBuilder(app, meta, nil),
		ReadCommandBuilder(app, meta, nil),
		CacheCommandBuilder(app, meta, nil),
		FmtCommandBuilder(app, meta, nil),
		WhoamiCommandBuilder(app, meta, nil),
		CompletionCommandBuilder(app, meta),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sortFlags(cmd)
	}

	return app, nil
}

func sortFlags(cmd *cli.Command) {
	sort.Slice(cmd.Flags, func(i, j int) bool {
		return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
	})
	for _, sub := range cmd.Commands {
		sortFlags(sub)
	}
}
