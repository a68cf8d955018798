// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/meta"
	"github.com/staranto/cofgo/internal/output"
	"github.com/staranto/cofgo/internal/reader"
)

func ReadCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	values, err := ParseValues(cmd.StringSlice("value"))
	if err != nil {
		return err
	}

	opts := reader.Options{
		Extension:    cmd.String("ext"),
		KeepComments: cmd.Bool("keep-comments"),
		Values:       values,
		AWS:          AWSOptions(cmd),
	}
	if sep := cmd.String("sep"); sep != "" {
		r, size := utf8.DecodeRuneInString(sep)
		if size != len(sep) {
			return errs.Config("--sep must be a single character, not %q", sep)
		}
		opts.Sep = r
	}

	path := cmd.Args().First()
	content, err := reader.Read(ctx, path, opts)
	if err != nil {
		return err
	}

	dest := cmd.String("to")
	w := Writer(cmd)

	switch {
	case content.Table != nil && dest != "":
		if err := reader.WriteTable(ctx, dest, content.Table, reader.Options{AWS: opts.AWS}); err != nil {
			return err
		}
		log.Infof("wrote %d rows to %s", content.Table.NumRows(), dest)
		return nil

	case content.Table != nil:
		return Emit(cmd, content.Table)

	case content.Value != nil:
		if dest != "" {
			return errs.Config("%s is not a table and cannot be written to %s", path, dest)
		}
		if cmd.String("output") == output.JSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(content.Value)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(content.Value); err != nil {
			return err
		}
		return enc.Close()

	case dest != "":
		return reader.WriteText(ctx, dest, content.Text, cmd.Bool("append"), reader.Options{AWS: opts.AWS})

	default:
		_, err := fmt.Fprintln(w, content.Text)
		return err
	}
}

func ReadCommandBuilder(cmd *cli.Command, meta meta.Meta, globalFlags []cli.Flag) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "ext",
			Usage: "treat the file as this type instead of its extension",
		},
		&cli.StringFlag{
			Name:  "sep",
			Usage: "CSV field separator",
		},
		&cli.BoolFlag{
			Name:        "keep-comments",
			Usage:       "keep comments in script files",
			HideDefault: true,
		},
		&cli.StringSliceFlag{
			Name:    "value",
			Aliases: []string{"V"},
			Usage:   "name=value filling {name} in a script",
		},
		&cli.StringFlag{
			Name:  "to",
			Usage: "write what was read to this path or s3:// URI (csv, json, parquet or text)",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.BoolFlag{
			Name:        "append",
			Usage:       "append text to --to instead of replacing it",
			HideDefault: true,
		},
	}

	return &cli.Command{
		Name:      "read",
		Usage:     "read a data or script file, local or on S3",
		UsageText: `cof read [options] PATH`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append(append(flags, NewAWSFlags("read")...), NewGlobalFlags("read")...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, GlobalFlagsValidator(ctx, c)
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 1 {
				return errs.Config("expected one PATH, got %d", c.NArg())
			}
			return ReadCommandAction(ctx, c)
		},
	}
}
