// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/format"
	"github.com/staranto/cofgo/internal/meta"
)

func FmtGroupAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return errs.Config("expected one NUMBER, got %d", cmd.NArg())
	}
	nb, err := strconv.ParseFloat(cmd.Args().First(), 64)
	if err != nil {
		return errs.Config("not a number: %q", cmd.Args().First())
	}

	digits := cmd.Int("digits")
	s := format.Group(nb, digits)
	if cmd.Bool("thousands") {
		s = format.ReplaceZero(nb, digits)
	}
	_, err = fmt.Fprintln(Writer(cmd), s)
	return err
}

func FmtWeekAction(ctx context.Context, cmd *cli.Command) error {
	day := time.Now()
	if arg := cmd.Args().First(); arg != "" {
		var err error
		if day, err = time.ParseInLocation(time.DateOnly, arg, time.Local); err != nil {
			return errs.Config("expected a date written %s, got %q", time.DateOnly, arg)
		}
	}

	var s string
	if cmd.Bool("number") {
		s = strconv.Itoa(format.WeekNumber(day))
	} else {
		s = format.WeekSunday(day).Format(time.DateOnly)
	}
	_, err := fmt.Fprintln(Writer(cmd), s)
	return err
}

func FmtCommandBuilder(cmd *cli.Command, meta meta.Meta, globalFlags []cli.Flag) *cli.Command {
	return &cli.Command{
		Name:      "fmt",
		Usage:     "format numbers and dates for reports",
		UsageText: `cof fmt group|week [options] VALUE`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:      "group",
				Usage:     "group the thousands of a number",
				UsageText: `cof fmt group [--digits D] [--thousands] NUMBER`,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "digits",
						Usage: "fraction digits to keep, truncated",
					},
					&cli.BoolFlag{
						Name:        "thousands",
						Aliases:     []string{"k"},
						Usage:       "show the number in thousands, 0 as -",
						HideDefault: true,
					},
				},
				Action: FmtGroupAction,
			},
			{
				Name:      "week",
				Usage:     "show the Sunday starting the week of DATE, today by default",
				UsageText: `cof fmt week [--number] [YYYY-MM-DD]`,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "number",
						Aliases:     []string{"n"},
						Usage:       "show the week number instead",
						HideDefault: true,
					},
				},
				Action: FmtWeekAction,
			},
		},
	}
}
