// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/cofgo/internal/format"
	"github.com/staranto/cofgo/internal/meta"
)

var displayParts = []string{format.First, format.Last, format.Full}

func WhoamiCommandAction(ctx context.Context, cmd *cli.Command) error {
	name, err := format.DisplayName(cmd.String("display"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(Writer(cmd), name)
	return err
}

func WhoamiCommandBuilder(cmd *cli.Command, meta meta.Meta, globalFlags []cli.Flag) *cli.Command {
	return &cli.Command{
		Name:      "whoami",
		Usage:     "show the name of the current user",
		UsageText: `cof whoami [--display first|last|full]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "display",
				Usage: "part of the name to show: first, last or full",
				Value: format.First,
				Validator: func(value string) error {
					if !slices.Contains(displayParts, strings.ToLower(value)) {
						return fmt.Errorf("must be one of %v", displayParts)
					}
					return nil
				},
			},
		},
		Action: WhoamiCommandAction,
	}
}
