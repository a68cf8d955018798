// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/cofgo/internal/connector"
	"github.com/staranto/cofgo/internal/freshness"
	"github.com/staranto/cofgo/internal/output"
)

// GlobalFlagsValidator checks flag combinations that single flag validators
// cannot see.
func GlobalFlagsValidator(ctx context.Context, c *cli.Command) error {
	if c.String("cache-name") != "" && !c.Bool("cache") {
		return errors.New("--cache-name needs the cache, drop --no-cache")
	}
	return nil
}

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if strings.HasPrefix(value.(string), "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func OutputValidator(value any) error {
	if !slices.Contains(output.Formats, strings.ToLower(value.(string))) {
		return fmt.Errorf("must be one of %v", output.Formats)
	}
	return nil
}

func FreshnessValidator(value any) error {
	_, err := freshness.Parse(value.(string))
	return err
}

func EngineValidator(value any) error {
	if value.(string) == "" {
		return nil
	}
	_, err := connector.ParseEngine(value.(string))
	return err
}
