// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cofgo/internal/config"
	"github.com/staranto/cofgo/internal/freshness"
)

// NewGlobalFlags returns the output flags shared by every command that
// renders a table. params[0] is the command name used to namespace config
// keys.
func NewGlobalFlags(params ...string) (flags []cli.Flag) {
	src := config.Config.Source

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "attrs",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of column[:title[:transform]] to show",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"attrs", altsrc.StringSourcer(src)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"color", altsrc.StringSourcer(src)),
				yaml.YAML("color", altsrc.StringSourcer(src)),
			),
			Value: false,
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format (text, json, yaml, csv)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("COF_OUTPUT"),
				yaml.YAML(params[0]+"."+"output", altsrc.StringSourcer(src)),
				yaml.YAML("output", altsrc.StringSourcer(src)),
			),
			Value: "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of columns to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"sort", altsrc.StringSourcer(src)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"titles", altsrc.StringSourcer(src)),
				yaml.YAML("titles", altsrc.StringSourcer(src)),
			),
			Value: false,
		},
	}

	return
}

// NewCacheFlags returns the flags that steer the query cache.
func NewCacheFlags(params ...string) []cli.Flag {
	src := config.Config.Source

	return []cli.Flag{
		&cli.BoolWithInverseFlag{
			Name:  "cache",
			Usage: "serve SELECT results from the local cache when fresh",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"cache.enabled", altsrc.StringSourcer(src)),
				yaml.YAML("cache.enabled", altsrc.StringSourcer(src)),
			),
			Value: true,
		},
		&cli.StringFlag{
			Name:    "freshness",
			Aliases: []string{"F"},
			Usage:   "how long a cached result stays fresh, e.g. 30m, 2 hours, 1d",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("COF_FRESHNESS"),
				yaml.YAML(params[0]+"."+"cache.freshness", altsrc.StringSourcer(src)),
				yaml.YAML("cache.freshness", altsrc.StringSourcer(src)),
			),
			Value: freshness.Default,
			Validator: func(value string) error {
				return FlagValidators(value, FreshnessValidator)
			},
		},
		&cli.StringFlag{
			Name:  "cache-name",
			Usage: "store the result under this name instead of the query hash",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
	}
}

// NewCredentialsFlag returns the flag naming the credentials file. A bare
// name is looked up in the credentials directory.
func NewCredentialsFlag(params ...string) *cli.StringFlag {
	flag := &cli.StringFlag{
		Name:    "credentials",
		Aliases: []string{"C"},
		Usage:   "credentials file, or a name under $COF_CREDENTIALS_DIR",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("COF_CREDENTIALS"),
		),
		Value: "default",
		Validator: func(value string) error {
			return FlagValidators(value, JammedFlagValidator)
		},
	}

	if len(params) == 2 {
		flag = NameSpacedValueChainFlagFromConfigFile(params[0], params[1], flag)
	}

	return flag
}

// NewEngineFlag returns the flag overriding the engine of the credentials.
func NewEngineFlag(params ...string) *cli.StringFlag {
	flag := &cli.StringFlag{
		Name:    "engine",
		Aliases: []string{"e"},
		Usage:   "database engine (postgres, mysql, sqlite). Overrides the credentials",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("COF_ENGINE"),
		),
		Validator: func(value string) error {
			return FlagValidators(value, EngineValidator)
		},
	}

	if len(params) == 2 {
		flag = NameSpacedValueChainFlagFromConfigFile(params[0], params[1], flag)
	}

	return flag
}

// NewAWSFlags returns the flags used to reach S3. Unset flags leave the
// SDK's environment and shared config chain in charge.
func NewAWSFlags(params ...string) []cli.Flag {
	src := config.Config.Source

	return []cli.Flag{
		&cli.StringFlag{
			Name:  "aws-profile",
			Usage: "shared config profile for s3:// paths",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"aws.profile", altsrc.StringSourcer(src)),
				yaml.YAML("aws.profile", altsrc.StringSourcer(src)),
			),
		},
		&cli.StringFlag{
			Name:  "aws-region",
			Usage: "region for s3:// paths",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"aws.region", altsrc.StringSourcer(src)),
				yaml.YAML("aws.region", altsrc.StringSourcer(src)),
			),
		},
		&cli.StringFlag{
			Name:  "s3-endpoint",
			Usage: "S3 compatible endpoint URL, e.g. a local MinIO",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"aws.endpoint", altsrc.StringSourcer(src)),
				yaml.YAML("aws.endpoint", altsrc.StringSourcer(src)),
			),
		},
		&cli.IntFlag{
			Name:  "aws-retries",
			Usage: "maximum attempts per S3 request, 0 for the SDK default",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"aws.retries", altsrc.StringSourcer(src)),
				yaml.YAML("aws.retries", altsrc.StringSourcer(src)),
			),
		},
	}
}

// NameSpacedValueChainFlagFromConfigFile adds namespaced and global config file
// sources to the given flag's Sources chain.
func NameSpacedValueChainFlagFromConfigFile(ns string, path string, flag *cli.StringFlag) *cli.StringFlag {
	src := yaml.YAML(ns+"."+flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	src = yaml.YAML(flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	return flag
}
