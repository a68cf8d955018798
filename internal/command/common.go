// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/staranto/cofgo/internal/aws"
	"github.com/staranto/cofgo/internal/config"
	"github.com/staranto/cofgo/internal/connector"
	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/meta"
	"github.com/staranto/cofgo/internal/output"
	"github.com/staranto/cofgo/internal/querycache"
	"github.com/staranto/cofgo/internal/reader"
	"github.com/staranto/cofgo/internal/table"
)

// AWSOptions turns the S3 flags into aws options.
func AWSOptions(cmd *cli.Command) []aws.Option {
	opts := []aws.Option{
		aws.WithProfile(cmd.String("aws-profile")),
		aws.WithRegion(cmd.String("aws-region")),
		aws.WithEndpoint(cmd.String("s3-endpoint")),
	}
	if n := cmd.Int("aws-retries"); n > 0 {
		opts = append(opts, aws.WithRetryer(func() awsv2.Retryer {
			return retry.AddWithMaxAttempts(retry.NewStandard(), n)
		}))
	}
	return opts
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// Writer returns where command output goes, the root command's Writer when
// one is set.
func Writer(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}

// OutputOptions collects the output flags and the configured colors.
func OutputOptions(cmd *cli.Command) output.Options {
	opts := output.Options{
		Format: strings.ToLower(cmd.String("output")),
		Titles: cmd.Bool("titles"),
		Color:  cmd.Bool("color"),
		Sort:   cmd.String("sort"),
		Filter: cmd.String("filter"),
		Attrs:  cmd.String("attrs"),
	}

	// Color defaults to on for a terminal unless asked otherwise.
	if !cmd.IsSet("color") {
		if f, ok := Writer(cmd).(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			opts.Color = true
		}
	}

	opts.Padding, _ = config.GetInt("padding", 0)
	opts.Colors = getColors("colors")
	return opts
}

// getColors returns configured color values for table rendering.
func getColors(key string) output.Colors {
	d := output.DefaultColors
	title, _ := config.GetString(key+".title", d.Title)
	even, _ := config.GetString(key+".even", d.Even)
	odd, _ := config.GetString(key+".odd", d.Odd)
	return output.Colors{Title: title, Even: even, Odd: odd}
}

// Emit renders t with the command's output flags.
func Emit(cmd *cli.Command, t *table.Table) error {
	if t.Cache != nil {
		log.WithFields(log.Fields{
			"key":     t.Cache.Key,
			"hit":     t.Cache.Hit,
			"created": t.Cache.CreatedAt,
		}).Info("cached result")
	}
	return output.Render(Writer(cmd), t, OutputOptions(cmd))
}

// OpenCache returns the query cache rooted where meta says, or nil when
// caching is off.
func OpenCache(m meta.Meta) (*querycache.Cache, error) {
	if !m.CacheEnabled {
		return nil, nil
	}
	return querycache.New(querycache.Config{Root: m.CacheRoot})
}

// CacheRoot resolves the cache root: COF_CACHE_DIR, then cache.dir from
// the config file, then the user cache directory.
func CacheRoot() (string, bool) {
	if dir, ok := os.LookupEnv("COF_CACHE_DIR"); ok && dir != "" {
		return dir, true
	}
	if dir, err := config.GetString("cache.dir"); err == nil && dir != "" {
		return expandHome(dir), true
	}
	return querycache.DefaultRoot()
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return home + string(os.PathSeparator) + rest
		}
	}
	return path
}

// ConnectorConfig loads the credentials named by --credentials and applies
// --engine.
func ConnectorConfig(cmd *cli.Command) (connector.Config, error) {
	path := connector.CredentialsPath(cmd.String("credentials"))
	cfg, err := connector.LoadCredentials(path)
	if err != nil {
		return connector.Config{}, err
	}

	if e := cmd.String("engine"); e != "" {
		if cfg.Engine, err = connector.ParseEngine(e); err != nil {
			return connector.Config{}, err
		}
	}
	if cfg.Engine == 0 {
		return connector.Config{}, errs.Config("no engine in %s, set DB_ENGINE or --engine", path)
	}
	log.Debugf("credentials: %s engine=%s", path, cfg.Engine)
	return cfg, nil
}

// ScriptArg returns arg, or the normalized contents of the file when arg is
// written @path.
func ScriptArg(ctx context.Context, arg string, values map[string]string) (string, error) {
	path, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	content, err := reader.Read(ctx, path, reader.Options{Values: values})
	if err != nil {
		return "", err
	}
	if content.Table != nil || content.Value != nil {
		return "", errs.Config("%s is a data file, expected a script", path)
	}
	return content.Text, nil
}

// ParseValues turns name=value pairs into a map.
func ParseValues(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errs.Config("invalid value %q, expected name=value", p)
		}
		values[k] = v
	}
	return values, nil
}
