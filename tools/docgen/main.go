// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
	"github.com/urfave/cli/v3"

	"github.com/staranto/cofgo/internal/command"
)

// Doc generator driven by the cof command tree:
// - docs/commands/cof-<cmd>.md markdown built from names, usage and flags
// - docs/man/share/man1/cof-<cmd>.1 via md2man
// - docs/tldr/cof-<cmd>.md from the examples below

// examples feed the tldr pages, keyed by command path.
var examples = map[string][][2]string{
	"query": {
		{"Run a query and cache the result for a day", "cof query 'SELECT * FROM sales'"},
		{"Run a script, filling {country}", "cof query -V country=FR @report.sql"},
		{"Bypass the cache", "cof query --no-cache 'SELECT count(*) FROM sales'"},
		{"Insert a CSV file", "cof query -T sales -d sales.csv"},
	},
	"read": {
		{"Show a CSV file sorted by a column", "cof read -s -amount sales.csv"},
		{"Convert a file on S3 to parquet", "cof read --to s3://bucket/sales.parquet s3://bucket/sales.csv"},
	},
	"cache": {
		{"List cached results", "cof cache ls -t"},
		{"Remove results older than a week", "cof cache purge --hours 168"},
	},
	"fmt": {
		{"Group thousands keeping two decimals", "cof fmt group --digits 2 1234567.891"},
		{"Show the week number of a date", "cof fmt week --number 2024-03-15"},
	},
}

func main() {
	var (
		repoRoot           string
		writeOnlyIfChanged bool
	)

	flag.StringVar(&repoRoot, "root", ".", "repo root (default current dir)")
	flag.BoolVar(&writeOnlyIfChanged, "only-if-changed", true, "only write files if content changed")
	flag.Parse()

	commandsDir := filepath.Join(repoRoot, "docs", "commands")
	manOutDir := filepath.Join(repoRoot, "docs", "man", "share", "man1")
	tldrOutDir := filepath.Join(repoRoot, "docs", "tldr")

	for _, dir := range []string{commandsDir, manOutDir, tldrOutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatalf("creating output dir: %v", err)
		}
	}

	app, err := command.InitApp(context.Background(), []string{"cof"})
	if err != nil {
		fatalf("building commands: %v", err)
	}

	var processed int
	for _, cmd := range app.Commands {
		md := buildMarkdown(cmd)
		if err := writeFileIfChanged(filepath.Join(commandsDir, "cof-"+cmd.Name+".md"), []byte(md), writeOnlyIfChanged); err != nil {
			fatalf("writing markdown for %s: %v", cmd.Name, err)
		}

		manPath := filepath.Join(manOutDir, fmt.Sprintf("cof-%s.1", cmd.Name))
		if err := writeFileIfChanged(manPath, md2man.Render([]byte(md)), writeOnlyIfChanged); err != nil {
			fatalf("writing man page for %s: %v", cmd.Name, err)
		}

		tldr := buildTLDR(cmd.Name, cmd.Usage, examples[cmd.Name])
		tldrPath := filepath.Join(tldrOutDir, fmt.Sprintf("cof-%s.md", cmd.Name))
		if err := writeFileIfChanged(tldrPath, []byte(tldr), writeOnlyIfChanged); err != nil {
			fatalf("writing TLDR for %s: %v", cmd.Name, err)
		}

		processed++
	}

	if processed == 0 {
		fatalf("no commands found")
	}
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func writeFileIfChanged(path string, new []byte, onlyIfChanged bool) error {
	if !onlyIfChanged {
		return os.WriteFile(path, new, 0o644)
	}
	old, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.WriteFile(path, new, 0o644)
		}
		return err
	}
	if bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(new)) {
		return nil
	}
	return os.WriteFile(path, new, 0o644)
}

// buildMarkdown renders a man page in the markdown dialect md2man reads.
func buildMarkdown(cmd *cli.Command) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%% cof-%s(1)\n\n", cmd.Name)
	b.WriteString("# NAME\n\n")
	fmt.Fprintf(&b, "cof-%s - %s\n\n", cmd.Name, cmd.Usage)

	b.WriteString("# SYNOPSIS\n\n")
	usage := cmd.UsageText
	if usage == "" {
		usage = "cof " + cmd.Name + " [options]"
	}
	fmt.Fprintf(&b, "**%s**\n\n", usage)

	writeFlags(&b, "OPTIONS", cmd.Flags)

	if len(cmd.Commands) > 0 {
		b.WriteString("# COMMANDS\n\n")
		for _, sub := range cmd.Commands {
			fmt.Fprintf(&b, "**%s**\n: %s\n\n", sub.Name, sub.Usage)
		}
		for _, sub := range cmd.Commands {
			writeFlags(&b, strings.ToUpper(sub.Name)+" OPTIONS", sub.Flags)
		}
	}

	if exs := examples[cmd.Name]; len(exs) > 0 {
		b.WriteString("# EXAMPLES\n\n")
		for _, ex := range exs {
			fmt.Fprintf(&b, "%s:\n\n    %s\n\n", ex[0], ex[1])
		}
	}
	return b.String()
}

func writeFlags(b *strings.Builder, title string, flags []cli.Flag) {
	if len(flags) == 0 {
		return
	}

	lines := make([]string, 0, len(flags))
	for _, f := range flags {
		names := f.Names()
		for i, n := range names {
			if len(n) == 1 {
				names[i] = "-" + n
			} else {
				names[i] = "--" + n
			}
		}
		usage := ""
		if u, ok := f.(interface{ GetUsage() string }); ok {
			usage = u.GetUsage()
		}
		lines = append(lines, fmt.Sprintf("**%s**\n: %s\n\n", strings.Join(names, ", "), usage))
	}
	sort.Strings(lines)

	fmt.Fprintf(b, "# %s\n\n", title)
	for _, l := range lines {
		b.WriteString(l)
	}
}

func buildTLDR(cmd, short string, exs [][2]string) string {
	var b strings.Builder
	b.WriteString("# cof-" + cmd + "\n\n")
	if short != "" {
		b.WriteString("> " + short + ".\n")
	} else {
		b.WriteString("> cof " + cmd + "\n")
	}
	b.WriteString("> More information: https://github.com/staranto/cofgo.\n\n")

	if len(exs) == 0 {
		// Fallback examples
		b.WriteString("- Show help for the command:\n\n")
		b.WriteString("`cof " + cmd + " --help`\n")
		b.WriteString("\n")
		return b.String()
	}

	for i, ex := range exs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + strings.TrimSpace(ex[0]) + ":\n\n")
		b.WriteString("`" + sanitizeCommand(ex[1]) + "`\n")
	}
	return b.String()
}

func sanitizeCommand(s string) string {
	// For now, just compress runs of whitespace
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
