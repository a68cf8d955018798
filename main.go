// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/staranto/cofgo/internal/command"
	"github.com/staranto/cofgo/internal/config"
	mylog "github.com/staranto/cofgo/internal/log"
	"github.com/staranto/cofgo/internal/querycache"
	"github.com/staranto/cofgo/internal/version"
)

var ctx = context.Background()

func main() {
	os.Exit(realMain())
}

func realMain() int {
	mylog.InitLogger()

	args := os.Args

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(version.Version)
			return 0
		}
	}

	// Best-effort: drop stale cache files when cache.clean asks for it.
	if _, err := cleanCache(); err != nil {
		// Non-fatal: print to stderr and continue.
		fmt.Fprintln(os.Stderr, err)
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// mangleArguments expands an argument set. An argument @name, where
// <command>.<name> is a list in the config file, is replaced by the list's
// entries split on whitespace. Without one, <command>.defaults is inserted
// right after the command. Other @ arguments, such as @file.sql, are left
// alone.
func mangleArguments(args []string) []string {
	// We know the first two args are going to be the executable and command.
	preamble := make([]string, 2)
	copy(preamble, args[:2])

	// Help is left to the cli so nested commands keep their names.
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return args
		}
	}

	cmd := args[1]
	set := "defaults"
	idx := -1
	for i := 2; i < len(args); i++ {
		name, ok := strings.CutPrefix(args[i], "@")
		if !ok || name == "" {
			continue
		}
		if _, err := config.GetStringSlice(cmd + "." + name); err == nil {
			set, idx = name, i
			break
		}
	}

	workingArgs := preamble
	rest := args[2:]
	if idx >= 0 {
		workingArgs = append(workingArgs, args[2:idx]...)
		rest = args[idx+1:]
	}

	setArgs, _ := config.GetStringSlice(cmd + "." + set)
	for _, arg := range setArgs {
		workingArgs = append(workingArgs, strings.Fields(arg)...)
	}
	workingArgs = append(workingArgs, rest...)

	log.Debugf("set=%s, args=%v", set, workingArgs)
	return workingArgs
}

// cleanCache purges cache files older than cache.clean hours. It returns
// how many files went.
func cleanCache() (int, error) {
	hours, _ := config.GetInt("cache.clean", 0)
	if hours <= 0 || !querycache.Enabled() {
		return 0, nil
	}

	root, ok := command.CacheRoot()
	if !ok {
		return 0, nil
	}

	c, err := querycache.New(querycache.Config{Root: root})
	if err != nil {
		return 0, err
	}

	n, err := c.Purge(time.Duration(hours) * time.Hour)
	if n > 0 {
		log.Debugf("cleaned %d cache files older than %dh", n, hours)
	}
	return n, err
}
