// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/cofgo/internal/meta"
)

const bashCompletionScript = `# bash completion for cof
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_cof()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "query read cache fmt whoami completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local common="--attrs -a --color -c --filter -f --output -o --sort -s --titles -t"

    case "$cmd" in
        query)
            local opts="$common --kind -k --table -T --data -d --value -V --credentials -C --engine -e --cache --no-cache --freshness -F --cache-name"
            ;;
        read)
            local opts="$common --ext --sep --keep-comments --value -V --to --append --aws-profile --aws-region --s3-endpoint --aws-retries"
            ;;
        cache)
            COMPREPLY=( $(compgen -W "ls purge path --hours --all" -- "$cur") )
            return 0
            ;;
        fmt)
            COMPREPLY=( $(compgen -W "group week --digits --thousands --number" -- "$cur") )
            return 0
            ;;
        whoami)
            COMPREPLY=( $(compgen -W "--display" -- "$cur") )
            return 0
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    case "$prev" in
        --output|-o)
            COMPREPLY=( $(compgen -W "text json yaml csv" -- "$cur") )
            return 0
            ;;
        --engine|-e)
            COMPREPLY=( $(compgen -W "postgres mysql sqlite" -- "$cur") )
            return 0
            ;;
        --kind|-k)
            COMPREPLY=( $(compgen -W "SELECT INSERT DELETE COPY UNLOAD" -- "$cur") )
            return 0
            ;;
    esac

    if [[ "$cur" == -* ]]; then
        COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
        return 0
    fi

    COMPREPLY=( $(compgen -f -- "$cur") )
    return 0
}

complete -F _cof cof
`

const zshCompletionScript = `#compdef cof

_cof() {
  local -a cmds
  cmds=(
    'query:run a SQL statement, caching SELECT results'
    'read:read a data or script file'
    'cache:inspect and maintain the query cache'
    'fmt:format numbers and dates'
    'whoami:show the name of the current user'
    'completion:generate shell completion script'
  )

  local -a common
  common=(
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-a --attrs)'{-a,--attrs}'[columns to show]:attrs'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-o --output)'{-o,--output}'[output format]:format:(text json yaml csv)'
  '(-s --sort)'{-s,--sort}'[sort columns]:columns'
  '(-t --titles)'{-t,--titles}'[show titles]'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'cof commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    query)
      _arguments -C \
        $common \
        '(-k --kind)'{-k,--kind}'[statement kind]:kind:(SELECT INSERT DELETE COPY UNLOAD)' \
        '(-T --table)'{-T,--table}'[table]:table' \
        '(-d --data)'{-d,--data}'[data file to insert]:file:_files' \
        '*'{-V,--value}'[name=value]:value' \
        '(-C --credentials)'{-C,--credentials}'[credentials]:credentials:_files' \
        '(-e --engine)'{-e,--engine}'[engine]:engine:(postgres mysql sqlite)' \
        '--cache[use the cache]' \
        '--no-cache[bypass the cache]' \
        '(-F --freshness)'{-F,--freshness}'[freshness]:freshness' \
        '--cache-name[cache name]:name' \
        '*:script:_files'
      ;;
    read)
      _arguments -C \
        $common \
        '--ext[file type]:ext:(csv json yaml parquet sql)' \
        '--sep[CSV separator]:sep' \
        '--keep-comments[keep comments]' \
        '*'{-V,--value}'[name=value]:value' \
        '--to[destination]:file:_files' \
        '--append[append text]' \
        '--aws-profile[AWS profile]:profile' \
        '--aws-region[AWS region]:region' \
        '--s3-endpoint[S3 endpoint URL]:url' \
        '--aws-retries[S3 attempts]:retries' \
        '1:file:_files'
      ;;
    cache)
      _arguments '1: :((ls purge path))' '--hours[age in hours]:hours' '--all[remove everything]'
      ;;
    fmt)
      _arguments '1: :((group week))' '--digits[fraction digits]:digits' '--thousands[in thousands]' '--number[week number]'
      ;;
    whoami)
      _arguments '--display[name part]:part:(first last full)'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C $common '*:file:_files'
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _cof cof
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := Writer(cmd)

	shell := cmd.Args().First()
	if shell == "" {
		// Try to detect from SHELL.
		sh := os.Getenv("SHELL")
		switch {
		case strings.HasSuffix(sh, "zsh"):
			shell = "zsh"
		case strings.HasSuffix(sh, "bash"):
			shell = "bash"
		}
	}

	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		fmt.Fprintln(os.Stderr, "usage: cof completion [bash|zsh]")
	}
	return nil
}

func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "cof completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
