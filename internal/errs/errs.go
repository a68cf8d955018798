// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package errs

import (
	"errors"
	"fmt"
)

// Error classes surfaced to callers. Test with errors.Is.
var (
	// ErrConfig is a bad freshness value, engine name, cache root, etc.
	ErrConfig = errors.New("configuration error")
	// ErrConnection is a failure to reach or talk to a data source.
	ErrConnection = errors.New("connection error")
	// ErrCorruptCache is a cache artifact that could not be decoded.
	ErrCorruptCache = errors.New("corrupt cache entry")
	// ErrInsertSize is an insert attempted with no rows.
	ErrInsertSize = errors.New("no rows to insert")
)

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and preserves the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	// Append the original err as the last arg for %w.
	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// Config returns an ErrConfig with a formatted reason.
func Config(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
