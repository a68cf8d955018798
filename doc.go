// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// cofgo is the main package for the cof command line tool. It runs SQL
// against Postgres, MySQL or SQLite, caches SELECT results on disk and moves
// data files between formats, locally or on S3.
package main
