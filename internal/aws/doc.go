// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package aws loads AWS configuration and moves objects in and out of S3
// for readers and writers that are handed s3:// paths.
package aws
