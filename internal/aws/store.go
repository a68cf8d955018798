// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/staranto/cofgo/internal/errs"
)

// Scheme prefixes S3 paths.
const Scheme = "s3://"

// ObjectAPI is the part of the S3 client a Store needs.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3v2.GetObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3v2.PutObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error)
}

// Store reads and writes whole objects.
type Store struct {
	API ObjectAPI
}

// NewStore builds a Store on an S3 client configured from opts.
func NewStore(ctx context.Context, opts ...Option) (*Store, error) {
	o := collect(opts)
	cfg, err := loadConfig(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	var s3opts []func(*s3v2.Options)
	if o.endpoint != "" {
		s3opts = append(s3opts, WithS3BaseEndpoint(o.endpoint))
	}
	return &Store{API: NewS3(cfg, s3opts...)}, nil
}

// IsURI reports whether path is an s3:// URI.
func IsURI(path string) bool {
	return strings.HasPrefix(strings.ToLower(path), Scheme)
}

// ParseURI splits s3://bucket/key into bucket and key.
func ParseURI(uri string) (string, string, error) {
	if !IsURI(uri) {
		return "", "", errs.Config("not an s3 uri %q", uri)
	}
	bucket, key, _ := strings.Cut(uri[len(Scheme):], "/")
	if bucket == "" || key == "" {
		return "", "", errs.Config("s3 uri %q needs a bucket and a key", uri)
	}
	return bucket, key, nil
}

// Get returns the body of the object at uri.
func (s *Store) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	out, err := s.API.GetObject(ctx, &s3v2.GetObjectInput{
		Bucket: awsv2.String(bucket),
		Key:    awsv2.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", errs.ErrConnection, uri, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", errs.ErrConnection, uri, err)
	}
	log.Debugf("read %d bytes from %s", len(b), uri)
	return b, nil
}

// Put stores body at uri, replacing any existing object.
func (s *Store) Put(ctx context.Context, uri string, body []byte) error {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return err
	}

	_, err = s.API.PutObject(ctx, &s3v2.PutObjectInput{
		Bucket:        awsv2.String(bucket),
		Key:           awsv2.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: awsv2.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %w", errs.ErrConnection, uri, err)
	}
	log.Debugf("wrote %d bytes to %s", len(body), uri)
	return nil
}
