// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/cofgo/internal/errs"
)

// memS3 keeps objects in a map keyed by bucket/key.
type memS3 struct {
	objects map[string][]byte
	err     error
}

func (m *memS3) GetObject(_ context.Context, in *s3v2.GetObjectInput, _ ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.objects[awsv2.ToString(in.Bucket)+"/"+awsv2.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3v2.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (m *memS3) PutObject(_ context.Context, in *s3v2.PutObjectInput, _ ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[awsv2.ToString(in.Bucket)+"/"+awsv2.ToString(in.Key)] = b
	return &s3v2.PutObjectOutput{}, nil
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://bucket/key.csv", "bucket", "key.csv", true},
		{"s3://bucket/deep/path/file.parquet", "bucket", "deep/path/file.parquet", true},
		{"s3://bucket", "", "", false},
		{"s3://bucket/", "", "", false},
		{"/local/file.csv", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseURI(tt.uri)
			if !tt.ok {
				assert.True(t, errors.Is(err, errs.ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestIsURI(t *testing.T) {
	assert.True(t, IsURI("s3://b/k"))
	assert.True(t, IsURI("S3://b/k"))
	assert.False(t, IsURI("b/k"))
}

func TestStorePutGet(t *testing.T) {
	api := &memS3{objects: map[string][]byte{}}
	s := &Store{API: api}
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "s3://b/dir/x.txt", []byte("hello")))
	assert.Equal(t, []byte("hello"), api.objects["b/dir/x.txt"])

	got, err := s.Get(ctx, "s3://b/dir/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = s.Get(ctx, "s3://b/missing")
	assert.True(t, errors.Is(err, errs.ErrConnection))
}

func TestStoreErrors(t *testing.T) {
	s := &Store{API: &memS3{err: errors.New("denied")}}

	err := s.Put(context.Background(), "s3://b/k", []byte("x"))
	assert.True(t, errors.Is(err, errs.ErrConnection))
	assert.Contains(t, err.Error(), "denied")

	_, err = s.Get(context.Background(), "not-s3")
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestS3Options(t *testing.T) {
	var o s3v2.Options
	WithS3BaseEndpoint("http://localhost:9000")(&o)
	assert.Equal(t, "http://localhost:9000", awsv2.ToString(o.BaseEndpoint))
	assert.True(t, o.UsePathStyle)

	got := collect([]Option{WithProfile("dev"), WithRegion("eu-west-1"), WithEndpoint("http://x"), nil})
	assert.Equal(t, options{profile: "dev", region: "eu-west-1", endpoint: "http://x"}, got)
}

func TestLoadAWSConfigRegion(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")
	t.Setenv("AWS_PROFILE", "")

	cfg, err := LoadAWSConfig(context.Background(), WithRegion("eu-west-3"))
	require.NoError(t, err)
	assert.Equal(t, "eu-west-3", cfg.Region)

	client := NewS3(cfg, WithS3BaseEndpoint("http://localhost:9000"))
	assert.NotNil(t, client)
}
