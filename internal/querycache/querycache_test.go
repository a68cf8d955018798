// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package querycache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/freshness"
	"github.com/staranto/cofgo/internal/table"
)

type fakeConn struct {
	src    *fakeSource
	closed bool
}

func (c *fakeConn) Query(_ context.Context, sql string) (*table.Table, error) {
	c.src.queries = append(c.src.queries, sql)
	if c.src.queryErr != nil {
		return nil, c.src.queryErr
	}
	return table.FromRows(
		[]string{"id", "name", "at"},
		[][]any{
			{1, "alpha", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
			{2, nil, time.Date(2024, 1, 3, 3, 4, 5, 0, time.UTC)},
		},
	), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	c.src.closes++
	return nil
}

type fakeSource struct {
	opens    int
	closes   int
	queries  []string
	openErr  error
	queryErr error
}

func (s *fakeSource) factory() Factory {
	return func(context.Context) (Conn, error) {
		s.opens++
		if s.openErr != nil {
			return nil, s.openErr
		}
		return &fakeConn{src: s}, nil
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newCache(t *testing.T) (*Cache, *clock) {
	t.Helper()
	clk := &clock{t: time.Now()}
	c, err := New(Config{Root: t.TempDir(), Now: clk.now})
	require.NoError(t, err)
	return c, clk
}

const q = "SELECT id, name, at FROM things"

func TestMissThenHit(t *testing.T) {
	c, _ := newCache(t)
	src := &fakeSource{}
	ctx := context.Background()

	first, err := c.Fetch(ctx, Request{Query: q, Kind: Read}, src.factory())
	require.NoError(t, err)
	assert.Equal(t, 1, src.opens)
	assert.Equal(t, 1, src.closes)
	require.NotNil(t, first.Cache)
	assert.False(t, first.Cache.Hit)

	second, err := c.Fetch(ctx, Request{Query: q, Kind: Read}, src.factory())
	require.NoError(t, err)
	assert.Equal(t, 1, src.opens, "hit must not open a connection")
	require.NotNil(t, second.Cache)
	assert.True(t, second.Cache.Hit)
	assert.True(t, first.Equal(second))

	third, err := c.Fetch(ctx, Request{Query: q, Kind: Read}, src.factory())
	require.NoError(t, err)
	assert.Equal(t, 1, src.opens)
	assert.Equal(t, second.Columns, third.Columns)
	assert.Equal(t, second.Rows, third.Rows)
}

func TestFilesWritten(t *testing.T) {
	c, _ := newCache(t)
	src := &fakeSource{}

	_, err := c.Fetch(context.Background(), Request{Query: q, Kind: Read}, src.factory())
	require.NoError(t, err)

	dataPath, queryPath := c.Paths(Key(q))
	assert.Equal(t, filepath.Join(c.Root(), "data", Key(q)+".parquet"), dataPath)
	assert.Equal(t, filepath.Join(c.Root(), "queries", Key(q)), queryPath)

	body, err := os.ReadFile(queryPath)
	require.NoError(t, err)
	assert.Equal(t, q, string(body))

	info, err := os.Stat(dataPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), DefaultMinSize)

	for _, d := range []string{"data", "queries"} {
		des, err := os.ReadDir(filepath.Join(c.Root(), d))
		require.NoError(t, err)
		assert.Len(t, des, 1, "leftover files in %s", d)
	}
}

func TestExpiry(t *testing.T) {
	c, clk := newCache(t)
	src := &fakeSource{}
	ctx := context.Background()
	req := Request{Query: q, Kind: Read, Freshness: "1s"}

	_, err := c.Fetch(ctx, req, src.factory())
	require.NoError(t, err)
	assert.Equal(t, 1, src.opens)

	dataPath, _ := c.Paths(Key(q))
	info, err := os.Stat(dataPath)
	require.NoError(t, err)

	clk.t = info.ModTime().Add(2 * time.Second)
	_, err = c.Fetch(ctx, req, src.factory())
	require.NoError(t, err)
	assert.Equal(t, 2, src.opens)
}

func TestExpiryByMtime(t *testing.T) {
	root := t.TempDir()
	c, err := New(Config{Root: root})
	require.NoError(t, err)
	src := &fakeSource{}
	ctx := context.Background()
	req := Request{Query: q, Kind: Read, Freshness: "1 hour"}

	_, err = c.Fetch(ctx, req, src.factory())
	require.NoError(t, err)

	dataPath, _ := c.Paths(Key(q))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(dataPath, old, old))

	res, err := c.Fetch(ctx, req, src.factory())
	require.NoError(t, err)
	assert.Equal(t, 2, src.opens)
	assert.False(t, res.Cache.Hit)
	assert.WithinDuration(t, time.Now(), res.Cache.CreatedAt, time.Minute)
}

func TestKeyDeterminism(t *testing.T) {
	assert.Equal(t, Key(q), Key(q))
	assert.NotEqual(t, Key(q), Key(q+" "))
	assert.NotEqual(t, Key("SELECT 1"), Key("SELECT 2"))
	assert.Len(t, Key(q), 56)
	// SHA-224 of the empty string.
	assert.Equal(t, "d14a028c2a3a2bc9476102bb288234c415a2b01f828ea62ac5b3e42f", Key(""))

	c, _ := newCache(t)
	d1, q1 := c.Paths(Key(q))
	d2, q2 := c.Paths(Key(q))
	assert.Equal(t, d1, d2)
	assert.Equal(t, q1, q2)
}

func TestWriteBypassesCache(t *testing.T) {
	c, _ := newCache(t)
	src := &fakeSource{}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := c.Fetch(ctx, Request{Query: "DELETE FROM things", Kind: Write}, src.factory())
		require.NoError(t, err)
		assert.Nil(t, res.Cache)
	}
	assert.Equal(t, 2, src.opens)

	des, err := os.ReadDir(c.Root())
	require.NoError(t, err)
	assert.Empty(t, des, "write queries must not touch the cache")
}

func TestSmallFileTreatedAbsent(t *testing.T) {
	for _, size := range []int{0, 4, int(DefaultMinSize)} {
		c, _ := newCache(t)
		require.NoError(t, c.EnsureDirs())
		dataPath, _ := c.Paths(Key(q))
		require.NoError(t, os.WriteFile(dataPath, make([]byte, size), 0o600))

		src := &fakeSource{}
		res, err := c.Fetch(context.Background(), Request{Query: q, Kind: Read}, src.factory())
		require.NoError(t, err)
		assert.Equal(t, 1, src.opens, "size %d", size)
		assert.Equal(t, 2, res.NumRows())
	}
}

func TestCorruptLargeFileFallsBack(t *testing.T) {
	c, _ := newCache(t)
	require.NoError(t, c.EnsureDirs())
	dataPath, _ := c.Paths(Key(q))
	junk := []byte("this is not a parquet file but it is long enough to pass the size check")
	require.NoError(t, os.WriteFile(dataPath, junk, 0o600))

	src := &fakeSource{}
	res, err := c.Fetch(context.Background(), Request{Query: q, Kind: Read}, src.factory())
	require.NoError(t, err)
	assert.Equal(t, 1, src.opens)
	assert.Equal(t, 2, res.NumRows())

	// The entry was rewritten and is usable again.
	_, err = c.Fetch(context.Background(), Request{Query: q, Kind: Read}, src.factory())
	require.NoError(t, err)
	assert.Equal(t, 1, src.opens)
}

func TestExplicitName(t *testing.T) {
	c, _ := newCache(t)
	src := &fakeSource{}
	ctx := context.Background()

	res, err := c.Fetch(ctx, Request{Query: q, Kind: Read, Name: "daily"}, src.factory())
	require.NoError(t, err)
	assert.Equal(t, "daily", res.Cache.Key)
	assert.Equal(t, filepath.Join(c.Root(), "data", "daily.parquet"), res.Cache.DataPath)

	// Same name, different query text: the name wins.
	_, err = c.Fetch(ctx, Request{Query: "SELECT 1", Kind: Read, Name: "daily"}, src.factory())
	require.NoError(t, err)
	assert.Equal(t, 1, src.opens)

	_, err = c.Fetch(ctx, Request{Query: q, Kind: Read, Name: "../escape"}, src.factory())
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestMetadata(t *testing.T) {
	c, _ := newCache(t)
	src := &fakeSource{}

	res, err := c.Fetch(context.Background(), Request{Query: q, Kind: Read, Freshness: "2 days"}, src.factory())
	require.NoError(t, err)
	require.NotNil(t, res.Cache)

	dataPath, queryPath := c.Paths(Key(q))
	info, err := os.Stat(dataPath)
	require.NoError(t, err)

	assert.Equal(t, Key(q), res.Cache.Key)
	assert.Equal(t, dataPath, res.Cache.DataPath)
	assert.Equal(t, queryPath, res.Cache.QueryPath)
	assert.Equal(t, info.ModTime(), res.Cache.CreatedAt)
	assert.Equal(t, freshness.Window{Value: 2, Unit: freshness.Days}, res.Cache.Freshness)
}

func TestBadFreshnessFailsFast(t *testing.T) {
	c, _ := newCache(t)
	src := &fakeSource{}

	_, err := c.Fetch(context.Background(), Request{Query: q, Kind: Read, Freshness: "24x"}, src.factory())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfig))
	assert.Contains(t, err.Error(), "24x")
	assert.Equal(t, 0, src.opens)
}

func TestErrorsPropagate(t *testing.T) {
	c, _ := newCache(t)
	boom := errors.New("boom")

	src := &fakeSource{openErr: boom}
	_, err := c.Fetch(context.Background(), Request{Query: q, Kind: Read}, src.factory())
	assert.ErrorIs(t, err, boom)

	src = &fakeSource{queryErr: boom}
	_, err = c.Fetch(context.Background(), Request{Query: q, Kind: Read}, src.factory())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, src.closes)

	dataPath, _ := c.Paths(Key(q))
	_, err = os.Stat(dataPath)
	assert.True(t, os.IsNotExist(err), "failed query must not leave a cache entry")
}

func TestEntriesAndPurge(t *testing.T) {
	c, clk := newCache(t)
	src := &fakeSource{}
	ctx := context.Background()

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	for _, name := range []string{"b", "a"} {
		_, err := c.Fetch(ctx, Request{Query: "SELECT " + name, Kind: Read, Name: name}, src.factory())
		require.NoError(t, err)
	}

	entries, err = c.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "SELECT a", entries[0].Query)
	assert.Greater(t, entries[0].Size, DefaultMinSize)

	n, err := c.Purge(0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	old := time.Now().Add(-48 * time.Hour)
	dataPath, queryPath := c.Paths("a")
	require.NoError(t, os.Chtimes(dataPath, old, old))
	require.NoError(t, os.Chtimes(queryPath, old, old))

	clk.t = time.Now()
	n, err = c.Purge(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err = c.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Key)
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, Read, ParseKind("select"))
	assert.Equal(t, Read, ParseKind(" READ "))
	assert.Equal(t, Write, ParseKind("INSERT"))
	assert.Equal(t, Write, ParseKind(""))
	assert.Equal(t, "READ", Read.String())
}

func TestDefaultRoot(t *testing.T) {
	t.Setenv("COF_CACHE_DIR", "/tmp/cof-test")
	root, ok := DefaultRoot()
	assert.True(t, ok)
	assert.Equal(t, "/tmp/cof-test", root)
}

func TestEnabled(t *testing.T) {
	t.Setenv("COF_CACHE", "")
	assert.True(t, Enabled())
	t.Setenv("COF_CACHE", "false")
	assert.False(t, Enabled())
	t.Setenv("COF_CACHE", "0")
	assert.False(t, Enabled())
}

func TestNumericFreshness(t *testing.T) {
	c, clk := newCache(t)
	src := &fakeSource{}
	ctx := context.Background()
	req := Request{Query: q, Kind: Read, Freshness: 30}

	res, err := c.Fetch(ctx, req, src.factory())
	require.NoError(t, err)
	assert.Equal(t, freshness.Window{Value: 30, Unit: freshness.Seconds}, res.Cache.Freshness)

	dataPath, _ := c.Paths(Key(q))
	info, err := os.Stat(dataPath)
	require.NoError(t, err)

	clk.t = info.ModTime().Add(20 * time.Second)
	res, err = c.Fetch(ctx, req, src.factory())
	require.NoError(t, err)
	assert.True(t, res.Cache.Hit)
	assert.Equal(t, 1, src.opens)

	clk.t = info.ModTime().Add(40 * time.Second)
	res, err = c.Fetch(ctx, Request{Query: q, Kind: Read, Freshness: 30 * time.Second}, src.factory())
	require.NoError(t, err)
	assert.False(t, res.Cache.Hit)
	assert.Equal(t, 2, src.opens)

	_, err = c.Fetch(ctx, Request{Query: q, Kind: Read, Freshness: []string{"1h"}}, src.factory())
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

type joinConn struct{}

func (joinConn) Query(context.Context, string) (*table.Table, error) {
	return table.FromRows([]string{"id", "id", "id_1"}, [][]any{{1, 2, 3}}), nil
}

func (joinConn) Close() error { return nil }

func TestRepeatedColumnsSurviveHit(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	open := func(context.Context) (Conn, error) { return joinConn{}, nil }
	req := Request{Query: "SELECT a.id, b.id, c.id AS id_1 FROM a, b, c", Kind: Read}

	live, err := c.Fetch(ctx, req, open)
	require.NoError(t, err)
	require.False(t, live.Cache.Hit)

	hit, err := c.Fetch(ctx, req, open)
	require.NoError(t, err)
	require.True(t, hit.Cache.Hit)

	assert.Equal(t, []string{"id", "id", "id_1"}, hit.Names())
	assert.Equal(t, live.Columns, hit.Columns)
	assert.Equal(t, live.Rows, hit.Rows)
}

func TestPurgeAll(t *testing.T) {
	c, _ := newCache(t)
	src := &fakeSource{}

	_, err := c.Fetch(context.Background(), Request{Query: q, Kind: Read}, src.factory())
	require.NoError(t, err)

	ahead := time.Now().Add(time.Hour)
	dataPath, queryPath := c.Paths(Key(q))
	require.NoError(t, os.Chtimes(dataPath, ahead, ahead))
	require.NoError(t, os.Chtimes(queryPath, ahead, ahead))

	n, err := c.Purge(time.Nanosecond)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = c.PurgeAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
