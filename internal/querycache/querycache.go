// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package querycache keeps the results of read queries on disk and reuses
// them while they are younger than a freshness window.
//
// A cache root holds two directories. queries/ has the query text of each
// entry and data/ has the result, encoded by package codec. Both files are
// named after the entry key. The age of an entry is the modification time
// of its data file, so copying the cache around resets every entry's age.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/staranto/cofgo/internal/codec"
	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/freshness"
	"github.com/staranto/cofgo/internal/table"
)

const (
	// DefaultQueriesDir and DefaultDataDir are the subdirectories of the root.
	DefaultQueriesDir = "queries"
	DefaultDataDir    = "data"

	// DefaultMinSize is the size a data file must exceed to be trusted. No
	// valid parquet file is this small.
	DefaultMinSize int64 = 12
)

// Kind classifies a query. Only Read results are cached.
type Kind int

const (
	Read Kind = iota
	Write
)

func (k Kind) String() string {
	if k == Read {
		return "READ"
	}
	return "WRITE"
}

// ParseKind maps a query type name to a Kind. SELECT and READ are Read,
// anything else is Write.
func ParseKind(s string) Kind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SELECT", "READ":
		return Read
	default:
		return Write
	}
}

// Conn is a live connection able to run a query.
type Conn interface {
	Query(ctx context.Context, sql string) (*table.Table, error)
	Close() error
}

// Factory opens a Conn. Connection settings are bound when the factory is
// built.
type Factory func(ctx context.Context) (Conn, error)

// Request is a single Fetch call.
type Request struct {
	Query string
	Kind  Kind
	// Freshness is the maximum age of a reusable entry: a string such as
	// "24h" or "2 days", a number of seconds, or a time.Duration. Nil or
	// empty means freshness.Default.
	Freshness any
	// Name replaces the hashed key when set.
	Name string
}

// Config locates the cache on disk.
type Config struct {
	Root       string
	QueriesDir string
	DataDir    string
	MinSize    int64
	Now        func() time.Time
}

// Cache is a query result cache rooted at a directory.
type Cache struct {
	cfg Config
}

// Entry describes a cached result on disk.
type Entry struct {
	Key       string
	DataPath  string
	QueryPath string
	Query     string
	Size      int64
	ModTime   time.Time
}

// New returns a Cache for cfg. Unset fields take their defaults. Nothing is
// created on disk until the first write.
func New(cfg Config) (*Cache, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errs.Config("cache root is empty")
	}
	if cfg.QueriesDir == "" {
		cfg.QueriesDir = DefaultQueriesDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.MinSize <= 0 {
		cfg.MinSize = DefaultMinSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{cfg: cfg}, nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.cfg.Root }

// DefaultRoot resolves the cache root for callers that do not configure one.
// Precedence:
//  1. COF_CACHE_DIR, if set and non-empty
//  2. os.UserCacheDir()/cof
//
// Returns ("", false) if a root cannot be resolved.
func DefaultRoot() (string, bool) {
	if c, ok := os.LookupEnv("COF_CACHE_DIR"); ok && c != "" {
		return c, true
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "cof"), true
	}
	return "", false
}

// Enabled returns true unless COF_CACHE explicitly disables it ("0"/"false").
func Enabled() bool {
	enabled, _ := os.LookupEnv("COF_CACHE")
	return enabled == "" || (enabled != "0" && enabled != "false")
}

// Key hashes the exact bytes of query with SHA-224 and returns the hex
// string. Queries differing only in whitespace get different keys.
func Key(query string) string {
	sum := sha256.Sum224([]byte(query))
	return hex.EncodeToString(sum[:])
}

// Paths returns the data and query file paths of key.
func (c *Cache) Paths(key string) (string, string) {
	return filepath.Join(c.cfg.Root, c.cfg.DataDir, key+codec.Extension),
		filepath.Join(c.cfg.Root, c.cfg.QueriesDir, key)
}

// EnsureDirs creates the queries and data directories.
func (c *Cache) EnsureDirs() error {
	for _, d := range []string{c.cfg.QueriesDir, c.cfg.DataDir} {
		dir := filepath.Join(c.cfg.Root, d)
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
			return errs.Config("cannot create cache directory %q: %v", dir, err)
		}
	}
	return nil
}

// Fetch returns the result of req.Query. A Read query is answered from the
// cache when its entry exists, is larger than the size threshold and is
// younger than req.Freshness. Otherwise the query runs on a connection from
// open and, for Read queries, the result replaces the entry.
//
// Errors from open and from the query are returned unchanged. Cached results
// carry table.CacheInfo; results of other kinds do not.
func (c *Cache) Fetch(ctx context.Context, req Request, open Factory) (*table.Table, error) {
	window, err := freshness.FromAny(req.Freshness)
	if err != nil {
		return nil, err
	}

	key, err := c.key(req)
	if err != nil {
		return nil, err
	}
	dataPath, queryPath := c.Paths(key)

	if req.Kind != Read {
		log.Debugf("cache bypass for %s query", req.Kind)
		return run(ctx, open, req.Query)
	}

	logger := log.WithField("key", key)

	if t, ok := c.lookup(logger, dataPath, window); ok {
		logger.Debug("cache hit")
		return c.attach(t, key, dataPath, queryPath, window, true), nil
	}

	t, err := run(ctx, open, req.Query)
	if err != nil {
		return nil, err
	}

	if len(t.Columns) == 0 {
		logger.Debug("query returned no columns, not caching")
		return t, nil
	}
	if err := c.store(key, req.Query, t); err != nil {
		return nil, err
	}
	logger.Debugf("cached %d rows", t.NumRows())

	return c.attach(t, key, dataPath, queryPath, window, false), nil
}

// Entries lists the cached results, sorted by key.
func (c *Cache) Entries() ([]Entry, error) {
	dir := filepath.Join(c.cfg.Root, c.cfg.DataDir)
	des, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list cache: %w", err)
	}

	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, codec.Extension) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(name, codec.Extension)
		dataPath, queryPath := c.Paths(key)
		e := Entry{
			Key:       key,
			DataPath:  dataPath,
			QueryPath: queryPath,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
		}
		if b, err := os.ReadFile(queryPath); err == nil {
			e.Query = string(b)
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Purge removes cache files older than maxAge and returns how many were
// removed. If maxAge <= 0 it is a no-op.
func (c *Cache) Purge(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		log.Debug("cache cleaning disabled")
		return 0, nil
	}

	now := c.cfg.Now()
	return c.remove(func(info os.FileInfo) bool {
		return now.Sub(info.ModTime()) > maxAge
	})
}

// PurgeAll removes every cache file whatever its mtime and returns how many
// were removed.
func (c *Cache) PurgeAll() (int, error) {
	return c.remove(func(os.FileInfo) bool { return true })
}

func (c *Cache) remove(drop func(os.FileInfo) bool) (int, error) {
	removed := 0
	for _, d := range []string{c.cfg.QueriesDir, c.cfg.DataDir} {
		dir := filepath.Join(c.cfg.Root, d)
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if info.IsDir() || !drop(info) {
				return nil
			}
			if err := os.Remove(path); err == nil {
				log.Debugf("removed cache file %s", path)
				removed++
			} else {
				log.WithError(err).Warnf("failed to remove cache file %s", path)
			}
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("failed to purge cache: %w", err)
		}
	}
	return removed, nil
}

func (c *Cache) key(req Request) (string, error) {
	if req.Name == "" {
		return Key(req.Query), nil
	}
	if req.Name == "." || req.Name == ".." || strings.ContainsAny(req.Name, `/\`) {
		return "", errs.Config("invalid cache name %q", req.Name)
	}
	return req.Name, nil
}

// lookup returns the cached table at path when it can be trusted.
func (c *Cache) lookup(logger *log.Entry, path string, window freshness.Window) (*table.Table, bool) {
	info, err := os.Stat(path)
	if err != nil {
		logger.Debug("cache miss")
		return nil, false
	}

	age := freshness.Age(c.cfg.Now().Sub(info.ModTime()), window.Unit)
	if age >= window.Value {
		logger.Debugf("cache stale, %.2f %s old", age, window.Unit)
		return nil, false
	}
	if info.Size() <= c.cfg.MinSize {
		logger.Debugf("cache entry too small (%d bytes)", info.Size())
		return nil, false
	}

	t, err := codec.ReadFile(path)
	if err != nil {
		logger.WithError(err).Warn("unreadable cache entry, running query")
		return nil, false
	}
	return t, true
}

// store writes the query file and then the data file. Each write goes
// through a temporary file and a rename.
func (c *Cache) store(key, query string, t *table.Table) error {
	if err := c.EnsureDirs(); err != nil {
		return err
	}
	dataPath, queryPath := c.Paths(key)

	if err := writeFile(queryPath, []byte(query)); err != nil {
		return fmt.Errorf("failed to write cached query: %w", err)
	}
	if err := codec.WriteFile(dataPath, t); err != nil {
		return fmt.Errorf("failed to write cached data: %w", err)
	}
	return nil
}

func (c *Cache) attach(t *table.Table, key, dataPath, queryPath string, window freshness.Window, hit bool) *table.Table {
	info := &table.CacheInfo{
		Key:       key,
		DataPath:  dataPath,
		QueryPath: queryPath,
		Freshness: window,
		Hit:       hit,
	}
	if fi, err := os.Stat(dataPath); err == nil {
		info.CreatedAt = fi.ModTime()
	}
	t.Cache = info
	return t
}

// run opens a connection, runs query and closes the connection.
func run(ctx context.Context, open Factory, query string) (*table.Table, error) {
	conn, err := open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.WithError(err).Warn("failed to close connection")
		}
	}()

	t, err := conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = &table.Table{}
	}
	return t, nil
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
