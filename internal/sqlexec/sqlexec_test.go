// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package sqlexec

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/cofgo/internal/connector"
	"github.com/staranto/cofgo/internal/errs"
	"github.com/staranto/cofgo/internal/querycache"
	"github.com/staranto/cofgo/internal/table"
)

type fakeSession struct {
	log    *[]string
	closed *int
}

func (s fakeSession) Query(_ context.Context, sql string) (*table.Table, error) {
	*s.log = append(*s.log, "query "+sql)
	return table.FromRows([]string{"n"}, [][]any{{1}, {2}}), nil
}

func (s fakeSession) Exec(_ context.Context, sql string) (int64, error) {
	*s.log = append(*s.log, "exec "+sql)
	return 3, nil
}

func (s fakeSession) Insert(_ context.Context, name string, t *table.Table) (int64, error) {
	*s.log = append(*s.log, "insert "+name)
	return int64(t.NumRows()), nil
}

func (s fakeSession) Close() error {
	*s.closed++
	return nil
}

func newExecutor(t *testing.T, cache bool) (*Executor, *[]string, *int) {
	t.Helper()
	calls := &[]string{}
	closed := new(int)
	e := &Executor{Open: func(context.Context) (Session, error) {
		return fakeSession{log: calls, closed: closed}, nil
	}}
	if cache {
		c, err := querycache.New(querycache.Config{Root: t.TempDir()})
		require.NoError(t, err)
		e.Cache = c
	}
	return e, calls, closed
}

func TestResolveKind(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"explicit", Request{Kind: "delete", SQL: "DELETE FROM t"}, Delete},
		{"sql", Request{SQL: "SELECT 1"}, Select},
		{"data", Request{Data: &table.Table{}}, Insert},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveKind(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ResolveKind(Request{Kind: "MERGE"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfig))
	assert.Contains(t, err.Error(), "SELECT, INSERT, DELETE, COPY, UNLOAD")

	_, err = ResolveKind(Request{})
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestFromTable(t *testing.T) {
	assert.Equal(t, "SCHEMA.USERS", FromTable("select * from schema.users where id = 1"))
	assert.Equal(t, "ORDERS", FromTable("SELECT id\nFROM\norders;"))
	assert.Equal(t, "", FromTable("SELECT 1"))
}

func TestSelect(t *testing.T) {
	e, calls, closed := newExecutor(t, false)

	res, err := e.Run(context.Background(), Request{SQL: "SELECT n FROM numbers"})
	require.NoError(t, err)
	assert.Equal(t, Select, res.Kind)
	assert.Equal(t, "NUMBERS", res.Target)
	assert.Equal(t, 2, res.Table.NumRows())
	assert.Nil(t, res.Table.Cache)
	assert.Equal(t, []string{"query SELECT n FROM numbers"}, *calls)
	assert.Equal(t, 1, *closed)

	_, err = e.Run(context.Background(), Request{SQL: "SELECT n FROM numbers", Table: "letters"})
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestSelectCached(t *testing.T) {
	e, calls, closed := newExecutor(t, true)
	req := Request{SQL: "SELECT n FROM numbers", Cache: true, CacheTime: "1h"}

	for i := 0; i < 3; i++ {
		res, err := e.Run(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res.Table.Cache)
		assert.Equal(t, i > 0, res.Table.Cache.Hit)
	}
	assert.Len(t, *calls, 1)
	assert.Equal(t, 1, *closed)
}

func TestInsert(t *testing.T) {
	e, calls, closed := newExecutor(t, false)
	data := table.FromRows([]string{"n"}, [][]any{{1}, {2}, {3}})

	res, err := e.Run(context.Background(), Request{Table: "numbers", Data: data})
	require.NoError(t, err)
	assert.Equal(t, Insert, res.Kind)
	assert.Equal(t, int64(3), res.RowsAffected)
	assert.Equal(t, []string{"insert numbers"}, *calls)
	assert.Equal(t, 1, *closed)

	_, err = e.Run(context.Background(), Request{Kind: "insert", Table: "numbers"})
	assert.True(t, errors.Is(err, errs.ErrInsertSize))
}

func TestExecKinds(t *testing.T) {
	e, calls, _ := newExecutor(t, false)

	res, err := e.Run(context.Background(), Request{Kind: "DELETE", SQL: "DELETE FROM numbers WHERE n > 1", Table: "numbers"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.RowsAffected)
	assert.Equal(t, []string{"exec DELETE FROM numbers WHERE n > 1"}, *calls)

	_, err = e.Run(context.Background(), Request{Kind: "COPY", SQL: "COPY numbers FROM 's3://b/k'", Table: "letters"})
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestOpenErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	e := &Executor{Open: func(context.Context) (Session, error) { return nil, boom }}

	_, err := e.Run(context.Background(), Request{SQL: "SELECT 1"})
	assert.ErrorIs(t, err, boom)
}

func TestConnectorSQLite(t *testing.T) {
	cfg := connector.Config{Engine: connector.SQLite, Database: filepath.Join(t.TempDir(), "x.db")}
	e := &Executor{Open: Connector(cfg)}
	ctx := context.Background()

	_, err := e.Run(ctx, Request{Kind: "DELETE", SQL: "CREATE TABLE pets (name TEXT)", Table: "pets"})
	require.NoError(t, err)

	res, err := e.Run(ctx, Request{Table: "pets", Data: table.FromRows([]string{"name"}, [][]any{{"rex"}, {"tom"}})})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	res, err = e.Run(ctx, Request{SQL: "SELECT name FROM pets ORDER BY name"})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"rex"}, {"tom"}}, res.Table.Rows)
}
