// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package z2folio_test

import (
	"context"
	"testing"

	z2folio "github.com/molecula/z2folio"
	"github.com/molecula/z2folio/diag"
	"github.com/molecula/z2folio/folio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instances(titles ...string) []folio.Instance {
	out := make([]folio.Instance, len(titles))
	for i, title := range titles {
		out[i] = folio.Instance{"title": title}
	}
	return out
}

func TestResultSetInsertGet(t *testing.T) {
	rs := z2folio.NewResultSet("default", "title=cat")
	require.NoError(t, rs.SetTotal(3))
	require.NoError(t, rs.Insert(0, instances("a", "b", "c")))

	inst, ok := rs.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", inst["title"])
	inst, ok = rs.Get(3)
	require.True(t, ok)
	assert.Equal(t, "c", inst["title"])
	_, ok = rs.Get(4)
	assert.False(t, ok)
}

func TestResultSetSetTotal(t *testing.T) {
	rs := z2folio.NewResultSet("default", "title=cat")
	require.NoError(t, rs.SetTotal(20))
	assert.Equal(t, 20, rs.Total())

	// Repeating the same total is fine.
	require.NoError(t, rs.SetTotal(20))

	// A different total is a hard error.
	err := rs.SetTotal(21)
	require.Error(t, err)
	assert.True(t, diag.Is(err, diag.PermanentSystemError))
}

func TestResultSetInsertOutOfBounds(t *testing.T) {
	rs := z2folio.NewResultSet("default", "title=cat")
	require.NoError(t, rs.SetTotal(2))
	err := rs.Insert(1, instances("b", "c"))
	require.Error(t, err)
	assert.True(t, diag.Is(err, diag.PermanentSystemError))
}

func TestMaterializeCached(t *testing.T) {
	rs := z2folio.NewResultSet("default", "title=cat")
	require.NoError(t, rs.SetTotal(2))
	require.NoError(t, rs.Insert(0, instances("a", "b")))

	inst, err := rs.Materialize(context.Background(), 2, 5,
		func(ctx context.Context, cql string, offset, limit int) (*folio.SearchResult, error) {
			t.Error("cached record triggered a back-end search")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "b", inst["title"])
}

func TestMaterializeFetchesOneChunk(t *testing.T) {
	rs := z2folio.NewResultSet("default", "title=cat")
	require.NoError(t, rs.SetTotal(20))
	require.NoError(t, rs.Insert(0, instances("r1", "r2", "r3", "r4", "r5")))

	var calls int
	fetch := func(ctx context.Context, cql string, offset, limit int) (*folio.SearchResult, error) {
		calls++
		assert.Equal(t, "title=cat", cql)
		assert.Equal(t, 5, offset)
		assert.Equal(t, 5, limit)
		return &folio.SearchResult{
			TotalRecords: 20,
			Instances:    instances("r6", "r7", "r8", "r9", "r10"),
		}, nil
	}

	// Record 7 lives in the second chunk of five.
	inst, err := rs.Materialize(context.Background(), 7, 5, fetch)
	require.NoError(t, err)
	assert.Equal(t, "r7", inst["title"])
	assert.Equal(t, 1, calls)

	// The whole chunk is now cached.
	for ordinal := 6; ordinal <= 10; ordinal++ {
		_, ok := rs.Get(ordinal)
		assert.True(t, ok, "record %d not cached", ordinal)
	}

	// A second fetch inside the chunk stays local.
	_, err = rs.Materialize(context.Background(), 9, 5, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestMaterializeShortChunk(t *testing.T) {
	// The back end returns fewer records than requested and the wanted
	// ordinal is missing.
	rs := z2folio.NewResultSet("default", "title=cat")
	fetch := func(ctx context.Context, cql string, offset, limit int) (*folio.SearchResult, error) {
		return &folio.SearchResult{TotalRecords: 20, Instances: instances("r6")}, nil
	}
	_, err := rs.Materialize(context.Background(), 8, 5, fetch)
	require.Error(t, err)
	assert.True(t, diag.Is(err, diag.PermanentSystemError))
	assert.Contains(t, err.Error(), "missing record 8")
}

func TestMaterializeFetchError(t *testing.T) {
	rs := z2folio.NewResultSet("default", "title=cat")
	fetch := func(ctx context.Context, cql string, offset, limit int) (*folio.SearchResult, error) {
		return nil, diag.New(diag.UnsupportedSearch, "back end unreachable")
	}
	_, err := rs.Materialize(context.Background(), 1, 5, fetch)
	require.Error(t, err)
	assert.True(t, diag.Is(err, diag.UnsupportedSearch))
}

func TestMaterializeChangedTotal(t *testing.T) {
	rs := z2folio.NewResultSet("default", "title=cat")
	require.NoError(t, rs.SetTotal(20))
	fetch := func(ctx context.Context, cql string, offset, limit int) (*folio.SearchResult, error) {
		return &folio.SearchResult{TotalRecords: 19, Instances: instances("r6", "r7", "r8", "r9", "r10")}, nil
	}
	_, err := rs.Materialize(context.Background(), 7, 5, fetch)
	require.Error(t, err)
	assert.True(t, diag.Is(err, diag.PermanentSystemError))
}
