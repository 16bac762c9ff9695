// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package z2folio

import (
	"context"

	"github.com/molecula/z2folio/diag"
	"github.com/molecula/z2folio/folio"
)

// ResultSet is a named container for one search: the CQL it was built
// from, the total hit count once known, and a sparse map of 1-based
// ordinals to instance documents filled one chunk at a time.
type ResultSet struct {
	Name string
	CQL  string

	total      int
	totalKnown bool
	records    map[int]folio.Instance
}

// NewResultSet allocates an empty result set for cql.
func NewResultSet(name, cql string) *ResultSet {
	return &ResultSet{
		Name:    name,
		CQL:     cql,
		records: make(map[int]folio.Instance),
	}
}

// SetTotal records the total hit count. Repeating the same value is
// idempotent; a conflicting value indicates the back end changed its
// answer mid-session and is surfaced as a permanent system error.
func (rs *ResultSet) SetTotal(n int) error {
	if rs.totalKnown && rs.total != n {
		return diag.Newf(diag.PermanentSystemError,
			"result set %s total changed from %d to %d", rs.Name, rs.total, n)
	}
	rs.total = n
	rs.totalKnown = true
	return nil
}

// Total returns the hit count, valid once SetTotal has been called.
func (rs *ResultSet) Total() int {
	return rs.total
}

// Insert stores instances at consecutive ordinals starting at
// offset+1. Offsets are 0-based to match the back-end search call.
func (rs *ResultSet) Insert(offset int, instances []folio.Instance) error {
	for i, inst := range instances {
		ordinal := offset + i + 1
		if ordinal < 1 || (rs.totalKnown && ordinal > rs.total) {
			return diag.Newf(diag.PermanentSystemError,
				"result set %s record %d outside 1..%d", rs.Name, ordinal, rs.total)
		}
		rs.records[ordinal] = inst
	}
	return nil
}

// Get returns the instance at the 1-based ordinal, if materialized.
func (rs *ResultSet) Get(ordinal int) (folio.Instance, bool) {
	inst, ok := rs.records[ordinal]
	return inst, ok
}

// chunkFetcher runs one back-end search for the result set's CQL.
type chunkFetcher func(ctx context.Context, cql string, offset, limit int) (*folio.SearchResult, error)

// Materialize ensures the record at ordinal is present, fetching the
// containing chunk if it is not. At most one back-end search is issued
// per call.
func (rs *ResultSet) Materialize(ctx context.Context, ordinal, chunkSize int, fetch chunkFetcher) (folio.Instance, error) {
	if inst, ok := rs.Get(ordinal); ok {
		return inst, nil
	}
	chunk := (ordinal - 1) / chunkSize
	result, err := fetch(ctx, rs.CQL, chunk*chunkSize, chunkSize)
	if err != nil {
		return nil, err
	}
	if err := rs.SetTotal(result.TotalRecords); err != nil {
		return nil, err
	}
	if err := rs.Insert(chunk*chunkSize, result.Instances); err != nil {
		return nil, err
	}
	inst, ok := rs.Get(ordinal)
	if !ok {
		return nil, diag.Newf(diag.PermanentSystemError, "missing record %d", ordinal)
	}
	return inst, nil
}
