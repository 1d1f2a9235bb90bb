package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAllKeysAlwaysPresent(t *testing.T) {
	meta := newFakeMetadata()
	seedDatasets(meta)
	p := newTestPool(meta, &fakeAnnotations{})

	results := p.fetchAll([]keyedQuery{
		{key: "cases", item: queryItem{node: "case", access: []string{testPublicScope}}},
		{key: "bogus", item: queryItem{node: "bogus"}},
	})

	require.Len(t, results, 2)

	// a compile failure is reported on its own key only
	assert.ErrorIs(t, results["bogus"].err, errUnsupportedNode)

	require.NoError(t, results["cases"].err)
	assert.Len(t, results["cases"].res.nodeRecords("case"), 2)
}

func TestFetchAllBackendFailurePerKey(t *testing.T) {
	meta := newFakeMetadata()
	seedDatasets(meta)
	meta.failAll = true
	p := newTestPool(meta, &fakeAnnotations{})

	results := p.fetchAll([]keyedQuery{
		{key: "a", item: queryItem{node: "case", access: []string{testPublicScope}}},
		{key: "b", item: queryItem{node: "manifest", access: []string{testPublicScope}}},
	})

	require.Len(t, results, 2)
	assert.Error(t, results["a"].err)
	assert.Error(t, results["b"].err)
}

func TestFetchOne(t *testing.T) {
	meta := newFakeMetadata()
	seedDatasets(meta)
	p := newTestPool(meta, &fakeAnnotations{})

	item := queryItem{node: "case", access: []string{testPublicScope}}

	res, err := p.fetchOne(item.withFilter("species", []string{"Rat"}))

	require.NoError(t, err)

	records := res.nodeRecords("case")
	require.Len(t, records, 1)
	assert.Equal(t, "dataset-46-version-2", records[0].datasetID())
}

func TestFetchAllEmptyInput(t *testing.T) {
	meta := newFakeMetadata()
	p := newTestPool(meta, &fakeAnnotations{})

	assert.Empty(t, p.fetchAll(nil))
}
