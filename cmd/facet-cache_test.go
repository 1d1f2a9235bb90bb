package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePublicFacets(t *testing.T) {
	meta := newFakeMetadata()
	seedDatasets(meta)
	p := newTestPool(meta, &fakeAnnotations{})

	require.NoError(t, p.facets.generatePublicFacets())

	entries := p.facets.snapshot()
	require.NotNil(t, entries)

	// dynamic facets come from observed public values, capitalized
	assert.Equal(t, []string{"Plot", "Scaffold"}, entries["additionalTypes"].facetNames())
	assert.Equal(t, []string{"Mouse", "Rat"}, entries["species"].facetNames())

	// static facets come straight from config
	assert.Equal(t, []string{"Female", "Male"}, entries["sex"].facetNames())
	assert.Equal(t, []string{"Male", "male"}, entries["sex"].facets["Male"])
}

func TestGeneratePublicFacetsFailClosedOnFetchError(t *testing.T) {
	meta := newFakeMetadata()
	seedDatasets(meta)
	p := newTestPool(meta, &fakeAnnotations{})

	require.NoError(t, p.facets.generatePublicFacets())
	before := p.facets.snapshot()

	meta.failAll = true

	assert.Error(t, p.facets.generatePublicFacets())

	// the previous cache survives a failed pass untouched
	after := p.facets.snapshot()
	require.NotNil(t, after)
	assert.Equal(t, before["species"].facetNames(), after["species"].facetNames())
}

func TestGeneratePublicFacetsFailClosedOnEmptyFacets(t *testing.T) {
	meta := newFakeMetadata() // no records at all
	p := newTestPool(meta, &fakeAnnotations{})

	assert.Error(t, p.facets.generatePublicFacets())
	assert.Nil(t, p.facets.snapshot())
}

func TestGeneratePrivateOverlay(t *testing.T) {
	meta := newFakeMetadata()
	seedDatasets(meta)
	p := newTestPool(meta, &fakeAnnotations{})

	require.NoError(t, p.facets.generatePublicFacets())

	overlay := p.facets.generatePrivateOverlay([]string{testPrivateScope})

	// only the species filter gains private facets (Cat); filters without a
	// delta are absent from the overlay
	require.Contains(t, overlay, "species")
	assert.NotContains(t, overlay, "additionalTypes")
	assert.NotContains(t, overlay, "sex")

	assert.Equal(t, []string{"Cat", "Mouse", "Rat"}, overlay["species"].facetNames())
}

func TestGeneratePrivateOverlayNeverMutatesCache(t *testing.T) {
	meta := newFakeMetadata()
	seedDatasets(meta)
	p := newTestPool(meta, &fakeAnnotations{})

	require.NoError(t, p.facets.generatePublicFacets())

	first := p.facets.generatePrivateOverlay([]string{testPrivateScope})
	second := p.facets.generatePrivateOverlay([]string{testPrivateScope})

	assert.Equal(t, first["species"].facetNames(), second["species"].facetNames())

	// the cached public entry is unchanged after both overlay passes
	cached := p.facets.snapshot()
	assert.Equal(t, []string{"Mouse", "Rat"}, cached["species"].facetNames())
}

func TestGeneratePrivateOverlayWithoutScopes(t *testing.T) {
	meta := newFakeMetadata()
	seedDatasets(meta)
	p := newTestPool(meta, &fakeAnnotations{})

	require.NoError(t, p.facets.generatePublicFacets())

	assert.Empty(t, p.facets.generatePrivateOverlay(nil))
}

func TestGeneratePrivateOverlayBeforeFirstPass(t *testing.T) {
	meta := newFakeMetadata()
	seedDatasets(meta)
	p := newTestPool(meta, &fakeAnnotations{})

	// cache is still empty; overlay has no base to extend
	assert.Empty(t, p.facets.generatePrivateOverlay([]string{testPrivateScope}))
}

func TestOverlayedEntries(t *testing.T) {
	meta := newFakeMetadata()
	seedDatasets(meta)
	p := newTestPool(meta, &fakeAnnotations{})

	require.NoError(t, p.facets.generatePublicFacets())

	entries := p.facets.overlayedEntries([]string{testPrivateScope})

	assert.Equal(t, []string{"Cat", "Mouse", "Rat"}, entries["species"].facetNames())
	assert.Equal(t, []string{"Plot", "Scaffold"}, entries["additionalTypes"].facetNames())
	assert.Equal(t, []string{"Female", "Male"}, entries["sex"].facetNames())
}

func TestExtractFacetsCollisionKeepsFirstValue(t *testing.T) {
	records := []metaRecord{
		{"dataset_id": "d1", "species": "rat"},
		{"dataset_id": "d2", "species": "Rat"},
	}

	facets := extractFacets("species", "species", records)

	require.Contains(t, facets, "Rat")
	assert.Equal(t, []string{"rat"}, facets["Rat"])
}

func TestExtractFacetsSkipsNA(t *testing.T) {
	records := []metaRecord{
		{"dataset_id": "d1", "species": "NA"},
		{"dataset_id": "d2", "species": "Rat"},
	}

	facets := extractFacets("species", "species", records)

	assert.NotContains(t, facets, "NA")
	assert.Contains(t, facets, "Rat")
}

func TestFacetEntryCloneIsDeep(t *testing.T) {
	entry := speciesEntry()
	clone := entry.clone()

	clone.facets["Zebra"] = []string{"zebra"}
	clone.facets["Rat"][0] = "mutated"

	assert.NotContains(t, entry.facets, "Zebra")
	assert.Equal(t, "Rat", entry.facets["Rat"][0])
}
