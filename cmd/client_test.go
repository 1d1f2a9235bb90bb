package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessScopesAnonymous(t *testing.T) {
	meta := newFakeMetadata()
	p := newTestPool(meta, &fakeAnnotations{})
	s := newTestSearch(p, nil)

	assert.Equal(t, []string{testPublicScope}, s.client.accessScopes())
	assert.Empty(t, s.client.privateScopes())
	assert.False(t, s.client.isAuthenticated())
}

func TestAccessScopesAuthenticated(t *testing.T) {
	meta := newFakeMetadata()
	p := newTestPool(meta, &fakeAnnotations{})
	s := newTestSearch(p, []string{"proj-alpha", "proj-beta"})

	assert.Equal(t, []string{testPublicScope, "proj-alpha", "proj-beta"}, s.client.accessScopes())
	assert.Equal(t, []string{"proj-alpha", "proj-beta"}, s.client.privateScopes())
	assert.True(t, s.client.isAuthenticated())
}

func TestScopesDeduplicatePublic(t *testing.T) {
	meta := newFakeMetadata()
	p := newTestPool(meta, &fakeAnnotations{})

	// claims that redundantly carry the public scope
	s := newTestSearch(p, []string{testPublicScope, "proj-alpha", "proj-alpha"})

	assert.Equal(t, []string{testPublicScope, "proj-alpha"}, s.client.accessScopes())
	assert.Equal(t, []string{"proj-alpha"}, s.client.privateScopes())
}

func TestBoolOptionWithFallback(t *testing.T) {
	assert.True(t, boolOptionWithFallback("true", false))
	assert.False(t, boolOptionWithFallback("false", true))
	assert.True(t, boolOptionWithFallback("", true))
	assert.False(t, boolOptionWithFallback("bogus", false))
}

func TestLocalizedIdentity(t *testing.T) {
	meta := newFakeMetadata()
	p := newTestPool(meta, &fakeAnnotations{})
	s := newTestSearch(p, nil)

	identity := s.client.localizedIdentity()

	assert.Equal(t, "Metadata Pool", identity.Name)
	assert.Equal(t, "Federated dataset metadata", identity.Description)
}
