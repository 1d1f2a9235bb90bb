package main

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "metapool_facet_cache_refresh_total",
	Help: "Facet cache refresh passes by outcome.",
}, []string{"outcome"})

// facetEntry holds the legal filter values for one filter field.  display
// names are unique per entry and rendered sorted for stable client output.
type facetEntry struct {
	title  string              // message id, localized at render time
	node   string              // backend node
	field  string              // backend field
	facets map[string][]string // display name -> backend value(s)
}

func (e facetEntry) facetNames() []string {
	names := make([]string, 0, len(e.facets))

	for name := range e.facets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (e facetEntry) clone() facetEntry {
	c := e
	c.facets = make(map[string][]string, len(e.facets))

	for name, values := range e.facets {
		c.facets[name] = append([]string{}, values...)
	}

	return c
}

// facetCache is the only cross-request mutable shared state in the engine.
// it starts empty, is populated by one successful public generation pass, and
// is refreshed on a timer.  writes are whole-map replacements; readers always
// observe either the old or the new map, never a mix.
type facetCache struct {
	pool            *poolContext
	refreshInterval int // seconds

	mu      sync.RWMutex
	entries map[string]facetEntry // filter id -> entry; nil until first successful pass
}

func newFacetCache(pool *poolContext, interval int) *facetCache {
	f := facetCache{
		pool:            pool,
		refreshInterval: interval,
	}

	go f.monitorFacets()

	return &f
}

// monitorFacets runs the recurring refresh, strictly serialized with itself.
// a failed pass keeps the previous cache and is retried on the next tick.
func (f *facetCache) monitorFacets() {
	for {
		if err := f.generatePublicFacets(); err != nil {
			log.Printf("[CACHE] refresh failed: %s", err.Error())
			cacheRefreshTotal.WithLabelValues("failure").Inc()
		} else {
			cacheRefreshTotal.WithLabelValues("success").Inc()
		}

		log.Printf("[CACHE] refresh scheduled in %d seconds", f.refreshInterval)
		time.Sleep(time.Duration(f.refreshInterval) * time.Second)
	}
}

// snapshot returns the current whole-map state.  the map is never mutated in
// place after publication, so holding the reference is safe while a refresh
// replaces it.
func (f *facetCache) snapshot() map[string]facetEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.entries
}

func (f *facetCache) publish(entries map[string]facetEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = entries
}

// extractFacets folds the observed values of one field into a display-name
// map.  scalar non-"NA" values and list elements both contribute.  collisions
// after capitalization are first-write-wins.
func extractFacets(filterID string, field string, records []metaRecord) map[string][]string {
	facets := make(map[string][]string)

	for _, record := range records {
		for _, value := range record.fieldValues(field) {
			name := capitalize(value)

			if existing, ok := facets[name]; ok == true {
				if sliceContainsString(existing, value, false) == false {
					log.Printf("[CACHE] filter [%s]: display name collision for [%s]; keeping first value", filterID, name)
				}
				continue
			}

			facets[name] = []string{value}
		}
	}

	return facets
}

func staticFacets(cfg poolConfigFilter) map[string][]string {
	facets := make(map[string][]string, len(cfg.Facets))

	for _, facet := range cfg.Facets {
		facets[facet.Name] = append([]string{}, facet.Values...)
	}

	return facets
}

// generatePublicFacets runs one public generation pass.  if any dynamic field
// yields an empty facet set the whole pass is rejected and the previous cache
// is kept; a partially-empty cache is never published.
func (f *facetCache) generatePublicFacets() error {
	log.Printf("[CACHE] refreshing public facets...")

	public := []string{f.pool.config.Scopes.Public}

	var queries []keyedQuery

	for _, cfg := range f.pool.config.Filters {
		if cfg.Dynamic == false {
			continue
		}

		queries = append(queries, keyedQuery{
			key: cfg.ID,
			item: queryItem{
				node:   cfg.Node,
				access: public,
				fields: []string{cfg.Field},
			},
		})
	}

	results := f.pool.fetchAll(queries)

	entries := make(map[string]facetEntry, len(f.pool.config.Filters))

	for _, cfg := range f.pool.config.Filters {
		entry := facetEntry{
			title: cfg.XID,
			node:  cfg.Node,
			field: cfg.Field,
		}

		if cfg.Dynamic == false {
			// statically configured facet sets are not derived
			entry.facets = staticFacets(cfg)
			entries[cfg.ID] = entry
			continue
		}

		res := results[cfg.ID]

		if res.err != nil {
			return fmt.Errorf("filter [%s]: %s", cfg.ID, res.err.Error())
		}

		entry.facets = extractFacets(cfg.ID, cfg.Field, res.res.nodeRecords(cfg.Node))

		if len(entry.facets) == 0 {
			return fmt.Errorf("filter [%s]: no public facets found; keeping previous cache", cfg.ID)
		}

		entries[cfg.ID] = entry
	}

	f.publish(entries)

	log.Printf("[CACHE] published %d filter entries", len(entries))

	return nil
}

// generatePrivateOverlay computes, per request, the facets a caller's private
// scopes add on top of the cached public facets.  it never mutates the cache;
// the returned entries are copies.
func (f *facetCache) generatePrivateOverlay(privateScopes []string) map[string]facetEntry {
	overlay := make(map[string]facetEntry)

	if len(privateScopes) == 0 {
		return overlay
	}

	cached := f.snapshot()
	if cached == nil {
		return overlay
	}

	var queries []keyedQuery

	for _, cfg := range f.pool.config.Filters {
		if cfg.Dynamic == false {
			continue
		}

		queries = append(queries, keyedQuery{
			key: cfg.ID,
			item: queryItem{
				node:   cfg.Node,
				access: privateScopes,
				fields: []string{cfg.Field},
			},
		})
	}

	results := f.pool.fetchAll(queries)

	for _, cfg := range f.pool.config.Filters {
		res, ok := results[cfg.ID]
		if ok == false {
			continue
		}

		if res.err != nil {
			// a private overlay is best-effort per field
			log.Printf("[CACHE] overlay filter [%s]: %s", cfg.ID, res.err.Error())
			continue
		}

		base, cachedOK := cached[cfg.ID]
		if cachedOK == false {
			continue
		}

		private := extractFacets(cfg.ID, cfg.Field, res.res.nodeRecords(cfg.Node))

		delta := 0
		merged := base.clone()

		for name, values := range private {
			if _, exists := merged.facets[name]; exists == true {
				continue
			}

			merged.facets[name] = values
			delta++
		}

		if delta > 0 {
			overlay[cfg.ID] = merged
		}
	}

	return overlay
}

// overlayedEntries merges the public snapshot with a caller's private
// overlay, private entries winning per filter id.
func (f *facetCache) overlayedEntries(privateScopes []string) map[string]facetEntry {
	cached := f.snapshot()

	merged := make(map[string]facetEntry, len(cached))

	for id, entry := range cached {
		merged[id] = entry
	}

	for id, entry := range f.generatePrivateOverlay(privateScopes) {
		merged[id] = entry
	}

	return merged
}
