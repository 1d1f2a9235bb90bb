package main

import (
	"fmt"
	"sort"
)

// filter resolution and set algebra over dataset identifiers

const (
	relationAND = "and"
	relationOR  = "or"
)

// resolveFacetValues maps a caller's chosen facet display names to backend
// values via a cache entry.  an unrecognized display name is a client error,
// never silently ignored.
func resolveFacetValues(filterID string, entry facetEntry, displayNames []string) ([]string, error) {
	var values []string

	for _, name := range displayNames {
		backendValues, ok := entry.facets[name]
		if ok == false {
			return nil, fmt.Errorf("%w: [%s] for filter [%s]", errInvalidFacet, name, filterID)
		}

		values = append(values, backendValues...)
	}

	return uniqueStrings(values), nil
}

// resolveDatasetIDs walks backend records and collects the owning dataset ids
// that match the requested backend values: any-match for array fields,
// equality for scalar fields.
func resolveDatasetIDs(entry facetEntry, values []string, records []metaRecord) []string {
	node, ok := nodeCatalog[entry.node]
	if ok == false {
		return nil
	}

	kind, _ := node.fieldKind(entry.field)

	var ids []string

	for _, record := range records {
		id := record.datasetID()
		if id == "" {
			continue
		}

		match := false

		switch kind {
		case fieldArray:
			match = sliceContainsAnyValueFromSlice(record.listValues(entry.field), values, false)

		case fieldString:
			match = sliceContainsString(values, record.stringValue(entry.field), false)
		}

		if match == true {
			ids = append(ids, id)
		}
	}

	return uniqueStrings(ids)
}

// combineIDs performs AND/OR set algebra over per-field dataset-id lists.
// AND intersects across all lists using the first as pivot; OR unions.  the
// result is sorted for deterministic output.
func combineIDs(perFieldResults [][]string, relation string) []string {
	if len(perFieldResults) == 0 {
		return []string{}
	}

	var combined []string

	switch relation {
	case relationOR:
		for _, list := range perFieldResults {
			combined = append(combined, list...)
		}

		combined = uniqueStrings(combined)

	default: // AND
		pivot := perFieldResults[0]

		for _, id := range pivot {
			inAll := true

			for _, list := range perFieldResults[1:] {
				if sliceContainsString(list, id, false) == false {
					inAll = false
					break
				}
			}

			if inAll == true {
				combined = append(combined, id)
			}
		}

		combined = uniqueStrings(combined)
	}

	sort.Strings(combined)

	return combined
}
