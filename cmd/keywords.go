package main

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
)

// keyword search and relevance ranking over the annotation store

// tokenizeKeywords extracts lower-cased alphanumeric runs from a raw query
// string.
func tokenizeKeywords(query string) []string {
	var keywords []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			keywords = append(keywords, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(query) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
			continue
		}

		flush()
	}

	flush()

	return keywords
}

// annotationMatches reports whether an annotation value contains the keyword
// as a whole-word-ish substring: bounded by whitespace (or the value's edge)
// on at least one side.
func annotationMatches(value string, keyword string) bool {
	lower := strings.ToLower(value)

	for offset := 0; ; {
		idx := strings.Index(lower[offset:], keyword)
		if idx < 0 {
			return false
		}

		idx += offset

		leftBounded := idx == 0 || unicode.IsSpace(rune(lower[idx-1]))

		end := idx + len(keyword)
		rightBounded := end >= len(lower) || unicode.IsSpace(rune(lower[end]))

		if leftBounded || rightBounded {
			return true
		}

		offset = idx + 1
	}
}

// searchDatasets queries the annotation store once per keyword and ranks
// datasets by total hit count, descending.  ties break by ascending dataset
// id so that ordering never depends on fetch completion order.
func (s *searchContext) searchDatasets(keywords []string) ([]string, error) {
	if len(keywords) == 0 {
		return []string{}, nil
	}

	fields := s.pool.config.Storage.AnnotationFields

	rows := make([][]annotationRow, len(keywords))

	var g errgroup.Group
	g.SetLimit(fetchConcurrencyLimit)

	for i, keyword := range keywords {
		g.Go(func() error {
			res, err := s.pool.storage.queryAnnotations(fields, "%"+keyword+"%")
			if err != nil {
				return err
			}

			rows[i] = res

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	hits := make(map[string]int)

	for i, keyword := range keywords {
		for _, row := range rows[i] {
			if annotationMatches(row.AnnotationValue, keyword) == false {
				continue
			}

			id := datasetIDFromPath(row.CollectionPath)
			if id == "" {
				continue
			}

			hits[id]++
		}
	}

	ids := make([]string, 0, len(hits))

	for id := range hits {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		if hits[ids[i]] != hits[ids[j]] {
			return hits[ids[i]] > hits[ids[j]]
		}

		return ids[i] < ids[j]
	})

	if len(ids) == 0 {
		return nil, errNotFound
	}

	return ids, nil
}

// combineWithFilter intersects a search order with a filter result set while
// preserving the search order.
func combineWithFilter(searchOrder []string, filterSet []string) []string {
	keep := stringSet(filterSet)

	var combined []string

	for _, id := range searchOrder {
		if keep[id] == true {
			combined = append(combined, id)
		}
	}

	return combined
}
