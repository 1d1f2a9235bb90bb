package main

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// per-request search context and the flows shared by the search, query, and
// filter endpoints

type searchContext struct {
	pool   *poolContext
	client *clientContext
}

type searchResponse struct {
	status int         // http status code
	data   interface{} // data to return as JSON
	err    error       // error, if any
}

func (s *searchContext) init(p *poolContext, c *clientContext) {
	s.pool = p
	s.client = c
}

func (s *searchContext) log(format string, args ...interface{}) {
	s.client.log(format, args...)
}

func (s *searchContext) err(format string, args ...interface{}) {
	s.client.err(format, args...)
}

// fetchAll routes a fan-out through this request, logging each compiled query
// when the client asked for verbose output.
func (s *searchContext) fetchAll(queries []keyedQuery) map[string]fetchResult {
	if s.client.opts.verbose == true {
		for _, q := range queries {
			if text, err := compileQuery(q.item); err == nil {
				s.log("[QUERY] %s: %s", q.key, text)
			}
		}
	}

	return s.pool.fetchAll(queries)
}

func (s *searchContext) fetchOne(item queryItem) (*metaResponse, error) {
	res := s.fetchAll([]keyedQuery{{key: "one", item: item}})["one"]

	return res.res, res.err
}

func errorResponse(err error) searchResponse {
	return searchResponse{status: statusForError(err), err: err}
}

// order modes

const (
	orderAlphabetical = "alphabetical"
	orderNewest       = "newest"
	orderOldest       = "oldest"
	orderRelevance    = "relevance"
)

// resolveOrderMode validates the requested order string.  relevance without
// an active search falls back to ascending temporal order.
func resolveOrderMode(order string, hasSearch bool) (string, error) {
	if order == "" {
		order = orderRelevance
	}

	switch order {
	case orderAlphabetical, orderNewest, orderOldest:
		return order, nil

	case orderRelevance:
		if hasSearch == false {
			return orderOldest, nil
		}

		return orderRelevance, nil

	default:
		return "", fmt.Errorf("%w: [%s]", errUnsupportedOrder, order)
	}
}

// resolveFilterConstraint resolves the caller's chosen facets to a sorted
// dataset-id list via the facet entries, fetching matching records per filter
// field and combining with AND semantics.  a request with zero filters yields
// no constraint.
func (s *searchContext) resolveFilterConstraint(filters map[string][]string, entries map[string]facetEntry, access []string) ([]string, bool, error) {
	if len(filters) == 0 {
		return nil, false, nil
	}

	if entries == nil {
		return nil, false, fmt.Errorf("%w: facets have not been cached yet", errUpstreamUnavailable)
	}

	// iterate filters in sorted id order so the AND pivot is deterministic

	var filterIDs []string
	for id := range filters {
		filterIDs = append(filterIDs, id)
	}
	sort.Strings(filterIDs)

	type resolvedFilter struct {
		id     string
		entry  facetEntry
		values []string
	}

	var resolved []resolvedFilter
	var queries []keyedQuery

	for _, id := range filterIDs {
		entry, ok := entries[id]
		if ok == false {
			// a filter that is defined but not yet cached is a backend
			// condition, not a client mistake
			if _, defined := s.pool.maps.definedFilters[id]; defined == true {
				return nil, false, fmt.Errorf("%w: filter [%s] has not been cached yet", errUpstreamUnavailable, id)
			}

			return nil, false, fmt.Errorf("%w: unrecognized filter [%s]", errInvalidRequest, id)
		}

		values, resolveErr := resolveFacetValues(id, entry, filters[id])
		if resolveErr != nil {
			return nil, false, resolveErr
		}

		resolved = append(resolved, resolvedFilter{id: id, entry: entry, values: values})

		item := queryItem{
			node:   entry.node,
			access: access,
			fields: []string{entry.field, datasetIDField},
		}

		queries = append(queries, keyedQuery{key: id, item: item.withFilter(entry.field, values)})
	}

	results := s.fetchAll(queries)

	var perFieldResults [][]string

	for _, rf := range resolved {
		res := results[rf.id]

		if res.err != nil {
			if errors.Is(res.err, errNotFound) {
				perFieldResults = append(perFieldResults, []string{})
				continue
			}

			return nil, false, res.err
		}

		ids := resolveDatasetIDs(rf.entry, rf.values, res.res.nodeRecords(rf.entry.node))
		perFieldResults = append(perFieldResults, ids)
	}

	return combineIDs(perFieldResults, relationAND), true, nil
}

// recordView translates a backend record into its caller-facing rendering.
func recordView(record metaRecord) PortalDatasetView {
	view := PortalDatasetView{
		DatasetID: record.datasetID(),
		Fields:    make(map[string]interface{}, len(record)),
	}

	for field, value := range record {
		view.Fields[callerFieldName(field)] = value
	}

	return view
}

// handleQueryRequest is the direct pass-through query: node + filter +
// search, no pagination.
func (s *searchContext) handleQueryRequest(req PortalQueryRequest) searchResponse {
	if _, ok := nodeCatalog[req.Node]; ok == false {
		return errorResponse(fmt.Errorf("%w: [%s]", errUnsupportedNode, req.Node))
	}

	access := s.client.accessScopes()
	entries := s.pool.facets.overlayedEntries(s.client.privateScopes())

	item := queryItem{
		node:   req.Node,
		search: req.Search,
		access: access,
	}

	for id, names := range req.Filters {
		entry, ok := entries[id]
		if ok == false {
			if _, defined := s.pool.maps.definedFilters[id]; defined == true {
				return errorResponse(fmt.Errorf("%w: filter [%s] has not been cached yet", errUpstreamUnavailable, id))
			}

			return errorResponse(fmt.Errorf("%w: unrecognized filter [%s]", errInvalidRequest, id))
		}

		if entry.node != req.Node {
			return errorResponse(fmt.Errorf("%w: filter [%s] does not apply to node [%s]", errInvalidRequest, id, req.Node))
		}

		values, resolveErr := resolveFacetValues(id, entry, names)
		if resolveErr != nil {
			return errorResponse(resolveErr)
		}

		item = item.withFilter(entry.field, values)
	}

	res, fetchErr := s.fetchOne(item)
	if fetchErr != nil {
		return errorResponse(fetchErr)
	}

	records := res.nodeRecords(req.Node)
	if len(records) == 0 {
		return errorResponse(errNotFound)
	}

	result := PortalQueryResult{
		Count:     len(records),
		ElapsedMS: int64(time.Since(s.client.start) / time.Millisecond),
	}

	if s.client.opts.debug == true {
		result.Debug = map[string]interface{}{"reqId": s.client.reqID}
	}

	for _, record := range records {
		result.Items = append(result.Items, recordView(record))
	}

	return searchResponse{status: http.StatusOK, data: result}
}

// handleFiltersRequest renders the facet cache plus the caller's private
// overlay, as either a sidebar tree or a flat table.
func (s *searchContext) handleFiltersRequest(flat bool) searchResponse {
	if s.pool.facets.snapshot() == nil {
		return errorResponse(fmt.Errorf("%w: facets have not been cached yet", errUpstreamUnavailable))
	}

	entries := s.pool.facets.overlayedEntries(s.client.privateScopes())

	if flat == true {
		var rows []PortalFilterRow

		for _, cfg := range s.pool.config.Filters {
			entry, ok := entries[cfg.ID]
			if ok == false {
				continue
			}

			rows = append(rows, PortalFilterRow{
				ID:     cfg.ID,
				Label:  s.client.localize(entry.title),
				Node:   entry.node,
				Field:  callerFieldName(entry.field),
				Facets: entry.facetNames(),
			})
		}

		return searchResponse{status: http.StatusOK, data: rows}
	}

	var branches []PortalFilterBranch

	for _, cfg := range s.pool.config.Filters {
		entry, ok := entries[cfg.ID]
		if ok == false {
			continue
		}

		branch := PortalFilterBranch{
			ID:    cfg.ID,
			Label: s.client.localize(entry.title),
		}

		for _, name := range entry.facetNames() {
			branch.Children = append(branch.Children, PortalFacetOption{Name: name})
		}

		branches = append(branches, branch)
	}

	return searchResponse{status: http.StatusOK, data: branches}
}
