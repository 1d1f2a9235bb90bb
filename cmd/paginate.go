package main

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// pagination: merges the public and scope-restricted visibility tiers,
// reconciles counts, and serves one ordered page.
//
// the displayed universe is the ordered public tier followed by private-only
// datasets; a private variant always overrides its public counterpart when
// both are visible to the caller.

type paginationTiers struct {
	publicIDs   []string        // backend discovery order
	publicSet   map[string]bool
	privateSet  map[string]bool
	matchPair   map[string]bool // ids present in both tiers
	privateOnly []string        // sorted ascending
}

func (t *paginationTiers) totalDisplayed() int {
	return len(t.publicIDs) + len(t.privateOnly)
}

// countPhase issues the two concurrent counting fetches, one per visibility
// tier, and builds the id sets.
func (s *searchContext) countPhase(node string, constraint []string, constrained bool) (*paginationTiers, error) {
	public := []string{s.pool.config.Scopes.Public}
	private := s.client.privateScopes()

	item := queryItem{
		node:   node,
		fields: []string{datasetIDField},
	}

	if constrained == true {
		item = item.withFilter(datasetIDField, constraint)
	}

	queries := []keyedQuery{
		{key: "public", item: item.withAccess(public)},
		{key: "public_count", item: item.withAccess(public).asCount()},
	}

	if len(private) > 0 {
		queries = append(queries, keyedQuery{key: "private", item: item.withAccess(private)})
	}

	results := s.fetchAll(queries)

	tiers := paginationTiers{
		publicSet:  make(map[string]bool),
		privateSet: make(map[string]bool),
		matchPair:  make(map[string]bool),
	}

	for key, res := range results {
		if key == "public_count" {
			continue
		}

		if res.err != nil {
			if errorIsNotFound(res.err) {
				continue
			}

			return nil, fmt.Errorf("count fetch [%s]: %w", key, res.err)
		}

		for _, record := range res.res.nodeRecords(node) {
			id := record.datasetID()
			if id == "" {
				continue
			}

			if key == "public" {
				if tiers.publicSet[id] == false {
					tiers.publicSet[id] = true
					tiers.publicIDs = append(tiers.publicIDs, id)
				}
			} else {
				tiers.privateSet[id] = true
			}
		}
	}

	// the backend count is advisory: it counts records, the tier counts
	// distinct dataset ids.  a disagreement beyond that is worth a log line.
	if res := results["public_count"]; res.err == nil {
		backend := res.res.nodeCount(nodeCatalog[node].countName)
		if backend < len(tiers.publicIDs) {
			s.log("[COUNT] backend reports %d public records for %d distinct dataset ids", backend, len(tiers.publicIDs))
		}
	}

	for id := range tiers.privateSet {
		if tiers.publicSet[id] == true {
			tiers.matchPair[id] = true
		} else {
			tiers.privateOnly = append(tiers.privateOnly, id)
		}
	}

	sort.Strings(tiers.privateOnly)

	return &tiers, nil
}

// titleSortOrder runs the alphabetical pre-pass: the title sort key lives on
// a related sub-record, so it is fetched up front and the displayed universe
// is ordered by it in memory.
func (s *searchContext) titleSortOrder(node nodeDef, tiers *paginationTiers) ([]string, error) {
	if node.titleField == "" {
		return nil, fmt.Errorf("%w: [%s] does not support alphabetical order", errUnsupportedOrder, node.name)
	}

	titleNode := node.name
	if node.titleNode != "" {
		titleNode = node.titleNode
	}

	displayed := append(append([]string{}, tiers.publicIDs...), tiers.privateOnly...)

	item := queryItem{
		node:   titleNode,
		access: s.client.accessScopes(),
		fields: []string{datasetIDField, node.titleField},
	}

	res, err := s.fetchOne(item.withFilter(datasetIDField, displayed))
	if err != nil && errorIsNotFound(err) == false {
		return nil, err
	}

	titles := make(map[string]string)

	for _, record := range res.nodeRecords(titleNode) {
		id := record.datasetID()
		if id == "" {
			continue
		}

		if _, ok := titles[id]; ok == false {
			titles[id] = strings.ToLower(record.stringValue(node.titleField))
		}
	}

	sort.SliceStable(displayed, func(i, j int) bool {
		a, b := titles[displayed[i]], titles[displayed[j]]

		if a != b {
			return a < b
		}

		return displayed[i] < displayed[j]
	})

	return displayed, nil
}

// pageSlice pages over an explicit display order.
func pageSlice(order []string, page int, limit int) []string {
	start := (page - 1) * limit
	if start >= len(order) {
		return []string{}
	}

	end := start + limit
	if end > len(order) {
		end = len(order)
	}

	return order[start:end]
}

// displayRecords resolves one page of dataset ids to records: public records
// are fetched in one batch, and every id in the match pair (or only visible
// privately) gets its own private-scoped single-id fetch whose result wins.
func (s *searchContext) displayRecords(node string, pageIDs []string, tiers *paginationTiers) ([]metaRecord, error) {
	if len(pageIDs) == 0 {
		return []metaRecord{}, nil
	}

	public := []string{s.pool.config.Scopes.Public}
	private := s.client.privateScopes()

	var publicIDs []string
	var privateIDs []string

	for _, id := range pageIDs {
		if tiers.publicSet[id] == true {
			publicIDs = append(publicIDs, id)
		}

		if tiers.matchPair[id] == true || tiers.publicSet[id] == false {
			privateIDs = append(privateIDs, id)
		}
	}

	byID := make(map[string]metaRecord)

	if len(publicIDs) > 0 {
		item := queryItem{node: node, access: public}

		res, err := s.fetchOne(item.withFilter(datasetIDField, publicIDs))
		if err != nil && errorIsNotFound(err) == false {
			return nil, err
		}

		for _, record := range res.nodeRecords(node) {
			if id := record.datasetID(); id != "" {
				byID[id] = record
			}
		}
	}

	if len(privateIDs) > 0 && len(private) > 0 {
		var queries []keyedQuery

		for _, id := range privateIDs {
			item := queryItem{node: node, access: private}
			queries = append(queries, keyedQuery{key: id, item: item.withFilter(datasetIDField, []string{id})})
		}

		results := s.fetchAll(queries)

		for _, id := range privateIDs {
			res := results[id]

			if res.err != nil {
				// a failed override leaves the public variant in place
				if errorIsNotFound(res.err) == false {
					s.err("private override fetch [%s]: %s", id, res.err.Error())
				}
				continue
			}

			if record := firstRecordOf(res.res, node); record != nil {
				byID[id] = record
			}
		}
	}

	// assemble in page order; the order fixed upstream is never changed here

	var records []metaRecord

	for _, id := range pageIDs {
		if record, ok := byID[id]; ok == true {
			records = append(records, record)
		}
	}

	return records, nil
}

// handleSearchRequest drives the full resolution pipeline: filters, keyword
// search, count reconciliation, ordering, and one display page.
func (s *searchContext) handleSearchRequest(req PortalSearchRequest) searchResponse {
	node, ok := nodeCatalog[req.Node]
	if ok == false {
		return errorResponse(fmt.Errorf("%w: [%s]", errUnsupportedNode, req.Node))
	}

	keywords := tokenizeKeywords(req.Search)
	hasSearch := len(keywords) > 0

	orderMode, orderErr := resolveOrderMode(req.Order, hasSearch)
	if orderErr != nil {
		return errorResponse(orderErr)
	}

	limit := restrictValue("limit", req.Limit, 1, s.pool.config.Search.DefaultLimit)
	page := restrictValue("page", req.Page, 1, 1)

	access := s.client.accessScopes()

	// filter phase

	var entries map[string]facetEntry
	if len(req.Filters) > 0 {
		entries = s.pool.facets.overlayedEntries(s.client.privateScopes())
	}

	constraint, constrained, filterErr := s.resolveFilterConstraint(req.Filters, entries, access)
	if filterErr != nil {
		return errorResponse(filterErr)
	}

	// search phase

	var searchOrder []string

	if hasSearch == true {
		order, searchErr := s.searchDatasets(keywords)
		if searchErr != nil {
			return errorResponse(searchErr)
		}

		if constrained == true {
			order = combineWithFilter(order, constraint)
		}

		searchOrder = order
		constraint = order
		constrained = true
	}

	if constrained == true && len(constraint) == 0 {
		return errorResponse(errNotFound)
	}

	// count phase

	tiers, countErr := s.countPhase(req.Node, constraint, constrained)
	if countErr != nil {
		return errorResponse(countErr)
	}

	total := tiers.totalDisplayed()
	if total == 0 {
		return errorResponse(errNotFound)
	}

	// ordering + display phase

	var pageIDs []string

	switch orderMode {
	case orderAlphabetical:
		// title pre-pass resets to the first page
		page = 1

		order, titleErr := s.titleSortOrder(node, tiers)
		if titleErr != nil {
			return errorResponse(titleErr)
		}

		pageIDs = pageSlice(order, page, limit)

	case orderRelevance:
		// search logic already produced the order
		var order []string

		for _, id := range searchOrder {
			if tiers.publicSet[id] == true || tiers.privateSet[id] == true {
				order = append(order, id)
			}
		}

		pageIDs = pageSlice(order, page, limit)

	default:
		// temporal order is a direct backend order argument on the public
		// tier; private-only datasets trail the last public page
		ids, temporalErr := s.temporalPageIDs(req.Node, orderMode, constraint, constrained, tiers, page, limit)
		if temporalErr != nil {
			return errorResponse(temporalErr)
		}

		pageIDs = ids
	}

	records, displayErr := s.displayRecords(req.Node, pageIDs, tiers)
	if displayErr != nil {
		return errorResponse(displayErr)
	}

	result := PortalSearchResult{
		Items:         []PortalDatasetView{},
		NumberPerPage: limit,
		Page:          page,
		Total:         total,
		ElapsedMS:     int64(time.Since(s.client.start) / time.Millisecond),
	}

	if s.client.opts.debug == true {
		result.Debug = map[string]interface{}{
			"reqId":       s.client.reqID,
			"order":       orderMode,
			"publicTotal": len(tiers.publicIDs),
			"privateOnly": len(tiers.privateOnly),
		}
	}

	for _, record := range records {
		result.Items = append(result.Items, recordView(record))
	}

	return searchResponse{status: http.StatusOK, data: result}
}

// temporalPageIDs fetches one backend-ordered page of the public tier and
// fills any remainder from the sorted private-only tail.
func (s *searchContext) temporalPageIDs(node string, orderMode string, constraint []string, constrained bool, tiers *paginationTiers, page int, limit int) ([]string, error) {
	public := []string{s.pool.config.Scopes.Public}

	start := (page - 1) * limit
	publicCount := len(tiers.publicIDs)

	var pageIDs []string

	if start < publicCount {
		// a dataset can own multiple backend records on this node, so one
		// backend page can hold fewer distinct dataset ids than asked for.
		// fetch the ordered prefix and widen it until it covers this page's
		// ids (or the backend runs out of records), then slice.

		need := start + limit
		fetchLimit := need

		var ordered []string

		for {
			item := queryItem{
				node:   node,
				access: public,
				fields: []string{datasetIDField, createdField},
				page:   1,
				limit:  fetchLimit,
			}

			if orderMode == orderOldest {
				item.orderAsc = createdField
			} else {
				item.orderDesc = createdField
			}

			if constrained == true {
				item = item.withFilter(datasetIDField, constraint)
			}

			res, err := s.fetchOne(item)
			if err != nil && errorIsNotFound(err) == false {
				return nil, err
			}

			records := res.nodeRecords(node)

			ordered = nil
			for _, record := range records {
				if id := record.datasetID(); id != "" {
					ordered = append(ordered, id)
				}
			}

			ordered = uniqueStrings(ordered)

			if len(ordered) >= need || len(records) < fetchLimit {
				break
			}

			fetchLimit *= 2
		}

		pageIDs = pageSlice(ordered, page, limit)
	}

	// private-only tail for this page, relative to the combined order

	tailFrom := start - publicCount
	if tailFrom < 0 {
		tailFrom = 0
	}

	tailTo := start + limit - publicCount

	if tailTo > 0 {
		if tailTo > len(tiers.privateOnly) {
			tailTo = len(tiers.privateOnly)
		}

		if tailFrom < tailTo {
			pageIDs = append(pageIDs, tiers.privateOnly[tailFrom:tailTo]...)
		}
	}

	if len(pageIDs) > limit {
		pageIDs = pageIDs[:limit]
	}

	return pageIDs, nil
}

func firstRecordOf(res *metaResponse, node string) metaRecord {
	records := res.nodeRecords(node)

	if len(records) == 0 {
		return nil
	}

	return records[0]
}

func errorIsNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}
