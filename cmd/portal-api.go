package main

// schemas for the portal-facing API

// PortalSearchRequest holds the contents of a paginated search request as
// parsed from JSON.  Filter keys are filter ids; filter values are facet
// display names.  Field names in the JSON are caller (camelCase) names.
type PortalSearchRequest struct {
	Node    string              `json:"node"`
	Filters map[string][]string `json:"filters,omitempty"`
	Search  string              `json:"search,omitempty"`
	Order   string              `json:"order,omitempty"` // alphabetical, newest, oldest, relevance
	Page    int                 `json:"page,omitempty"`
	Limit   int                 `json:"limit,omitempty"`
}

// PortalQueryRequest holds a direct pass-through query request (no pagination).
type PortalQueryRequest struct {
	Node    string              `json:"node"`
	Filters map[string][]string `json:"filters,omitempty"`
	Search  string              `json:"search,omitempty"`
}

// PortalDatasetView is one resolved record in a search response.  Fields holds
// the record's backend fields translated to caller naming.
type PortalDatasetView struct {
	DatasetID string                 `json:"datasetId"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// PortalSearchResult contains the full response to a paginated search request.
// Debug is only populated when the client requests it.
type PortalSearchResult struct {
	Items         []PortalDatasetView    `json:"items"`
	NumberPerPage int                    `json:"numberPerPage"`
	Page          int                    `json:"page"`
	Total         int                    `json:"total"`
	ElapsedMS     int64                  `json:"elapsedMs,omitempty"`
	Debug         map[string]interface{} `json:"debug,omitempty"`
}

// PortalQueryResult contains the full response to a direct query request.
type PortalQueryResult struct {
	Items     []PortalDatasetView    `json:"items"`
	Count     int                    `json:"count"`
	ElapsedMS int64                  `json:"elapsedMs,omitempty"`
	Debug     map[string]interface{} `json:"debug,omitempty"`
}

// PortalFacetOption is a single selectable facet value.
type PortalFacetOption struct {
	Name string `json:"name"`
}

// PortalFilterBranch is the sidebar-tree rendering of one filter field.
type PortalFilterBranch struct {
	ID       string              `json:"id"`
	Label    string              `json:"label"`
	Children []PortalFacetOption `json:"children"`
}

// PortalFilterRow is the flat-table rendering of one filter field.
type PortalFilterRow struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Node   string   `json:"node"`
	Field  string   `json:"field"`
	Facets []string `json:"facets"`
}

// PortalIdentity holds localized information about this service.
type PortalIdentity struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}
