package main

// metadata backend request/response structures

// queryItem is a fully-resolved backend query descriptor.  pipeline stages
// never mutate one in place; each stage derives a new value from the previous
// stage's output.
type queryItem struct {
	node      string
	filter    map[string][]string // backend field -> backend values; empty values are stripped
	search    string              // free-text, forwarded to the backend on direct queries
	access    []string            // access scope ids
	page      int                 // 1-based; 0 means no pagination args
	limit     int
	orderAsc  string // backend field
	orderDesc string
	countOnly bool
	fields    []string // overrides the selected field list when non-empty
}

func (q queryItem) withFilter(field string, values []string) queryItem {
	filter := make(map[string][]string, len(q.filter)+1)

	for k, v := range q.filter {
		filter[k] = v
	}

	filter[field] = values
	q.filter = filter

	return q
}

func (q queryItem) withAccess(access []string) queryItem {
	q.access = access
	return q
}

func (q queryItem) asCount() queryItem {
	q.countOnly = true
	q.page = 0
	q.limit = 0
	q.orderAsc = ""
	q.orderDesc = ""
	return q
}

type metaRecord map[string]interface{}

func (r metaRecord) stringValue(field string) string {
	if val, ok := r[field].(string); ok {
		return val
	}

	return ""
}

func (r metaRecord) listValues(field string) []string {
	var values []string

	switch val := r[field].(type) {
	case []interface{}:
		for _, v := range val {
			if s, ok := v.(string); ok {
				values = append(values, s)
			}
		}

	case []string:
		values = append(values, val...)
	}

	return values
}

// fieldValues folds a field down to a value list regardless of its kind:
// non-"NA" scalar values and list elements both contribute.
func (r metaRecord) fieldValues(field string) []string {
	if val := r.stringValue(field); val != "" {
		if val == "NA" {
			return nil
		}

		return []string{val}
	}

	return r.listValues(field)
}

func (r metaRecord) datasetID() string {
	return r.stringValue(datasetIDField)
}

// metaResponse is the decoded form of one backend query response.  records
// are keyed by node name or sub-query alias; counts hold the count
// pseudo-field values.
type metaResponse struct {
	records map[string][]metaRecord
	counts  map[string]int
}

func (m *metaResponse) nodeRecords(name string) []metaRecord {
	if m == nil {
		return nil
	}

	return m.records[name]
}

func (m *metaResponse) nodeCount(name string) int {
	if m == nil {
		return 0
	}

	return m.counts[name]
}

type metaResponseError struct {
	Message string `json:"message,omitempty"`
}

// wire envelope; the data block mixes record lists and scalar counts, so it
// is decoded in two passes (see convertRecords)
type metaResponseEnvelope struct {
	Data   map[string]interface{} `json:"data,omitempty"`
	Errors []metaResponseError    `json:"errors,omitempty"`
}
