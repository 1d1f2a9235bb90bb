package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// in-memory metadata backend implementing the querier boundary.  it decodes
// compiled query text just enough to honor scope, filter, order, and
// pagination arguments against fixture records.

type fakeMetadata struct {
	mu      sync.Mutex
	records map[string]map[string][]metaRecord // scope -> node -> records
	failAll bool
	queries []string
}

var queryTextRE = regexp.MustCompile(`^\{ (\w+)(?:\(([^)]*)\))?`)

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{records: make(map[string]map[string][]metaRecord)}
}

func (f *fakeMetadata) add(scope string, node string, record metaRecord) {
	if f.records[scope] == nil {
		f.records[scope] = make(map[string][]metaRecord)
	}

	f.records[scope][node] = append(f.records[scope][node], record)
}

func parseQueryArgs(argText string) map[string]interface{} {
	args := make(map[string]interface{})

	if argText == "" {
		return args
	}

	// compiled arg values are compact JSON with no embedded ", "
	for _, part := range strings.Split(argText, ", ") {
		pieces := strings.SplitN(part, ": ", 2)
		if len(pieces) != 2 {
			continue
		}

		var val interface{}
		if err := json.Unmarshal([]byte(pieces[1]), &val); err != nil {
			continue
		}

		args[pieces[0]] = val
	}

	return args
}

func argStrings(val interface{}) []string {
	var out []string

	switch v := val.(type) {
	case string:
		out = append(out, v)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}

	return out
}

func (f *fakeMetadata) runQuery(query string, access []string) (*metaResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	failAll := f.failAll
	f.mu.Unlock()

	if failAll == true {
		return nil, errUpstreamUnavailable
	}

	m := queryTextRE.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("fake backend cannot parse query: %s", query)
	}

	name := m[1]
	args := parseQueryArgs(m[2])

	countOnly := false
	node := name

	if strings.HasPrefix(name, "_") && strings.HasSuffix(name, "_count") {
		countOnly = true
		node = strings.TrimSuffix(strings.TrimPrefix(name, "_"), "_count")
	}

	def, ok := nodeCatalog[node]
	if ok == false {
		return nil, fmt.Errorf("fake backend: unknown node [%s]", node)
	}

	var matched []metaRecord

	for _, scope := range access {
		for _, record := range f.records[scope][node] {
			keep := true

			for argName, argVal := range args {
				kind, isField := def.fieldKind(argName)
				if isField == false {
					continue
				}

				wanted := argStrings(argVal)

				switch kind {
				case fieldArray:
					keep = sliceContainsAnyValueFromSlice(record.listValues(argName), wanted, false)
				case fieldString:
					keep = sliceContainsString(wanted, record.stringValue(argName), false)
				}

				if keep == false {
					break
				}
			}

			if keep == true {
				matched = append(matched, record)
			}
		}
	}

	res := &metaResponse{
		records: make(map[string][]metaRecord),
		counts:  make(map[string]int),
	}

	if countOnly == true {
		res.counts[name] = len(matched)
		return res, nil
	}

	if field, ok := args["order_by_asc"].(string); ok == true {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].stringValue(field) < matched[j].stringValue(field)
		})
	}

	if field, ok := args["order_by_desc"].(string); ok == true {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].stringValue(field) > matched[j].stringValue(field)
		})
	}

	if first, ok := args["first"].(float64); ok == true {
		offset := 0
		if off, ok := args["offset"].(float64); ok == true {
			offset = int(off)
		}

		if offset > len(matched) {
			offset = len(matched)
		}

		end := offset + int(first)
		if end > len(matched) {
			end = len(matched)
		}

		matched = matched[offset:end]
	}

	res.records[node] = matched

	return res, nil
}

// in-memory annotation store implementing the storage boundary

type fakeAnnotations struct {
	rows []annotationRow
	err  error
}

func (f *fakeAnnotations) queryAnnotations(fieldNames []string, likePattern string) ([]annotationRow, error) {
	if f.err != nil {
		return nil, f.err
	}

	token := strings.Trim(likePattern, "%")

	var matched []annotationRow

	for _, row := range f.rows {
		if strings.Contains(strings.ToLower(row.AnnotationValue), strings.ToLower(token)) {
			matched = append(matched, row)
		}
	}

	return matched, nil
}

// test fixtures

const testPublicScope = "public"
const testPrivateScope = "proj-alpha"

func testFilterConfig() []poolConfigFilter {
	return []poolConfigFilter{
		{ID: "additionalTypes", XID: "FilterAdditionalTypes", Node: "manifest", Field: "additional_types", Dynamic: true},
		{ID: "species", XID: "FilterSpecies", Node: "case", Field: "species", Dynamic: true},
		{ID: "sex", XID: "FilterSex", Node: "case", Field: "sex", Dynamic: false, Facets: []poolConfigFacetValue{
			{Name: "Male", Values: []string{"Male", "male"}},
			{Name: "Female", Values: []string{"Female", "female"}},
		}},
	}
}

func newTestPool(meta metadataQuerier, storage annotationQuerier) *poolContext {
	cfg := &poolConfig{
		Service:  poolConfigService{Port: "8080", JWTKey: "test-key"},
		Identity: poolConfigIdentity{NameXID: "PoolName", DescXID: "PoolDescription"},
		Metadata: poolConfigMetadata{Host: "http://localhost/meta"},
		Storage:  poolConfigStorage{Host: "http://localhost/storage", AnnotationFields: []string{"title", "description"}},
		Scopes:   poolConfigScopes{Public: testPublicScope},
		Search:   poolConfigSearch{DefaultLimit: 10},
		Filters:  testFilterConfig(),
	}

	p := &poolContext{
		config:       cfg,
		randomSource: rand.New(rand.NewSource(1)),
		metadata:     meta,
		storage:      storage,
	}

	bundle := i18n.NewBundle(language.English)
	bundle.AddMessages(language.English,
		&i18n.Message{ID: "PoolName", Other: "Metadata Pool"},
		&i18n.Message{ID: "PoolDescription", Other: "Federated dataset metadata"},
		&i18n.Message{ID: "FilterAdditionalTypes", Other: "File Types"},
		&i18n.Message{ID: "FilterSpecies", Other: "Species"},
		&i18n.Message{ID: "FilterSex", Other: "Sex"},
	)

	p.translations = poolTranslations{bundle: bundle}
	p.initMaps()

	// cache without the refresh monitor; tests drive generation directly
	p.facets = &facetCache{pool: p, refreshInterval: 3600}

	return p
}

func newTestSearch(p *poolContext, privateScopes []string) *searchContext {
	c := &clientContext{}
	c.init(p, nil)

	if len(privateScopes) > 0 {
		c.claims = &scopeClaims{Scopes: privateScopes}
	}

	s := &searchContext{}
	s.init(p, c)

	return s
}

// seedDatasets loads the standard fixture: two public datasets with their
// sub-records, plus one private overlay and one private-only dataset.
func seedDatasets(meta *fakeMetadata) {
	// dataset-46-version-2: Rat, Male, plot files
	meta.add(testPublicScope, "experiment", metaRecord{
		"submitter_id": "dataset-46-version-2", "dataset_id": "dataset-46-version-2",
		"project_id": testPublicScope, "created_datetime": "2021-03-01T00:00:00Z",
	})
	meta.add(testPublicScope, "case", metaRecord{
		"submitter_id": "case-46", "dataset_id": "dataset-46-version-2",
		"species": "Rat", "sex": "Male",
	})
	meta.add(testPublicScope, "manifest", metaRecord{
		"submitter_id": "manifest-46", "dataset_id": "dataset-46-version-2",
		"filename": "plot.csv", "additional_types": []interface{}{"plot"},
	})
	meta.add(testPublicScope, "description", metaRecord{
		"submitter_id": "desc-46", "dataset_id": "dataset-46-version-2",
		"title": "Gastric electrophysiology",
	})

	// dataset-12-version-1: Mouse, Female, scaffold files
	meta.add(testPublicScope, "experiment", metaRecord{
		"submitter_id": "dataset-12-version-1", "dataset_id": "dataset-12-version-1",
		"project_id": testPublicScope, "created_datetime": "2020-06-15T00:00:00Z",
	})
	meta.add(testPublicScope, "case", metaRecord{
		"submitter_id": "case-12", "dataset_id": "dataset-12-version-1",
		"species": "Mouse", "sex": "Female",
	})
	meta.add(testPublicScope, "manifest", metaRecord{
		"submitter_id": "manifest-12", "dataset_id": "dataset-12-version-1",
		"filename": "scaffold.json", "additional_types": []interface{}{"scaffold"},
	})
	meta.add(testPublicScope, "description", metaRecord{
		"submitter_id": "desc-12", "dataset_id": "dataset-12-version-1",
		"title": "Colonic scaffold mapping",
	})

	// private variant of dataset-46-version-2 under the private scope
	meta.add(testPrivateScope, "experiment", metaRecord{
		"submitter_id": "dataset-46-version-2", "dataset_id": "dataset-46-version-2",
		"project_id": testPrivateScope, "created_datetime": "2021-03-02T00:00:00Z",
	})

	// private-only dataset
	meta.add(testPrivateScope, "experiment", metaRecord{
		"submitter_id": "dataset-90-version-1", "dataset_id": "dataset-90-version-1",
		"project_id": testPrivateScope, "created_datetime": "2022-01-01T00:00:00Z",
	})
	meta.add(testPrivateScope, "case", metaRecord{
		"submitter_id": "case-90", "dataset_id": "dataset-90-version-1",
		"species": "Cat", "sex": "Female",
	})
}
