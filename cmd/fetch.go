package main

import (
	"golang.org/x/sync/errgroup"
)

// fetch orchestration: keyed concurrent fan-out against the metadata backend.
// concurrency is request-scoped; every unit of work in one fan-out completes
// (or individually fails) before results are consumed.

// limit concurrency to avoid FD exhaustion against the backend
const fetchConcurrencyLimit = 16

type keyedQuery struct {
	key  string
	item queryItem
}

type fetchResult struct {
	res *metaResponse
	err error
}

// fetchAll runs one backend query per request and joins them all.  a failure
// in one request surfaces as an error for that key only; sibling fetches are
// never aborted.  every input key is present in the output.
func (p *poolContext) fetchAll(queries []keyedQuery) map[string]fetchResult {
	results := make([]fetchResult, len(queries))

	var g errgroup.Group
	g.SetLimit(fetchConcurrencyLimit)

	for i, q := range queries {
		g.Go(func() error {
			text, compileErr := compileQuery(q.item)
			if compileErr != nil {
				results[i] = fetchResult{err: compileErr}
				return nil
			}

			res, err := p.metadata.runQuery(text, q.item.access)
			results[i] = fetchResult{res: res, err: err}

			// per-key error reporting; the group itself never fails
			return nil
		})
	}

	g.Wait()

	keyed := make(map[string]fetchResult, len(queries))

	for i, q := range queries {
		keyed[q.key] = results[i]
	}

	return keyed
}

// fetchOne is the single-query convenience wrapper over fetchAll.
func (p *poolContext) fetchOne(item queryItem) (*metaResponse, error) {
	res := p.fetchAll([]keyedQuery{{key: "one", item: item}})["one"]

	return res.res, res.err
}
