package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// query compilation: queryItem -> backend query text.
//
// the backend speaks a GraphQL-flavored query language: one braced block per
// node, arguments for filtering/pagination/ordering, and a field selection
// list.  compilation is pure; all I/O happens in the fetch layer.

func compileQuery(item queryItem) (string, error) {
	node, ok := nodeCatalog[item.node]
	if ok == false {
		return "", fmt.Errorf("%w: [%s]", errUnsupportedNode, item.node)
	}

	if item.countOnly == true {
		return fmt.Sprintf("{ %s%s }", node.countName, renderArgs(filterArgs(item))), nil
	}

	args := filterArgs(item)

	if item.limit > 0 {
		offset := 0
		if item.page > 1 {
			offset = (item.page - 1) * item.limit
		}

		args = append(args, queryArg{"first", item.limit}, queryArg{"offset", offset})
	}

	if item.orderAsc != "" {
		args = append(args, queryArg{"order_by_asc", item.orderAsc})
	}

	if item.orderDesc != "" {
		args = append(args, queryArg{"order_by_desc", item.orderDesc})
	}

	selection := item.fields
	if len(selection) == 0 {
		for _, f := range node.fields {
			selection = append(selection, f.name)
		}
	}

	body := strings.Join(selection, " ")

	if node.hasSlots == true {
		body = body + " " + renderClassificationSlots(item.access)
	}

	return fmt.Sprintf("{ %s%s { %s } }", node.name, renderArgs(args), body), nil
}

type queryArg struct {
	name  string
	value interface{}
}

// filterArgs assembles the arguments shared by count and record queries:
// access scopes plus any filter fields.  null or empty filter values are
// stripped so that an omitted filter is indistinguishable from "match all".
func filterArgs(item queryItem) []queryArg {
	var args []queryArg

	if len(item.access) > 0 {
		args = append(args, queryArg{"project_id", item.access})
	}

	var fields []string
	for field, values := range item.filter {
		if len(nonemptyValues(values)) == 0 {
			continue
		}

		fields = append(fields, field)
	}

	sort.Strings(fields)

	for _, field := range fields {
		args = append(args, queryArg{field, nonemptyValues(item.filter[field])})
	}

	if item.search != "" {
		args = append(args, queryArg{"quick_search", item.search})
	}

	return args
}

func renderArgs(args []queryArg) string {
	if len(args) == 0 {
		return ""
	}

	var parts []string

	for _, arg := range args {
		val, err := json.Marshal(arg.value)
		if err != nil {
			// only strings, string lists, and ints pass through here
			continue
		}

		parts = append(parts, fmt.Sprintf("%s: %s", arg.name, string(val)))
	}

	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}

// renderClassificationSlots expands the six fixed manifest sub-queries,
// substituting each slot's content-type/extension allow-list and the caller's
// access scopes.  this is template expansion, not a general join.
func renderClassificationSlots(access []string) string {
	var parts []string

	for _, slot := range classificationSlots {
		args := []queryArg{}

		if len(access) > 0 {
			args = append(args, queryArg{"project_id", access})
		}

		if len(slot.contentTypes) > 0 {
			args = append(args, queryArg{"additional_types", slot.contentTypes})
		}

		if len(slot.extensions) > 0 {
			args = append(args, queryArg{"file_extensions", slot.extensions})
		}

		part := fmt.Sprintf("%s: manifest%s { filename file_type additional_types }", slot.alias, renderArgs(args))

		parts = append(parts, part)
	}

	return strings.Join(parts, " ")
}
