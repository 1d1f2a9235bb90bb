package main

// the fixed metadata node catalog.  the node set is closed and hand-maintained;
// nothing here is discovered from the backend at runtime.

type nodeFieldKind int

const (
	fieldString nodeFieldKind = iota
	fieldArray
)

type nodeField struct {
	name string // backend (snake_case) field name
	kind nodeFieldKind
}

type nodeDef struct {
	name       string // backend node name
	countName  string // backend count pseudo-field
	fields     []nodeField
	hasSlots   bool   // experiment family: expand classification slots
	titleNode  string // node holding the title sort key, if not this one
	titleField string
}

var nodeCatalog = map[string]nodeDef{
	"experiment": {
		name:      "experiment",
		countName: "_experiment_count",
		fields: []nodeField{
			{name: "submitter_id", kind: fieldString},
			{name: "dataset_id", kind: fieldString},
			{name: "project_id", kind: fieldString},
			{name: "created_datetime", kind: fieldString},
			{name: "updated_datetime", kind: fieldString},
		},
		hasSlots:   true,
		titleNode:  "description",
		titleField: "title",
	},
	"description": {
		name:      "description",
		countName: "_description_count",
		fields: []nodeField{
			{name: "submitter_id", kind: fieldString},
			{name: "dataset_id", kind: fieldString},
			{name: "title", kind: fieldString},
			{name: "subtitle", kind: fieldString},
			{name: "keywords", kind: fieldArray},
			{name: "created_datetime", kind: fieldString},
		},
	},
	"manifest": {
		name:      "manifest",
		countName: "_manifest_count",
		fields: []nodeField{
			{name: "submitter_id", kind: fieldString},
			{name: "dataset_id", kind: fieldString},
			{name: "filename", kind: fieldString},
			{name: "file_type", kind: fieldString},
			{name: "additional_types", kind: fieldArray},
			{name: "created_datetime", kind: fieldString},
		},
	},
	"case": {
		name:      "case",
		countName: "_case_count",
		fields: []nodeField{
			{name: "submitter_id", kind: fieldString},
			{name: "dataset_id", kind: fieldString},
			{name: "species", kind: fieldString},
			{name: "sex", kind: fieldString},
			{name: "age_category", kind: fieldString},
			{name: "created_datetime", kind: fieldString},
		},
	},
}

// backend field carrying the owning dataset id on every node
const datasetIDField = "dataset_id"

// backend field used for temporal ordering on every node
const createdField = "created_datetime"

func (n *nodeDef) fieldKind(name string) (nodeFieldKind, bool) {
	for _, f := range n.fields {
		if f.name == name {
			return f.kind, true
		}
	}

	return fieldString, false
}

// classification slots: six fixed manifest sub-queries distinguishing file
// categories by content type or extension.  the slot list and its value sets
// are a fixed table, expanded verbatim into experiment queries.

type classificationSlot struct {
	alias        string
	contentTypes []string
	extensions   []string
}

var classificationSlots = []classificationSlot{
	{
		alias:        "scaffolds",
		contentTypes: []string{"application/x.vnd.abi.scaffold.meta+json"},
	},
	{
		alias: "plots",
		contentTypes: []string{
			"text/vnd.abi.plot+tab-separated-values",
			"text/vnd.abi.plot+csv",
		},
	},
	{
		alias:        "images",
		contentTypes: []string{"image/jpeg", "image/png", "image/tiff"},
		extensions:   []string{".jpg", ".jpeg", ".png", ".tiff"},
	},
	{
		alias:        "videos",
		contentTypes: []string{"video/mp4"},
		extensions:   []string{".mp4"},
	},
	{
		alias:        "segmentations",
		contentTypes: []string{"application/vnd.mbf.neurolucida+xml"},
		extensions:   []string{".xml"},
	},
	{
		alias:        "simulations",
		contentTypes: []string{"application/x.vnd.abi.simulation+json"},
	},
}
