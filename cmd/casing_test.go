package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackendFieldName(t *testing.T) {
	assert.Equal(t, "dataset_id", backendFieldName("datasetId"))
	assert.Equal(t, "created_datetime", backendFieldName("createdDatetime"))
	assert.Equal(t, "additional_types", backendFieldName("additionalTypes"))
	assert.Equal(t, "title", backendFieldName("title"))
}

func TestCallerFieldName(t *testing.T) {
	assert.Equal(t, "datasetId", callerFieldName("dataset_id"))
	assert.Equal(t, "createdDatetime", callerFieldName("created_datetime"))
	assert.Equal(t, "title", callerFieldName("title"))
}

func TestFieldNameRoundTripsCatalog(t *testing.T) {
	for name, node := range nodeCatalog {
		for _, field := range node.fields {
			assert.Equal(t, field.name, backendFieldName(callerFieldName(field.name)), "node [%s] field [%s]", name, field.name)
		}
	}
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Rat", capitalize("rat"))
	assert.Equal(t, "Rat", capitalize("Rat"))
	assert.Equal(t, "X", capitalize("x"))
	assert.Equal(t, "", capitalize(""))
}
