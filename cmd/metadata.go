package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// metadata service client.  exposes a single primitive: run one compiled
// query under a set of access scopes.  retry policy lives here or above in
// the deployment, never in the engine.

type metadataQuerier interface {
	runQuery(query string, access []string) (*metaResponse, error)
}

type metadataClient struct {
	url     string
	client  *http.Client
	verbose bool
}

type metadataRequestJSON struct {
	Query  string   `json:"query"`
	Access []string `json:"access,omitempty"`
}

func convertRecords(data map[string]interface{}) (*metaResponse, error) {
	// the backend data block mixes record lists with scalar count fields
	// (e.g. '{ "experiment": [ ... ], "_experiment_count": 23 }'), so it
	// cannot be read directly into arbitrary structs.  read it as
	// map[string]interface{}, split out the scalar keys, then decode the
	// remaining map into record lists.

	res := metaResponse{
		records: make(map[string][]metaRecord),
		counts:  make(map[string]int),
	}

	recordsRaw := make(map[string]interface{})

	for key, val := range data {
		switch v := val.(type) {
		case float64:
			res.counts[key] = int(v)
		case []interface{}:
			recordsRaw[key] = v
		}
	}

	cfg := &mapstructure.DecoderConfig{
		Metadata:   nil,
		Result:     &res.records,
		TagName:    "json",
		ZeroFields: true,
	}

	dec, _ := mapstructure.NewDecoder(cfg)

	if mapDecErr := dec.Decode(recordsRaw); mapDecErr != nil {
		return nil, fmt.Errorf("failed to decode metadata record map: %s", mapDecErr.Error())
	}

	return &res, nil
}

func (m *metadataClient) runQuery(query string, access []string) (*metaResponse, error) {
	jsonBytes, jsonErr := json.Marshal(metadataRequestJSON{Query: query, Access: access})
	if jsonErr != nil {
		return nil, fmt.Errorf("failed to marshal metadata request: %s", jsonErr.Error())
	}

	req, reqErr := http.NewRequest("POST", m.url, bytes.NewBuffer(jsonBytes))
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create metadata request: %s", reqErr.Error())
	}

	req.Header.Set("Content-Type", "application/json")

	if m.verbose == true {
		log.Printf("[META] req: [%s]", string(jsonBytes))
	}

	start := time.Now()
	res, resErr := m.client.Do(req)
	elapsedMS := int64(time.Since(start) / time.Millisecond)

	// external service failure logging (scenario 1)

	if resErr != nil {
		status := http.StatusBadRequest
		errMsg := resErr.Error()
		if strings.Contains(errMsg, "Timeout") {
			status = http.StatusRequestTimeout
			errMsg = fmt.Sprintf("%s timed out", m.url)
		} else if strings.Contains(errMsg, "connection refused") {
			status = http.StatusServiceUnavailable
			errMsg = fmt.Sprintf("%s refused connection", m.url)
		}

		log.Printf("ERROR: Failed response from POST %s - %d:%s. Elapsed Time: %d (ms)", m.url, status, errMsg, elapsedMS)
		return nil, fmt.Errorf("%w: %s", errUpstreamUnavailable, errMsg)
	}

	defer res.Body.Close()

	// the engine maps these to the correct client-facing status

	switch res.StatusCode {
	case http.StatusOK:

	case http.StatusUnauthorized, http.StatusForbidden:
		log.Printf("ERROR: Failed response from POST %s - %d. Elapsed Time: %d (ms)", m.url, res.StatusCode, elapsedMS)
		return nil, fmt.Errorf("%w: status %d", errUnauthorized, res.StatusCode)

	case http.StatusNotFound:
		log.Printf("ERROR: Failed response from POST %s - %d. Elapsed Time: %d (ms)", m.url, res.StatusCode, elapsedMS)
		return nil, errNotFound

	default:
		log.Printf("ERROR: Failed response from POST %s - %d. Elapsed Time: %d (ms)", m.url, res.StatusCode, elapsedMS)
		return nil, fmt.Errorf("%w: status %d", errUpstreamUnavailable, res.StatusCode)
	}

	var envelope metaResponseEnvelope

	decoder := json.NewDecoder(res.Body)

	// external service failure logging (scenario 2)

	if decErr := decoder.Decode(&envelope); decErr != nil {
		log.Printf("ERROR: Failed response from POST %s - %d:%s. Elapsed Time: %d (ms)", m.url, http.StatusInternalServerError, decErr.Error(), elapsedMS)
		return nil, fmt.Errorf("%w: %s", errUpstreamUnavailable, "failed to decode metadata response")
	}

	if len(envelope.Errors) > 0 {
		msg := envelope.Errors[0].Message

		log.Printf("[META] res: error: { msg = %s }", msg)

		if strings.Contains(strings.ToLower(msg), "unauthorized") {
			return nil, fmt.Errorf("%w: %s", errUnauthorized, msg)
		}

		return nil, fmt.Errorf("%w: %s", errUpstreamUnavailable, msg)
	}

	// external service success logging

	log.Printf("Successful metadata response from POST %s. Elapsed Time: %d (ms)", m.url, elapsedMS)

	converted, convErr := convertRecords(envelope.Data)
	if convErr != nil {
		return nil, fmt.Errorf("%w: %s", errUpstreamUnavailable, convErr.Error())
	}

	return converted, nil
}
