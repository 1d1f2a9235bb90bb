package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// storage service client.  the engine only uses its metadata-annotation query
// endpoint; browse/streaming/download endpoints are outside this service.

type annotationQuerier interface {
	queryAnnotations(fieldNames []string, likePattern string) ([]annotationRow, error)
}

type annotationRow struct {
	CollectionPath  string `json:"collection_path"`
	AnnotationValue string `json:"annotation_value"`
}

type storageClient struct {
	url    string
	client *http.Client
}

type annotationRequestJSON struct {
	Fields []string `json:"fields"`
	Like   string   `json:"like"`
}

type annotationResponseJSON struct {
	Rows []annotationRow `json:"rows"`
}

func (s *storageClient) queryAnnotations(fieldNames []string, likePattern string) ([]annotationRow, error) {
	jsonBytes, jsonErr := json.Marshal(annotationRequestJSON{Fields: fieldNames, Like: likePattern})
	if jsonErr != nil {
		return nil, fmt.Errorf("failed to marshal annotation request: %s", jsonErr.Error())
	}

	req, reqErr := http.NewRequest("POST", s.url, bytes.NewBuffer(jsonBytes))
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create annotation request: %s", reqErr.Error())
	}

	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, resErr := s.client.Do(req)
	elapsedMS := int64(time.Since(start) / time.Millisecond)

	// external service failure logging

	if resErr != nil {
		status := http.StatusBadRequest
		errMsg := resErr.Error()
		if strings.Contains(errMsg, "Timeout") {
			status = http.StatusRequestTimeout
			errMsg = fmt.Sprintf("%s timed out", s.url)
		} else if strings.Contains(errMsg, "connection refused") {
			status = http.StatusServiceUnavailable
			errMsg = fmt.Sprintf("%s refused connection", s.url)
		}

		log.Printf("ERROR: Failed response from POST %s - %d:%s. Elapsed Time: %d (ms)", s.url, status, errMsg, elapsedMS)
		return nil, fmt.Errorf("%w: %s", errUpstreamUnavailable, errMsg)
	}

	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}

	if res.StatusCode != http.StatusOK {
		log.Printf("ERROR: Failed response from POST %s - %d. Elapsed Time: %d (ms)", s.url, res.StatusCode, elapsedMS)
		return nil, fmt.Errorf("%w: status %d", errUpstreamUnavailable, res.StatusCode)
	}

	var annotationRes annotationResponseJSON

	decoder := json.NewDecoder(res.Body)

	if decErr := decoder.Decode(&annotationRes); decErr != nil {
		log.Printf("ERROR: Failed response from POST %s - %d:%s. Elapsed Time: %d (ms)", s.url, http.StatusInternalServerError, decErr.Error(), elapsedMS)
		return nil, fmt.Errorf("%w: %s", errUpstreamUnavailable, "failed to decode annotation response")
	}

	log.Printf("Successful annotation response from POST %s. Elapsed Time: %d (ms)", s.url, elapsedMS)

	return annotationRes.Rows, nil
}

// datasetIDFromPath extracts the owning dataset id from an annotation row's
// collection path, e.g. "/zone/datasets/dataset-46-version-2/primary/a.csv".
func datasetIDFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	for i, part := range parts {
		if part == "datasets" && i+1 < len(parts) {
			return parts[i+1]
		}
	}

	return ""
}
