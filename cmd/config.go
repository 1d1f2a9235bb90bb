package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"sort"
	"strings"
)

type poolConfigService struct {
	Port   string `json:"port,omitempty"`
	JWTKey string `json:"jwt_key,omitempty"`
}

type poolConfigIdentity struct {
	NameXID string `json:"name_xid,omitempty"` // translation ID
	DescXID string `json:"desc_xid,omitempty"` // translation ID
}

type poolConfigMetadata struct {
	Host        string `json:"host,omitempty"`
	ConnTimeout string `json:"conn_timeout,omitempty"`
	ReadTimeout string `json:"read_timeout,omitempty"`
	Verbose     bool   `json:"verbose,omitempty"` // log full query text
}

type poolConfigStorage struct {
	Host             string   `json:"host,omitempty"`
	ConnTimeout      string   `json:"conn_timeout,omitempty"`
	ReadTimeout      string   `json:"read_timeout,omitempty"`
	AnnotationFields []string `json:"annotation_fields,omitempty"`
}

type poolConfigScopes struct {
	Public string `json:"public,omitempty"` // the access scope denoting public records
}

type poolConfigCache struct {
	RefreshInterval string `json:"refresh_interval,omitempty"` // seconds
}

type poolConfigSearch struct {
	DefaultLimit int `json:"default_limit,omitempty"`
}

type poolConfigFacetValue struct {
	Name   string   `json:"name,omitempty"`   // display name
	Values []string `json:"values,omitempty"` // literal backend value(s)
}

type poolConfigFilter struct {
	ID      string                 `json:"id,omitempty"`
	XID     string                 `json:"xid,omitempty"` // translation ID for the title
	Node    string                 `json:"node,omitempty"`
	Field   string                 `json:"field,omitempty"` // backend field name
	Dynamic bool                   `json:"dynamic,omitempty"`
	Facets  []poolConfigFacetValue `json:"facets,omitempty"` // static filters only
}

type poolConfig struct {
	Identity poolConfigIdentity `json:"identity,omitempty"`
	Service  poolConfigService  `json:"service,omitempty"`
	Metadata poolConfigMetadata `json:"metadata,omitempty"`
	Storage  poolConfigStorage  `json:"storage,omitempty"`
	Scopes   poolConfigScopes   `json:"scopes,omitempty"`
	Cache    poolConfigCache    `json:"cache,omitempty"`
	Search   poolConfigSearch   `json:"search,omitempty"`
	Filters  []poolConfigFilter `json:"filters,omitempty"`
}

func getSortedJSONEnvVars() []string {
	var keys []string

	for _, keyval := range os.Environ() {
		key := strings.Split(keyval, "=")[0]
		if strings.HasPrefix(key, "METAPOOL_WS_JSON_") {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys
}

func loadConfig() *poolConfig {
	cfg := poolConfig{}

	// json configs

	envs := getSortedJSONEnvVars()

	valid := true

	for _, env := range envs {
		log.Printf("[CONFIG] loading %s ...", env)
		if val := os.Getenv(env); val != "" {
			dec := json.NewDecoder(bytes.NewReader([]byte(val)))
			dec.DisallowUnknownFields()

			if err := dec.Decode(&cfg); err != nil {
				log.Printf("error decoding %s: %s", env, err.Error())
				valid = false
			}
		}
	}

	if valid == false {
		log.Printf("exiting due to json decode error(s) above")
		os.Exit(1)
	}

	// optional convenience overrides to simplify deployment config
	if host := os.Getenv("METAPOOL_WS_METADATA_HOST"); host != "" {
		cfg.Metadata.Host = host
	}

	if host := os.Getenv("METAPOOL_WS_STORAGE_HOST"); host != "" {
		cfg.Storage.Host = host
	}

	bytes, err := json.Marshal(cfg)
	if err != nil {
		log.Printf("error encoding pool config json: %s", err.Error())
		os.Exit(1)
	}

	log.Printf("[CONFIG] composite json:")
	log.Printf("\n%s", string(bytes))

	return &cfg
}
