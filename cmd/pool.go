package main

import (
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// git commit used for this build; supplied at compile time
var gitCommit string

type poolVersion struct {
	BuildVersion string `json:"build,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
	GitCommit    string `json:"git_commit,omitempty"`
}

type poolTranslations struct {
	bundle *i18n.Bundle
}

type poolMaps struct {
	definedFilters map[string]poolConfigFilter
}

type poolContext struct {
	randomSource *rand.Rand
	config       *poolConfig
	translations poolTranslations
	version      poolVersion
	metadata     metadataQuerier
	storage      annotationQuerier
	facets       *facetCache
	maps         poolMaps
}

func (p *poolContext) initVersion() {
	buildVersion := "unknown"
	files, _ := filepath.Glob("buildtag.*")
	if len(files) == 1 {
		buildVersion = strings.Replace(files[0], "buildtag.", "", 1)
	}

	p.version = poolVersion{
		BuildVersion: buildVersion,
		GoVersion:    fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		GitCommit:    gitCommit,
	}

	log.Printf("[POOL] version.BuildVersion      = [%s]", p.version.BuildVersion)
	log.Printf("[POOL] version.GoVersion         = [%s]", p.version.GoVersion)
	log.Printf("[POOL] version.GitCommit         = [%s]", p.version.GitCommit)
}

func backendHTTPClient(connTimeout string, readTimeout string) *http.Client {
	conn := integerWithMinimum(connTimeout, 5)
	read := integerWithMinimum(readTimeout, 5)

	return &http.Client{
		Timeout: time.Duration(read) * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   time.Duration(conn) * time.Second,
				KeepAlive: 60 * time.Second,
			}).DialContext,
			MaxIdleConns:        100, // we are hitting one host per client, so
			MaxIdleConnsPerHost: 100, // these two values can be the same
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (p *poolContext) initClients() {
	p.metadata = &metadataClient{
		url:     p.config.Metadata.Host,
		client:  backendHTTPClient(p.config.Metadata.ConnTimeout, p.config.Metadata.ReadTimeout),
		verbose: p.config.Metadata.Verbose,
	}

	p.storage = &storageClient{
		url:    p.config.Storage.Host,
		client: backendHTTPClient(p.config.Storage.ConnTimeout, p.config.Storage.ReadTimeout),
	}

	log.Printf("[POOL] metadata.url              = [%s]", p.config.Metadata.Host)
	log.Printf("[POOL] storage.url               = [%s]", p.config.Storage.Host)
}

func (p *poolContext) initMaps() {
	p.maps.definedFilters = make(map[string]poolConfigFilter)

	for _, filter := range p.config.Filters {
		p.maps.definedFilters[filter.ID] = filter
	}
}

func (p *poolContext) initTranslations() {
	defaultLang := language.English

	bundle := i18n.NewBundle(defaultLang)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	toml, _ := filepath.Glob("i18n/*.toml")
	for _, f := range toml {
		bundle.MustLoadMessageFile(f)
	}

	p.translations = poolTranslations{
		bundle: bundle,
	}
}

func (p *poolContext) validateConfig() {
	// ensure the existence and validity of required values, filter
	// definitions, and translation ids

	invalid := false

	var messageIDs stringValidator
	var miscValues stringValidator

	miscValues.requireValue(p.config.Service.Port, "service port")
	miscValues.requireValue(p.config.Metadata.Host, "metadata host")
	miscValues.requireValue(p.config.Storage.Host, "storage host")
	miscValues.requireValue(p.config.Scopes.Public, "public access scope")

	messageIDs.requireValue(p.config.Identity.NameXID, "identity name xid")
	messageIDs.requireValue(p.config.Identity.DescXID, "identity description xid")

	if len(p.config.Storage.AnnotationFields) == 0 {
		log.Printf("[VALIDATE] storage annotation fields list is empty")
		invalid = true
	}

	if len(p.maps.definedFilters) != len(p.config.Filters) {
		log.Printf("[VALIDATE] filter list contains duplicate id(s)")
		invalid = true
	}

	for i, filter := range p.config.Filters {
		miscValues.requireValue(filter.ID, fmt.Sprintf("filter %d id", i))
		messageIDs.requireValue(filter.XID, fmt.Sprintf("filter %d xid", i))
		miscValues.requireValue(filter.Node, fmt.Sprintf("filter %d node", i))
		miscValues.requireValue(filter.Field, fmt.Sprintf("filter %d field", i))

		node, ok := nodeCatalog[filter.Node]
		if ok == false {
			log.Printf("[VALIDATE] filter [%s]: node not in catalog: [%s]", filter.ID, filter.Node)
			invalid = true
			continue
		}

		if _, ok := node.fieldKind(filter.Field); ok == false {
			log.Printf("[VALIDATE] filter [%s]: field not on node [%s]: [%s]", filter.ID, filter.Node, filter.Field)
			invalid = true
		}

		if filter.Dynamic == false && len(filter.Facets) == 0 {
			log.Printf("[VALIDATE] filter [%s]: static filter has no configured facets", filter.ID)
			invalid = true
		}
	}

	// validate the field name casing transform round-trips for the catalog

	for name, node := range nodeCatalog {
		for _, field := range node.fields {
			if backendFieldName(callerFieldName(field.name)) != field.name {
				log.Printf("[VALIDATE] node [%s]: field name does not round-trip: [%s]", name, field.name)
				invalid = true
			}
		}
	}

	// validate xids can actually be translated

	langs := []string{}
	tags := p.translations.bundle.LanguageTags()

	for _, tag := range tags {
		lang := tag.String()
		langs = append(langs, lang)
		localizer := i18n.NewLocalizer(p.translations.bundle, lang)
		for _, id := range messageIDs.Values() {
			if _, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: id}); err != nil {
				log.Printf("[VALIDATE] [%s] missing translation for message ID: [%s] (%s)", lang, id, err.Error())
				invalid = true
			}
		}
	}

	// check if anything went wrong anywhere

	if invalid || messageIDs.Invalid() || miscValues.Invalid() {
		log.Printf("[VALIDATE] exiting due to missing/incorrect field value(s) above")
		os.Exit(1)
	}

	log.Printf("[POOL] supported languages       = [%s]", strings.Join(langs, ", "))
}

func initializePool(cfg *poolConfig) *poolContext {
	p := poolContext{}

	p.config = cfg
	p.randomSource = rand.New(rand.NewSource(time.Now().UnixNano()))

	if p.config.Search.DefaultLimit <= 0 {
		p.config.Search.DefaultLimit = 10
	}

	p.initTranslations()
	p.initVersion()
	p.initClients()
	p.initMaps()

	p.validateConfig()

	p.facets = newFacetCache(&p, integerWithMinimum(cfg.Cache.RefreshInterval, 60))

	return &p
}
