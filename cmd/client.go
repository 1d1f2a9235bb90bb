package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

type clientOpts struct {
	debug   bool // controls whether debug info is added to results
	verbose bool // controls whether verbose backend requests/responses are logged
}

type clientContext struct {
	reqID       string          // internally generated
	start       time.Time       // internally set
	opts        clientOpts      // options set by client
	claims      *scopeClaims    // information about this user, if authenticated
	pool        *poolContext    //
	localizer   *i18n.Localizer // per-request localization
	ginCtx      *gin.Context    // gin context
	acceptLang  string          // first language requested by client
	contentLang string          // actual language we are responding with
}

func boolOptionWithFallback(opt string, fallback bool) bool {
	var err error
	var val bool

	if val, err = strconv.ParseBool(opt); err != nil {
		val = fallback
	}

	return val
}

func (c *clientContext) init(p *poolContext, ctx *gin.Context) {
	c.pool = p
	c.ginCtx = ctx

	c.start = time.Now()
	c.reqID = fmt.Sprintf("%08x", p.randomSource.Uint32())

	if ctx == nil {
		c.localizer = i18n.NewLocalizer(p.translations.bundle, "en")
		c.acceptLang = "en"
		return
	}

	// get claims, if any
	if val, ok := ctx.Get("claims"); ok == true {
		c.claims = val.(*scopeClaims)
	}

	// determine client preferred language
	c.acceptLang = strings.Split(ctx.GetHeader("Accept-Language"), ",")[0]
	if c.acceptLang == "" {
		c.acceptLang = "en"
	}

	c.localizer = i18n.NewLocalizer(p.translations.bundle, c.acceptLang)

	// get the response language by checking the tag value returned for a known message ID
	_, tag, _ := c.localizer.LocalizeWithTag(&i18n.LocalizeConfig{MessageID: p.config.Identity.NameXID})
	c.contentLang = tag.String()

	ctx.Header("Content-Language", c.contentLang)

	c.opts.debug = boolOptionWithFallback(ctx.Query("debug"), false)
	c.opts.verbose = boolOptionWithFallback(ctx.Query("verbose"), false)
}

// accessScopes returns the caller's full authorized scope list: the public
// scope plus any private scopes carried in the claims.
func (c *clientContext) accessScopes() []string {
	scopes := []string{c.pool.config.Scopes.Public}

	if c.claims != nil {
		scopes = append(scopes, c.claims.Scopes...)
	}

	return uniqueStrings(scopes)
}

// privateScopes returns the caller's scope list minus the public scope.
func (c *clientContext) privateScopes() []string {
	var private []string

	if c.claims == nil {
		return private
	}

	for _, scope := range c.claims.Scopes {
		if scope != c.pool.config.Scopes.Public {
			private = append(private, scope)
		}
	}

	return uniqueStrings(private)
}

func (c *clientContext) isAuthenticated() bool {
	return c.claims != nil
}

func (c *clientContext) logRequest() {
	c.log("------------------------------[ NEW REQUEST ]------------------------------")

	query := ""
	if c.ginCtx.Request.URL.RawQuery != "" {
		query = fmt.Sprintf("?%s", c.ginCtx.Request.URL.RawQuery)
	}

	claimsStr := ""
	if c.claims != nil {
		claimsStr = fmt.Sprintf("  [%s; %d scope(s)]", c.claims.Subject, len(c.claims.Scopes))
	}

	c.log("[REQUEST] %s %s%s  (%s) => (%s)%s", c.ginCtx.Request.Method, c.ginCtx.Request.URL.Path, query, c.acceptLang, c.contentLang, claimsStr)
}

func (c *clientContext) logResponse(resp searchResponse) {
	msg := fmt.Sprintf("[RESPONSE] status: %d", resp.status)

	if resp.err != nil {
		msg = msg + fmt.Sprintf(", error: %s", resp.err.Error())
	}

	c.log("%s", msg)
}

func (c *clientContext) printf(prefix, format string, args ...interface{}) {
	str := fmt.Sprintf(format, args...)

	if prefix != "" {
		str = strings.Join([]string{prefix, str}, " ")
	}

	log.Printf("[%s] %s", c.reqID, str)
}

func (c *clientContext) log(format string, args ...interface{}) {
	c.printf("", format, args...)
}

func (c *clientContext) err(format string, args ...interface{}) {
	c.printf("ERROR:", format, args...)
}

func (c *clientContext) localize(id string) string {
	return c.localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: id})
}

func (c *clientContext) localizedIdentity() PortalIdentity {
	return PortalIdentity{
		Name:        c.localize(c.pool.config.Identity.NameXID),
		Description: c.localize(c.pool.config.Identity.DescXID),
	}
}
