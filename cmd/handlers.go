package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"golang.org/x/sync/errgroup"
)

// scopeClaims carries the caller's authorized access scopes.  authorization
// decisions happen upstream; the engine trusts this list.
type scopeClaims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.StandardClaims
}

func (p *poolContext) searchHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	cl.logRequest()

	var req PortalSearchRequest
	if err := c.BindJSON(&req); err != nil {
		resp := errorResponse(fmt.Errorf("%w: %s", errInvalidRequest, err.Error()))
		cl.logResponse(resp)
		c.String(resp.status, resp.err.Error())
		return
	}

	resp := s.handleSearchRequest(req)
	cl.logResponse(resp)

	if resp.err != nil {
		c.String(resp.status, resp.err.Error())
		return
	}

	c.JSON(resp.status, resp.data)
}

func (p *poolContext) queryHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	cl.logRequest()

	var req PortalQueryRequest
	if err := c.BindJSON(&req); err != nil {
		resp := errorResponse(fmt.Errorf("%w: %s", errInvalidRequest, err.Error()))
		cl.logResponse(resp)
		c.String(resp.status, resp.err.Error())
		return
	}

	resp := s.handleQueryRequest(req)
	cl.logResponse(resp)

	if resp.err != nil {
		c.String(resp.status, resp.err.Error())
		return
	}

	c.JSON(resp.status, resp.data)
}

func (p *poolContext) filtersHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	cl.logRequest()
	resp := s.handleFiltersRequest(false)
	cl.logResponse(resp)

	if resp.err != nil {
		c.String(resp.status, resp.err.Error())
		return
	}

	c.JSON(resp.status, resp.data)
}

func (p *poolContext) filtersTableHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	cl.logRequest()
	resp := s.handleFiltersRequest(true)
	cl.logResponse(resp)

	if resp.err != nil {
		c.String(resp.status, resp.err.Error())
		return
	}

	c.JSON(resp.status, resp.data)
}

func (p *poolContext) ignoreHandler(c *gin.Context) {
}

func (p *poolContext) versionHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	c.JSON(http.StatusOK, p.version)
}

func (p *poolContext) identifyHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	c.JSON(http.StatusOK, cl.localizedIdentity())
}

func (p *poolContext) healthCheckHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	type hcResp struct {
		Healthy bool   `json:"healthy"`
		Message string `json:"message,omitempty"`
	}

	public := []string{p.config.Scopes.Public}

	var metaErr, storageErr error

	var g errgroup.Group

	g.Go(func() error {
		query, err := compileQuery(queryItem{node: "experiment", access: public}.asCount())
		if err != nil {
			metaErr = err
			return nil
		}

		_, metaErr = p.metadata.runQuery(query, public)
		return nil
	})

	g.Go(func() error {
		_, storageErr = p.storage.queryAnnotations([]string{firstElementOf(p.config.Storage.AnnotationFields)}, "%ping%")
		return nil
	})

	g.Wait()

	hcMap := make(map[string]hcResp)
	hcStatus := http.StatusOK

	hcMap["metadata"] = hcResp{Healthy: true}
	if metaErr != nil {
		hcMap["metadata"] = hcResp{Healthy: false, Message: metaErr.Error()}
		hcStatus = http.StatusInternalServerError
	}

	hcMap["storage"] = hcResp{Healthy: true}
	if storageErr != nil && errors.Is(storageErr, errNotFound) == false {
		hcMap["storage"] = hcResp{Healthy: false, Message: storageErr.Error()}
		hcStatus = http.StatusInternalServerError
	}

	c.JSON(hcStatus, hcMap)
}

func getBearerToken(authorization string) (string, error) {
	components := strings.Split(strings.Join(strings.Fields(authorization), " "), " ")

	// must have two components, the first of which is "Bearer", and the second a non-empty token
	if len(components) != 2 || components[0] != "Bearer" || components[1] == "" {
		return "", fmt.Errorf("invalid Authorization header: [%s]", authorization)
	}

	token := components[1]

	if token == "undefined" {
		return "", errors.New("bearer token is undefined")
	}

	return token, nil
}

// authenticateHandler decodes an optional bearer token into scope claims.
// anonymous callers proceed with the public scope only; a malformed or
// forged token is rejected.
func (p *poolContext) authenticateHandler(c *gin.Context) {
	authorization := c.GetHeader("Authorization")

	if authorization == "" {
		return
	}

	token, err := getBearerToken(authorization)
	if err != nil {
		log.Printf("authentication failed: [%s]", err.Error())
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims := scopeClaims{}

	_, err = jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); ok == false {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(p.config.Service.JWTKey), nil
	})

	if err != nil {
		log.Printf("JWT signature is invalid: %s", err.Error())
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	c.Set("token", token)
	c.Set("claims", &claims)
}
