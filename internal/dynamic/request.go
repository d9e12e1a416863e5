package dynamic

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
)

type request struct {
	method    domain.ApiType
	endpoint  string
	template  string
	variables string
}

func endpointRequest(e *domain.EndpointConfig) request {
	return request{
		method:    e.Method,
		endpoint:  e.Endpoint,
		template:  e.QueryTemplate,
		variables: e.VariablesTemplate,
	}
}

// buildURL renders req with vars. GraphQL values are JSON escaped and sent as
// query parameters. REST values are path escaped before the first '?' and query
// escaped after it, then appended to the endpoint.
func (c *Catalog) buildURL(req request, vars map[string]string) string {
	endpoint := c.resolveEndpoint(req.endpoint)

	switch req.method {
	case domain.ApiGraphQL:
		q := url.Values{}
		q.Set("query", Substitute(req.template, vars, jsonEscape))
		if req.variables != "" {
			q.Set("variables", Substitute(req.variables, vars, jsonEscape))
		}
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		return endpoint + sep + q.Encode()
	case domain.ApiREST:
		return endpoint + substituteREST(req.template, vars)
	}
	return endpoint
}

// resolveEndpoint makes a relative endpoint absolute against the API base,
// then the base host
func (c *Catalog) resolveEndpoint(ep string) string {
	base := c.cfg.Hosts.APIBase
	if base == "" {
		base = c.cfg.Hosts.BaseHost
	}
	if ep == "" {
		return base
	}
	if strings.HasPrefix(ep, "http://") || strings.HasPrefix(ep, "https://") {
		return ep
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(ep, "/")
}

// fetch returns a nil body for any failure except cancellation
func (c *Catalog) fetch(ctx context.Context, req request, vars map[string]string) ([]byte, error) {
	target := c.buildURL(req, vars)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Msg("rate limiter refused request")
			return nil, nil
		}
	}

	resp, err := httpclient.Get(ctx, c.client, target, c.headers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "request cancelled")
		}
		c.log.Error().Err(err).Str("url", target).Msg("request failed")
		return nil, nil
	}
	if !resp.OK() {
		c.log.Error().Int("status", resp.StatusCode).Str("url", target).Msg("unexpected status code")
		return nil, nil
	}
	return resp.Body, nil
}

func requestHeaders(cfg *domain.DynamicProviderConfig) map[string]string {
	h := map[string]string{}
	if cfg.Hosts.UserAgent != "" {
		h["User-Agent"] = cfg.Hosts.UserAgent
	}
	if cfg.Hosts.Referer != "" {
		h["Referer"] = cfg.Hosts.Referer
	}
	for k, v := range cfg.Hosts.CustomHeaders {
		h[k] = v
	}

	if a := cfg.Auth; a != nil {
		for k, v := range a.Headers {
			h[k] = v
		}
		if len(a.Cookies) > 0 {
			names := make([]string, 0, len(a.Cookies))
			for k := range a.Cookies {
				names = append(names, k)
			}
			sort.Strings(names)
			parts := make([]string, 0, len(names))
			for _, k := range names {
				parts = append(parts, k+"="+a.Cookies[k])
			}
			h["Cookie"] = strings.Join(parts, "; ")
		}
		if a.BearerToken != "" {
			h["Authorization"] = "Bearer " + a.BearerToken
		}
	}
	return h
}
