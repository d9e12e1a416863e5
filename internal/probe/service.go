// Package probe fingerprints a target site into a domain.SiteProfile.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
)

const (
	maxLinks         = 200
	maxInlineScripts = 20
	maxInlineScript  = 64 << 10
)

type Service interface {
	Probe(ctx context.Context, target string) *domain.SiteProfile
}

type service struct {
	log       zerolog.Logger
	client    *retryablehttp.Client
	timeout   time.Duration
	userAgent string
	now       func() time.Time
}

func NewService(log zerolog.Logger, client *retryablehttp.Client, timeout time.Duration, userAgent string) Service {
	if userAgent == "" {
		userAgent = httpclient.DefaultUserAgent
	}
	return &service{
		log:       log.With().Str("module", "probe").Logger(),
		client:    client,
		timeout:   timeout,
		userAgent: userAgent,
		now:       time.Now,
	}
}

// NormalizeURL adds a missing https scheme and rejects URLs without a host
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "invalid url")
	}
	if u.Host == "" {
		return "", errors.Errorf("url %q has no host", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// pageScan collects what the collector callbacks see on the base page
type pageScan struct {
	status      int
	server      string
	headers     http.Header
	body        string
	title       string
	description string
	textLength  int
	mountNode   bool
	noscriptJS  bool
	links       []string
	scriptURLs  []string
	inline      []string
	assetHosts  map[string]bool
}

// Probe never fails. Every sub-probe failure is recorded in the profile's
// Errors and the profile is returned with whatever was collected before the
// deadline.
func (s *service) Probe(ctx context.Context, target string) *domain.SiteProfile {
	profile := &domain.SiteProfile{
		BaseURL:         target,
		Architecture:    domain.ArchitectureUnknown,
		Category:        domain.CategoryUnknown,
		RequiredHeaders: map[string]string{},
		ProbedAt:        s.now().UTC(),
	}

	normalized, err := NormalizeURL(target)
	if err != nil {
		profile.Errors = append(profile.Errors, err.Error())
		return profile
	}
	u, _ := url.Parse(normalized)
	profile.BaseURL = u.Scheme + "://" + u.Host

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.log.Info().Str("url", normalized).Msg("Probing site..")

	scan, err := s.scanPage(ctx, normalized, u.Hostname())
	if err != nil {
		profile.Errors = append(profile.Errors, fmt.Sprintf("base page: %v", err))
	}

	if ctx.Err() == nil {
		robots, sitemaps, err := s.fetchRobots(ctx, profile.BaseURL)
		if err != nil {
			profile.Errors = append(profile.Errors, fmt.Sprintf("robots.txt: %v", err))
		}
		profile.RobotsTxt = robots
		profile.Sitemaps = sitemaps
	}

	if ctx.Err() != nil {
		profile.Errors = append(profile.Errors, "probe deadline exceeded, profile is partial")
	}

	if scan != nil {
		s.fill(profile, scan)
	}

	s.log.Info().
		Str("architecture", string(profile.Architecture)).
		Str("category", string(profile.Category)).
		Bool("graphql", profile.HasGraphQL).
		Bool("cloudflare", profile.CloudflareProtected).
		Int("api_endpoints", len(profile.APIEndpoints)).
		Int("errors", len(profile.Errors)).
		Msg("Probe complete")

	return profile
}

func (s *service) scanPage(ctx context.Context, target, host string) (*pageScan, error) {
	scan := &pageScan{assetHosts: map[string]bool{}}
	seenLinks := map[string]bool{}

	cc := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.ParseHTTPErrorResponse(),
		colly.AllowURLRevisit(),
	)
	cc.WithTransport(&contextTransport{ctx: ctx, next: s.client.StandardClient().Transport})
	if s.timeout > 0 {
		cc.SetRequestTimeout(s.timeout)
	}

	cc.OnRequest(func(r *colly.Request) {
		s.log.Debug().Str("url", r.URL.String()).Msg("visiting")
	})

	cc.OnResponse(func(r *colly.Response) {
		scan.status = r.StatusCode
		if r.Headers != nil {
			scan.headers = *r.Headers
			scan.server = r.Headers.Get("Server")
		}
		scan.body = string(r.Body)
	})

	cc.OnHTML("title", func(e *colly.HTMLElement) {
		if scan.title == "" {
			scan.title = strings.TrimSpace(e.Text)
		}
	})

	cc.OnHTML(`meta[name="description"], meta[property="og:description"]`, func(e *colly.HTMLElement) {
		if scan.description == "" {
			scan.description = strings.TrimSpace(e.Attr("content"))
		}
	})

	cc.OnHTML("body", func(e *colly.HTMLElement) {
		text := e.DOM.Clone()
		text.Find("script, style, noscript").Remove()
		scan.textLength = len(strings.Join(strings.Fields(text.Text()), " "))

		e.DOM.Find("[id]").Each(func(_ int, sel *goquery.Selection) {
			if id, _ := sel.Attr("id"); mountNodeIDs[id] && strings.TrimSpace(sel.Text()) == "" {
				scan.mountNode = true
			}
		})
	})

	cc.OnHTML("noscript", func(e *colly.HTMLElement) {
		if strings.Contains(strings.ToLower(e.Text), "javascript") {
			scan.noscriptJS = true
		}
	})

	cc.OnHTML("script", func(e *colly.HTMLElement) {
		if src := e.Attr("src"); src != "" {
			abs := e.Request.AbsoluteURL(src)
			scan.scriptURLs = append(scan.scriptURLs, abs)
			addAssetHost(scan.assetHosts, abs, host)
			return
		}
		if len(scan.inline) < maxInlineScripts && strings.TrimSpace(e.Text) != "" {
			scan.inline = append(scan.inline, truncate(e.Text, maxInlineScript))
		}
	})

	cc.OnHTML("img[src], source[src], link[href], video[poster]", func(e *colly.HTMLElement) {
		for _, attr := range []string{"src", "href", "poster"} {
			if v := e.Attr(attr); v != "" {
				addAssetHost(scan.assetHosts, e.Request.AbsoluteURL(v), host)
			}
		}
	})

	cc.OnHTML("a[href]", func(e *colly.HTMLElement) {
		abs := e.Request.AbsoluteURL(e.Attr("href"))
		if abs == "" || seenLinks[abs] || len(scan.links) >= maxLinks {
			return
		}
		if u, err := url.Parse(abs); err == nil && sameSite(u.Hostname(), host) {
			seenLinks[abs] = true
			scan.links = append(scan.links, abs)
		}
	})

	var visitErr error
	cc.OnError(func(r *colly.Response, err error) {
		visitErr = err
		if r != nil && r.StatusCode != 0 {
			scan.status = r.StatusCode
			scan.body = string(r.Body)
			if r.Headers != nil {
				scan.headers = *r.Headers
				scan.server = r.Headers.Get("Server")
			}
		}
	})

	if err := cc.Visit(target); err != nil && visitErr == nil {
		visitErr = err
	}

	if visitErr != nil && scan.status == 0 {
		return nil, visitErr
	}
	return scan, visitErr
}

func (s *service) fetchRobots(ctx context.Context, base string) (string, []string, error) {
	resp, err := httpclient.Get(ctx, s.client, base+"/robots.txt", nil)
	if err != nil {
		return "", nil, err
	}
	if !resp.OK() {
		return "", nil, errors.Errorf("unexpected status code %d", resp.StatusCode)
	}

	text := string(resp.Body)
	data, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		return text, nil, errors.Wrap(err, "failed to parse")
	}
	return text, data.Sitemaps, nil
}

func (s *service) fill(p *domain.SiteProfile, scan *pageScan) {
	p.StatusCode = scan.status
	p.ServerHeader = scan.server
	p.Title = scan.title
	p.Description = scan.description
	p.Links = scan.links
	p.ScriptURLs = scan.scriptURLs
	p.InlineScripts = scan.inline

	p.CloudflareProtected = detectCloudflare(scan)
	p.JSFramework = detectFramework(scan)
	p.Architecture = detectArchitecture(scan, p.JSFramework)
	p.RequiresJavaScript = p.Architecture == domain.ArchitectureSPA || scan.noscriptJS
	p.Category = detectCategory(strings.Join([]string{scan.title, scan.description, scan.body}, " "))
	p.APIEndpoints = findAPIEndpoints(p.BaseURL, scan.body)
	p.HasGraphQL = detectGraphQL(scan.body, p.APIEndpoints)

	for h := range scan.assetHosts {
		p.CDNHosts = append(p.CDNHosts, h)
	}
	sort.Strings(p.CDNHosts)

	if len(p.CDNHosts) > 0 || p.CloudflareProtected {
		p.RequiredHeaders["Referer"] = p.BaseURL + "/"
	}
	if p.CloudflareProtected {
		p.RequiredHeaders["User-Agent"] = s.userAgent
	}
}

// contextTransport binds every collector request to the probe's context,
// colly requests carry none of their own
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}

func addAssetHost(hosts map[string]bool, raw, base string) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return
	}
	if h := u.Hostname(); !strings.EqualFold(h, base) {
		hosts[strings.ToLower(h)] = true
	}
}

func sameSite(host, base string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	base = strings.TrimPrefix(strings.ToLower(base), "www.")
	return host == base
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
