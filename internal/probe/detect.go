package probe

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/varoOP/shinkrosrc/internal/domain"
)

var mountNodeIDs = map[string]bool{
	"root":     true,
	"app":      true,
	"__next":   true,
	"__nuxt":   true,
	"svelte":   true,
	"app-root": true,
}

var cloudflareMarkers = []string{
	"cf-browser-verification",
	"challenge-platform",
	"cf_chl_opt",
	"<title>just a moment...</title>",
	"attention required! | cloudflare",
}

func detectCloudflare(scan *pageScan) bool {
	if strings.EqualFold(scan.server, "cloudflare") {
		return true
	}
	if scan.headers != nil && (scan.headers.Get("CF-RAY") != "" || scan.headers.Get("CF-Mitigated") != "") {
		return true
	}
	body := strings.ToLower(scan.body)
	for _, m := range cloudflareMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// framework markers, most specific first
var frameworkMarkers = []struct {
	name    string
	markers []string
}{
	{"Next.js", []string{"__next_data__", "/_next/static/"}},
	{"Nuxt", []string{"window.__nuxt__", "/_nuxt/"}},
	{"Angular", []string{"ng-version=", "ng-app"}},
	{"SvelteKit", []string{"__sveltekit", "/_app/immutable/"}},
	{"Vue", []string{"data-v-app", "vue.runtime", "data-server-rendered"}},
	{"React", []string{"data-reactroot", "react-dom", "_reactlistening"}},
}

func detectFramework(scan *pageScan) string {
	body := strings.ToLower(scan.body)
	for _, f := range frameworkMarkers {
		for _, m := range f.markers {
			if strings.Contains(body, m) {
				return f.name
			}
		}
	}
	return ""
}

// minimum visible text for a page to count as server rendered
const renderedTextThreshold = 300

func detectArchitecture(scan *pageScan, framework string) domain.SiteArchitecture {
	if scan.status == 0 || scan.body == "" {
		return domain.ArchitectureUnknown
	}

	rendered := scan.textLength >= renderedTextThreshold
	switch {
	case scan.mountNode && !rendered:
		return domain.ArchitectureSPA
	case framework != "" && rendered:
		return domain.ArchitectureHybrid
	case framework != "":
		return domain.ArchitectureSPA
	case rendered:
		return domain.ArchitectureStatic
	case len(scan.scriptURLs) > 3:
		return domain.ArchitectureSPA
	}
	return domain.ArchitectureUnknown
}

var (
	animeKeywords = regexp.MustCompile(`(?i)\b(anime|episodes?|watch|dubbed|subbed|dub|sub|ova|seasons?)\b`)
	mangaKeywords = regexp.MustCompile(`(?i)\b(manga|manhwa|manhua|chapters?|webtoons?|read|scans?|comics?)\b`)
)

// detectCategory scores keyword occurrences. A site counts as both when the
// weaker category reaches half the stronger one.
func detectCategory(text string) domain.ContentCategory {
	a := len(animeKeywords.FindAllStringIndex(text, -1))
	m := len(mangaKeywords.FindAllStringIndex(text, -1))

	switch {
	case a == 0 && m == 0:
		return domain.CategoryUnknown
	case a >= m && m*2 >= a && m > 0:
		return domain.CategoryBoth
	case m > a && a*2 >= m && a > 0:
		return domain.CategoryBoth
	case a > m:
		return domain.CategoryAnime
	}
	return domain.CategoryManga
}

var (
	quotedURL = regexp.MustCompile("[\"'`]((?:https?:)?//[^\"'`\\s<>]+|/[^\"'`\\s<>]*)[\"'`]")
	apiShape  = regexp.MustCompile(`(?i)(/api(/|$|\?)|/graphql|/gql(/|$|\?)|/v\d+/)`)
)

// findAPIEndpoints returns API-shaped URLs quoted anywhere in the page, made absolute
func findAPIEndpoints(base, body string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	for _, m := range quotedURL.FindAllStringSubmatch(body, -1) {
		raw := m[1]
		if !apiShape.MatchString(raw) || strings.HasSuffix(raw, ".js") || strings.HasSuffix(raw, ".css") {
			continue
		}
		ref, err := url.Parse(raw)
		if err != nil {
			continue
		}
		abs := baseURL.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	}
	sort.Strings(out)
	return out
}

func detectGraphQL(body string, endpoints []string) bool {
	for _, e := range endpoints {
		if strings.Contains(strings.ToLower(e), "graphql") {
			return true
		}
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "graphql") || strings.Contains(lower, "__typename") || strings.Contains(lower, "apollo")
}
