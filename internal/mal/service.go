// Package mal is the built-in catalog backed by the MyAnimeList v2 API. It is
// metadata only: children are synthesized from episode and chapter counts and
// media resolution always comes back empty.
package mal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/httpclient"
)

const (
	DefaultBaseURL = "https://api.myanimelist.net/v2"
	Slug           = "mal"

	defaultLimit = 20
	listFields   = "synopsis,num_episodes,num_chapters"
)

type MalResponse struct {
	Data []struct {
		Node    malNode `json:"node"`
		Ranking struct {
			Rank int `json:"rank"`
		} `json:"ranking"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type malNode struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	MainPicture struct {
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"main_picture"`
	Synopsis    string `json:"synopsis"`
	NumEpisodes int    `json:"num_episodes"`
	NumChapters int    `json:"num_chapters"`
}

type clientIDTransport struct {
	Transport http.RoundTripper
	ClientID  string
}

func (c *clientIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if c.Transport == nil {
		c.Transport = http.DefaultTransport
	}
	if c.ClientID != "" {
		req.Header.Set("X-MAL-CLIENT-ID", c.ClientID)
	}
	return c.Transport.RoundTrip(req)
}

type Options struct {
	BaseURL  string
	ClientID string
	Limit    int
	HTTP     httpclient.Options
}

// Catalog serves one content type from MyAnimeList. Item ids are the numeric MAL ids.
type Catalog struct {
	log    zerolog.Logger
	ctype  domain.ContentType
	base   string
	limit  int
	client *retryablehttp.Client
}

var _ domain.Catalog = (*Catalog)(nil)

// NewCatalog creates a catalog for t, which must be anime or manga
func NewCatalog(log zerolog.Logger, t domain.ContentType, opts Options) (*Catalog, error) {
	if t != domain.ContentAnime && t != domain.ContentManga {
		return nil, errors.Wrapf(domain.ErrIncompatibleType, "mal catalog serves anime or manga, not %s", t)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}

	l := log.With().Str("module", "mal").Str("type", string(t)).Logger()
	c := httpclient.New(l, opts.HTTP)
	c.HTTPClient.Transport = &clientIDTransport{Transport: c.HTTPClient.Transport, ClientID: opts.ClientID}

	return &Catalog{
		log:    l,
		ctype:  t,
		base:   strings.TrimRight(opts.BaseURL, "/"),
		limit:  opts.Limit,
		client: c,
	}, nil
}

func (c *Catalog) Type() domain.ContentType { return c.ctype }

// Search queries MAL by title. MAL rejects short queries, so an empty query browses instead.
func (c *Catalog) Search(ctx context.Context, query string) ([]domain.Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.BrowsePopular(ctx)
	}
	v := url.Values{}
	v.Set("q", query)
	return c.list(ctx, fmt.Sprintf("%s/%s", c.base, c.ctype), v)
}

func (c *Catalog) BrowsePopular(ctx context.Context) ([]domain.Item, error) {
	v := url.Values{}
	v.Set("ranking_type", "all")
	return c.list(ctx, fmt.Sprintf("%s/%s/ranking", c.base, c.ctype), v)
}

func (c *Catalog) list(ctx context.Context, endpoint string, v url.Values) ([]domain.Item, error) {
	v.Set("limit", strconv.Itoa(c.limit))
	v.Set("fields", listFields)

	mal := &MalResponse{}
	if err := c.get(ctx, endpoint+"?"+v.Encode(), mal); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "mal request cancelled")
		}
		c.log.Warn().Err(err).Str("url", endpoint).Msg("mal request failed")
		return []domain.Item{}, nil
	}

	items := make([]domain.Item, 0, len(mal.Data))
	for _, d := range mal.Data {
		items = append(items, c.toItem(d.Node))
	}
	return items, nil
}

// ListChildren fetches the episode or chapter count and synthesizes one child per unit
func (c *Catalog) ListChildren(ctx context.Context, item domain.Item) ([]domain.Child, error) {
	if _, err := strconv.Atoi(item.ID); err != nil {
		c.log.Debug().Str("id", item.ID).Msg("not a mal id")
		return []domain.Child{}, nil
	}

	node := &malNode{}
	endpoint := fmt.Sprintf("%s/%s/%s?fields=num_episodes,num_chapters", c.base, c.ctype, item.ID)
	if err := c.get(ctx, endpoint, node); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "mal request cancelled")
		}
		c.log.Warn().Err(err).Str("id", item.ID).Msg("failed to fetch mal entry")
		return []domain.Child{}, nil
	}

	count, label := node.NumEpisodes, "Episode"
	if c.ctype == domain.ContentManga {
		count, label = node.NumChapters, "Chapter"
	}

	marker := domain.ChildMarker(c.ctype)
	children := make([]domain.Child, 0, count)
	for n := 1; n <= count; n++ {
		children = append(children, domain.Child{
			ID:       fmt.Sprintf("%s%s%d", item.ID, marker, n),
			ParentID: item.ID,
			Number:   float64(n),
			Title:    fmt.Sprintf("%s %d", label, n),
			Provider: Slug,
		})
	}
	return children, nil
}

// ResolveMedia returns no links; MAL hosts no media
func (c *Catalog) ResolveMedia(ctx context.Context, child domain.Child) ([]domain.MediaLink, error) {
	return []domain.MediaLink{}, nil
}

func (c *Catalog) toItem(n malNode) domain.Item {
	cover := n.MainPicture.Large
	if cover == "" {
		cover = n.MainPicture.Medium
	}
	return domain.Item{
		ID:         strconv.Itoa(n.ID),
		Title:      n.Title,
		Synopsis:   n.Synopsis,
		CoverImage: cover,
		DetailPage: fmt.Sprintf("https://myanimelist.net/%s/%d", c.ctype, n.ID),
		Provider:   Slug,
		Children:   []domain.Child{},
	}
}

func (c *Catalog) get(ctx context.Context, u string, v any) error {
	resp, err := httpclient.Get(ctx, c.client, u, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, u)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return errors.Wrap(err, "failed to unmarshal response")
	}
	return nil
}
