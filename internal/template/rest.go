package template

import "github.com/varoOP/shinkrosrc/internal/domain"

func itemMappings() []domain.FieldMapping {
	return []domain.FieldMapping{
		domain.Map("$.id", domain.FieldID),
		domain.Map("$.title", domain.FieldTitle),
		domain.Map("$.image", domain.FieldCoverImage),
		domain.Map("$.description", domain.FieldSynopsis),
		domain.Map("$.url", domain.FieldDetailPage),
	}
}

func childMappings() []domain.FieldMapping {
	return []domain.FieldMapping{
		domain.Map("$.id", domain.FieldID),
		domain.Map("$.number", domain.FieldNumber),
		domain.Map("$.title", domain.FieldTitle),
	}
}

type restTemplate struct {
	id          string
	displayName string
	contentType domain.ContentType
}

func NewRESTAnime() Template {
	return &restTemplate{id: "rest-anime", displayName: "REST anime API", contentType: domain.ContentAnime}
}

func NewRESTManga() Template {
	return &restTemplate{id: "rest-manga", displayName: "REST manga API", contentType: domain.ContentManga}
}

func (t *restTemplate) ID() string          { return t.id }
func (t *restTemplate) DisplayName() string { return t.displayName }

func (t *restTemplate) SupportedContentTypes() []domain.ContentType {
	return []domain.ContentType{t.contentType}
}

func (t *restTemplate) Score(profile *domain.SiteProfile, schema *domain.ContentSchema) int {
	schema = safeSchema(schema)
	if otherMedium(profile, t.contentType) {
		return 0
	}
	restSearch := patternFor(schema.Search, domain.ApiREST) != nil
	hasKind := schema.HasEndpointKind(domain.ApiREST)
	if !hasKind && !restSearch {
		return 0
	}

	score := 0
	if hasKind {
		score += 30
	}
	if restSearch {
		score += 20
	}
	if childPattern(schema, t.contentType) != nil {
		score += 20
	}
	if exactCategory(profile, t.contentType) {
		score += 10
	}
	return score
}

func (t *restTemplate) Apply(profile *domain.SiteProfile, schema *domain.ContentSchema, name string) *domain.DynamicProviderConfig {
	schema = safeSchema(schema)
	base := restBase(profile, schema)
	cfg := baseConfig(profile, name, t.contentType, base)
	applyREST(cfg, profile, schema, base, t.contentType)
	return cfg
}

// applyREST fills the REST defaults for t, preferring discovered patterns
func applyREST(cfg *domain.DynamicProviderConfig, profile *domain.SiteProfile, schema *domain.ContentSchema, base string, t domain.ContentType) {
	search := patternFor(schema.Search, domain.ApiREST, domain.ApiCustom)
	media := patternFor(schema.Media, domain.ApiREST, domain.ApiCustom)

	cfg.Search = mergeSearch(domain.SearchConfig{
		Method:          domain.ApiREST,
		Endpoint:        base,
		QueryTemplate:   "/search?q=${query}&limit=${limit}&page=${page}",
		PopularTemplate: "/popular?limit=${limit}&page=${page}",
		ResultsPath:     "$.results",
		ResultMapping:   itemMappings(),
		PageSize:        defaultPageSize,
	}, search, preferDiscovered)

	if t.Serves(domain.ContentAnime) {
		cfg.Content.Episodes = mergeEndpoint(&domain.EndpointConfig{
			Method:        domain.ApiREST,
			Endpoint:      base,
			QueryTemplate: "/anime/${showId}/episodes",
			ResultsPath:   "$.episodes",
			Mapping:       childMappings(),
		}, patternFor(schema.Episodes, domain.ApiREST, domain.ApiCustom), preferDiscovered)

		streams := media
		if media != nil && t == domain.ContentBoth {
			streams = nil
		}
		cfg.Media.Streams = mergeEndpoint(&domain.EndpointConfig{
			Method:        domain.ApiREST,
			Endpoint:      base,
			QueryTemplate: "/episodes/${episodeId}/sources",
			ResultsPath:   "$.sources",
			Mapping: []domain.FieldMapping{
				domain.Map("$.url", domain.FieldURL),
				domain.Map("$.quality", domain.FieldQuality),
			},
			MediaBase: mediaBase(profile),
		}, streams, preferDiscovered)
	}

	if t.Serves(domain.ContentManga) {
		cfg.Content.Chapters = mergeEndpoint(&domain.EndpointConfig{
			Method:        domain.ApiREST,
			Endpoint:      base,
			QueryTemplate: "/manga/${mangaId}/chapters",
			ResultsPath:   "$.chapters",
			Mapping:       childMappings(),
		}, patternFor(schema.Chapters, domain.ApiREST, domain.ApiCustom), preferDiscovered)

		cfg.Media.Pages = mergeEndpoint(&domain.EndpointConfig{
			Method:        domain.ApiREST,
			Endpoint:      base,
			QueryTemplate: "/chapters/${chapterId}/pages",
			ResultsPath:   "$.pages",
			Mapping: []domain.FieldMapping{
				domain.Map("$.url", domain.FieldURL),
				domain.Map("$.page", domain.FieldPage),
			},
			MediaBase: mediaBase(profile),
		}, media, preferDiscovered)
	}

	detailsPath := "/anime/${id}"
	if t == domain.ContentManga {
		detailsPath = "/manga/${id}"
	}
	cfg.Content.Details = &domain.EndpointConfig{
		Method:        domain.ApiREST,
		Endpoint:      base,
		QueryTemplate: detailsPath,
		ResultsPath:   "$",
		Mapping:       itemMappings(),
	}
}
