package template

import (
	"github.com/varoOP/shinkrosrc/internal/domain"
	"github.com/varoOP/shinkrosrc/internal/extract"
)

// GraphQL defaults are modelled on the AllAnime schema
const (
	animeSearchQuery  = `{ shows(search: {query: "${query}"}, limit: ${limit}, page: ${page}) { edges { _id name thumbnail description } } }`
	animePopularQuery = `{ shows(search: {sortBy: Top}, limit: ${limit}, page: ${page}) { edges { _id name thumbnail description } } }`
	animeEpisodes     = `{ show(_id: "${showId}") { availableEpisodesDetail } }`
	animeStreams      = `{ episode(showId: "${showId}", translationType: sub, episodeString: "${episode}") { sourceUrls } }`
	animeDetails      = `{ show(_id: "${id}") { _id name thumbnail description } }`

	mangaSearchQuery  = `{ mangas(search: {query: "${query}"}, limit: ${limit}, page: ${page}) { edges { _id name thumbnail description } } }`
	mangaPopularQuery = `{ mangas(search: {sortBy: Top}, limit: ${limit}, page: ${page}) { edges { _id name thumbnail description } } }`
	mangaChapters     = `{ manga(_id: "${mangaId}") { availableChaptersDetail } }`
	mangaPages        = `{ chapterPages(mangaId: "${mangaId}", translationType: sub, chapterString: "${chapter}") { edges { pictureUrls } } }`
	mangaDetails      = `{ manga(_id: "${id}") { _id name thumbnail description } }`
)

func showMappings() []domain.FieldMapping {
	return []domain.FieldMapping{
		domain.Map("$._id", domain.FieldID),
		domain.Map("$.name", domain.FieldTitle),
		domain.Map("$.thumbnail", domain.FieldCoverImage),
		domain.Map("$.description", domain.FieldSynopsis),
	}
}

type graphqlTemplate struct {
	id          string
	displayName string
	contentType domain.ContentType
	precedence  precedence
}

// NewGraphQLAnime keeps its schema defaults unless discovery found both a
// results path and mappings
func NewGraphQLAnime() Template {
	return &graphqlTemplate{
		id:          "graphql-anime",
		displayName: "GraphQL anime API",
		contentType: domain.ContentAnime,
		precedence:  preferDefaults,
	}
}

func NewGraphQLManga() Template {
	return &graphqlTemplate{
		id:          "graphql-manga",
		displayName: "GraphQL manga API",
		contentType: domain.ContentManga,
		precedence:  preferDiscovered,
	}
}

func (t *graphqlTemplate) ID() string          { return t.id }
func (t *graphqlTemplate) DisplayName() string { return t.displayName }

func (t *graphqlTemplate) SupportedContentTypes() []domain.ContentType {
	return []domain.ContentType{t.contentType}
}

func (t *graphqlTemplate) Score(profile *domain.SiteProfile, schema *domain.ContentSchema) int {
	schema = safeSchema(schema)
	if !profile.HasGraphQL || otherMedium(profile, t.contentType) {
		return 0
	}

	score := 30
	if schema.HasEndpointKind(domain.ApiGraphQL) {
		score += 30
	}
	if schema.Search != nil {
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

func (t *graphqlTemplate) Apply(profile *domain.SiteProfile, schema *domain.ContentSchema, name string) *domain.DynamicProviderConfig {
	schema = safeSchema(schema)
	endpoint := graphqlEndpoint(profile, schema)
	cfg := baseConfig(profile, name, t.contentType, endpoint)

	search := patternFor(schema.Search, domain.ApiGraphQL)
	child := patternFor(childPattern(schema, t.contentType), domain.ApiGraphQL)
	media := patternFor(schema.Media, domain.ApiGraphQL)

	if t.contentType == domain.ContentManga {
		cfg.Search = mergeSearch(domain.SearchConfig{
			Method:          domain.ApiGraphQL,
			Endpoint:        endpoint,
			QueryTemplate:   mangaSearchQuery,
			PopularTemplate: mangaPopularQuery,
			ResultsPath:     "$.data.mangas.edges",
			ResultMapping:   showMappings(),
			PageSize:        defaultPageSize,
		}, search, t.precedence)
		cfg.Content.Chapters = mergeEndpoint(&domain.EndpointConfig{
			Method:        domain.ApiGraphQL,
			Endpoint:      endpoint,
			QueryTemplate: mangaChapters,
			ResultsPath:   "$.data.manga.availableChaptersDetail.sub",
			Mapping:       []domain.FieldMapping{domain.Map("$", domain.FieldNumber)},
		}, child, t.precedence)
		cfg.Content.Details = &domain.EndpointConfig{
			Method:        domain.ApiGraphQL,
			Endpoint:      endpoint,
			QueryTemplate: mangaDetails,
			ResultsPath:   "$.data.manga",
			Mapping:       showMappings(),
		}
		cfg.Media.Pages = mergeEndpoint(&domain.EndpointConfig{
			Method:        domain.ApiGraphQL,
			Endpoint:      endpoint,
			QueryTemplate: mangaPages,
			ResultsPath:   "$.data.chapterPages.edges[0].pictureUrls",
			Mapping: []domain.FieldMapping{
				domain.Map("$.url", domain.FieldURL),
				domain.Map("$.num", domain.FieldPage),
			},
			MediaBase: mediaBase(profile),
		}, media, t.precedence)
		return cfg
	}

	cfg.Search = mergeSearch(domain.SearchConfig{
		Method:          domain.ApiGraphQL,
		Endpoint:        endpoint,
		QueryTemplate:   animeSearchQuery,
		PopularTemplate: animePopularQuery,
		ResultsPath:     "$.data.shows.edges",
		ResultMapping:   showMappings(),
		PageSize:        defaultPageSize,
	}, search, t.precedence)
	cfg.Content.Episodes = mergeEndpoint(&domain.EndpointConfig{
		Method:        domain.ApiGraphQL,
		Endpoint:      endpoint,
		QueryTemplate: animeEpisodes,
		ResultsPath:   "$.data.show.availableEpisodesDetail.sub",
		Mapping:       []domain.FieldMapping{domain.Map("$", domain.FieldNumber)},
	}, child, t.precedence)
	cfg.Content.Details = &domain.EndpointConfig{
		Method:        domain.ApiGraphQL,
		Endpoint:      endpoint,
		QueryTemplate: animeDetails,
		ResultsPath:   "$.data.show",
		Mapping:       showMappings(),
	}
	cfg.Media.Streams = mergeEndpoint(&domain.EndpointConfig{
		Method:        domain.ApiGraphQL,
		Endpoint:      endpoint,
		QueryTemplate: animeStreams,
		ResultsPath:   "$.data.episode.sourceUrls",
		Mapping: []domain.FieldMapping{
			domain.Map("$.sourceUrl", domain.FieldURL),
			domain.Map("$.sourceName", domain.FieldQuality),
		},
		CustomDecoder: extract.AllAnimeSourceDecoder,
		MediaBase:     mediaBase(profile),
	}, media, t.precedence)
	return cfg
}
