package template

import "github.com/varoOP/shinkrosrc/internal/domain"

const genericScore = 10

type genericTemplate struct{}

// NewGeneric is the fallback template. It scores a constant 10 for any input.
func NewGeneric() Template {
	return genericTemplate{}
}

func (genericTemplate) ID() string          { return GenericID }
func (genericTemplate) DisplayName() string { return "Generic provider" }

func (genericTemplate) SupportedContentTypes() []domain.ContentType {
	return []domain.ContentType{domain.ContentAnime, domain.ContentManga, domain.ContentBoth}
}

func (genericTemplate) Score(*domain.SiteProfile, *domain.ContentSchema) int {
	return genericScore
}

// Apply builds a REST shaped config for the detected category. A discovered
// GraphQL search switches the search method and endpoint over.
func (genericTemplate) Apply(profile *domain.SiteProfile, schema *domain.ContentSchema, name string) *domain.DynamicProviderConfig {
	schema = safeSchema(schema)
	t := profile.Category.ContentType()
	base := restBase(profile, schema)

	cfg := baseConfig(profile, name, t, base)
	applyREST(cfg, profile, schema, base, t)

	if p := patternFor(schema.Search, domain.ApiGraphQL); p != nil {
		cfg.Hosts.APIBase = p.Endpoint
		cfg.Search.Method = domain.ApiGraphQL
		cfg.Search.Endpoint = p.Endpoint
		cfg.Search.QueryTemplate = `{ search(query: "${query}", limit: ${limit}) { id title } }`
		cfg.Search.PopularTemplate = ""
		cfg.Search.ResultsPath = "$.data.search"
		cfg.Search.ResultMapping = []domain.FieldMapping{
			domain.Map("$.id", domain.FieldID),
			domain.Map("$.title", domain.FieldTitle),
		}
		cfg.Search = mergeSearch(cfg.Search, p, preferDiscovered)
	}
	return cfg
}
