package discovery

import (
	"sort"
	"strings"

	"github.com/varoOP/shinkrosrc/internal/domain"
)

const maxShapeDepth = 5

// findArrayPath returns the path of the first array of objects found breadth
// first, "$" when the document itself is one. Keys are visited in sorted order.
func findArrayPath(doc any) (string, []any, bool) {
	type node struct {
		path  string
		value any
		depth int
	}

	queue := []node{{path: "$", value: doc}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		switch v := n.value.(type) {
		case []any:
			if len(v) > 0 {
				if obj, ok := v[0].(map[string]any); ok && len(obj) >= 2 {
					return n.path, v, true
				}
			}
		case map[string]any:
			if n.depth >= maxShapeDepth {
				continue
			}
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if !isIdentifier(k) {
					continue
				}
				queue = append(queue, node{path: n.path + "." + k, value: v[k], depth: n.depth + 1})
			}
		}
	}
	return "", nil, false
}

func isIdentifier(k string) bool {
	if k == "" {
		return false
	}
	return !strings.ContainsAny(k, ".[]'\" ")
}

// synonyms per target field, most specific first
var itemSynonyms = []struct {
	field domain.TargetField
	keys  []string
}{
	{domain.FieldID, []string{"id", "_id", "slug", "uuid", "mal_id", "anime_id", "manga_id"}},
	{domain.FieldTitle, []string{"title", "name", "title_english", "english_title", "romaji"}},
	{domain.FieldSynopsis, []string{"description", "synopsis", "summary", "overview", "plot"}},
	{domain.FieldCoverImage, []string{"cover", "coverimage", "cover_image", "poster", "image", "image_url", "thumbnail", "thumb", "picture"}},
	{domain.FieldDetailPage, []string{"url", "link", "href", "permalink", "detail_url"}},
}

var childSynonyms = []struct {
	field domain.TargetField
	keys  []string
}{
	{domain.FieldID, []string{"id", "_id", "slug", "episode_id", "chapter_id"}},
	{domain.FieldNumber, []string{"number", "episode", "episode_number", "ep", "chapter", "chapter_number", "num"}},
	{domain.FieldTitle, []string{"title", "name"}},
	{domain.FieldURL, []string{"url", "link", "href"}},
}

var nestedPreference = []string{"large", "medium", "original", "url", "src", "english", "romaji", "en", "default", "userpreferred"}

// inferMappings maps the keys of a sample element onto target fields
func inferMappings(sample map[string]any, children bool) []domain.FieldMapping {
	lower := make(map[string]string, len(sample))
	for k := range sample {
		lower[strings.ToLower(k)] = k
	}

	synonyms := itemSynonyms
	if children {
		synonyms = childSynonyms
	}

	var out []domain.FieldMapping
	used := map[string]bool{}
	for _, syn := range synonyms {
		for _, key := range syn.keys {
			actual, ok := lower[key]
			if !ok || used[actual] || !isIdentifier(actual) {
				continue
			}
			path, ok := leafPath("$."+actual, sample[actual])
			if !ok {
				continue
			}
			used[actual] = true
			out = append(out, domain.Map(path, syn.field))
			break
		}
	}
	return out
}

// leafPath descends one level into objects to find a scalar worth mapping
func leafPath(path string, v any) (string, bool) {
	switch t := v.(type) {
	case map[string]any:
		lower := make(map[string]string, len(t))
		for k := range t {
			lower[strings.ToLower(k)] = k
		}
		for _, pref := range nestedPreference {
			if actual, ok := lower[pref]; ok {
				if _, isStr := t[actual].(string); isStr {
					return path + "." + actual, true
				}
			}
		}
		return "", false
	case []any, nil:
		return "", false
	}
	return path, true
}

func hasField(mappings []domain.FieldMapping, f domain.TargetField) bool {
	for _, m := range mappings {
		if m.TargetField == f {
			return true
		}
	}
	return false
}
