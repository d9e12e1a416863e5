package extract

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/shinkrosrc/internal/domain"
)

const showsDoc = `{
	"data": {
		"shows": {
			"edges": [
				{"_id": "abc123", "name": "Frieren", "episodes": 28, "thumbnail": "/img/frieren.jpg"},
				{"_id": "def456", "name": "Dandadan", "tags": ["action", "comedy"]},
				{"_id": "ghi789", "name": null}
			]
		}
	}
}`

func newTestExtractor(d Decoders) *Extractor {
	return New(zerolog.Nop(), d)
}

func TestExtractAll_ArrayPath(t *testing.T) {
	e := newTestExtractor(nil)

	records := e.ExtractAll([]byte(showsDoc), []domain.FieldMapping{
		domain.Map("$._id", domain.FieldID),
		domain.Map("$.name", domain.FieldTitle),
		domain.Map("$.episodes", domain.FieldNumber),
		domain.Map("$.tags[1]", "Genre"),
	}, "$.data.shows.edges")

	require.Len(t, records, 3)
	assert.Equal(t, "abc123", records[0].ID)
	assert.Equal(t, "Frieren", records[0].Title)
	assert.Equal(t, "28", records[0].Number)
	assert.Empty(t, records[0].Extra["Genre"])

	assert.Equal(t, "def456", records[1].ID)
	assert.Equal(t, "comedy", records[1].Extra["Genre"])
	assert.Empty(t, records[1].Number)

	assert.Equal(t, "ghi789", records[2].ID)
	assert.Empty(t, records[2].Title)
}

func TestExtractAll_NonArrayYieldsOneRecord(t *testing.T) {
	e := newTestExtractor(nil)

	records := e.ExtractAll([]byte(showsDoc), []domain.FieldMapping{
		domain.Map("$.edges[0].name", domain.FieldTitle),
	}, "$.data.shows")

	require.Len(t, records, 1)
	assert.Equal(t, "Frieren", records[0].Title)
}

func TestExtractAll_RootArrayOfScalars(t *testing.T) {
	e := newTestExtractor(nil)

	records := e.ExtractAll([]byte(`["1","2","3"]`), []domain.FieldMapping{
		domain.Map("$", domain.FieldNumber),
	}, "")

	require.Len(t, records, 3)
	assert.Equal(t, "3", records[2].Number)
}

func TestExtractAll_MalformedAndUnresolved(t *testing.T) {
	e := newTestExtractor(nil)
	mappings := []domain.FieldMapping{domain.Map("$.id", domain.FieldID)}

	assert.Empty(t, e.ExtractAll([]byte(`<html>not json</html>`), mappings, ""))
	assert.Empty(t, e.ExtractAll([]byte(``), mappings, ""))
	assert.Empty(t, e.ExtractAll([]byte(`{"data":{}}`), mappings, "$.data.items"))
}

func TestLookup_Paths(t *testing.T) {
	e := newTestExtractor(nil)
	doc := []byte(showsDoc)

	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{"member chain", "$.data.shows.edges[0].name", "Frieren", true},
		{"no dollar", "data.shows.edges[1]._id", "def456", true},
		{"quoted key", "$['data'].shows.edges[0]._id", "abc123", true},
		{"object rendered as json", "$.data.shows.edges[1].tags", `["action","comedy"]`, true},
		{"missing key", "$.data.movies", "", false},
		{"index out of range", "$.data.shows.edges[9]", "", false},
		{"index on object", "$.data[0]", "", false},
		{"member on array", "$.data.shows.edges.name", "", false},
		{"bad index", "$.data.shows.edges[x]", "", false},
		{"unterminated", "$.data.shows.edges[0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.Lookup(doc, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup_Deterministic(t *testing.T) {
	e := newTestExtractor(nil)
	doc := []byte(showsDoc)

	first, ok := e.Lookup(doc, "$.data.shows.edges[0].thumbnail")
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		again, ok := e.Lookup(doc, "$.data.shows.edges[0].thumbnail")
		assert.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestTransform(t *testing.T) {
	e := newTestExtractor(nil)

	tests := []struct {
		name  string
		value string
		m     domain.FieldMapping
		want  string
	}{
		{"none", "abc", domain.FieldMapping{Transform: domain.TransformNone}, "abc"},
		{"url decode", "a%20b%2Fc", domain.FieldMapping{Transform: domain.TransformURLDecode}, "a b/c"},
		{"url decode invalid", "%zz", domain.FieldMapping{Transform: domain.TransformURLDecode}, "%zz"},
		{"prepend host relative", "/img/a.jpg", domain.FieldMapping{Transform: domain.TransformPrependHost, TransformParams: []string{"https://cdn.example/"}}, "https://cdn.example/img/a.jpg"},
		{"prepend host absolute", "https://other.example/a.jpg", domain.FieldMapping{Transform: domain.TransformPrependHost, TransformParams: []string{"https://cdn.example"}}, "https://other.example/a.jpg"},
		{"prepend host protocol relative", "//cdn.example/a.jpg", domain.FieldMapping{Transform: domain.TransformPrependHost, TransformParams: []string{"https://site.example"}}, "https://cdn.example/a.jpg"},
		{"regex group", "ep-12-sub", domain.FieldMapping{Transform: domain.TransformRegexExtract, TransformParams: []string{`ep-(\d+)`}}, "12"},
		{"regex whole match", "ep-12-sub", domain.FieldMapping{Transform: domain.TransformRegexExtract, TransformParams: []string{`\d+`}}, "12"},
		{"regex no match", "movie", domain.FieldMapping{Transform: domain.TransformRegexExtract, TransformParams: []string{`\d+`}}, "movie"},
		{"regex replacement", "clock.example/a", domain.FieldMapping{Transform: domain.TransformRegexExtract, TransformParams: []string{`^clock`, "https://clock"}}, "https://clock.example/a"},
		{"regex invalid pattern", "abc", domain.FieldMapping{Transform: domain.TransformRegexExtract, TransformParams: []string{`(`}}, "abc"},
		{"custom unregistered", "-6869", domain.FieldMapping{Transform: domain.TransformCustom, TransformParams: []string{"Missing"}}, "-6869"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Transform(tt.value, tt.m))
		})
	}
}

func TestTransform_RoundTrip(t *testing.T) {
	e := newTestExtractor(nil)
	inputs := []string{"https://cdn.example/v/1.m3u8", "héllo wörld", "a"}

	for _, in := range inputs {
		b64 := base64.StdEncoding.EncodeToString([]byte(in))
		assert.Equal(t, in, e.Transform(b64, domain.FieldMapping{Transform: domain.TransformDecodeBase64}))

		hx := hex.EncodeToString([]byte(in))
		assert.Equal(t, in, e.Transform(hx, domain.FieldMapping{Transform: domain.TransformDecodeHex}))
	}

	assert.Equal(t, "not base64!!", e.Transform("not base64!!", domain.FieldMapping{Transform: domain.TransformDecodeBase64}))
	assert.Equal(t, "xyz", e.Transform("xyz", domain.FieldMapping{Transform: domain.TransformDecodeHex}))
}

func TestTransform_CustomInsideExtraction(t *testing.T) {
	e := newTestExtractor(BuiltinDecoders().With(Decoders{
		"Fails": func(string) (string, error) { return "", errors.New("boom") },
		"Panics": func(string) (string, error) {
			panic("boom")
		},
	}))

	encoded := "-" + hex.EncodeToString([]byte("https://cdn.example/v.mp4"))
	doc := []byte(`[{"u":"` + encoded + `"}]`)

	records := e.ExtractAll(doc, []domain.FieldMapping{
		{SourcePath: "$.u", TargetField: domain.FieldURL, Transform: domain.TransformCustom, TransformParams: []string{AllAnimeSourceDecoder}},
		{SourcePath: "$.u", TargetField: "Failed", Transform: domain.TransformCustom, TransformParams: []string{"Fails"}},
		{SourcePath: "$.u", TargetField: "Panicked", Transform: domain.TransformCustom, TransformParams: []string{"Panics"}},
		{SourcePath: "$.u", TargetField: "Unknown", Transform: domain.TransformCustom, TransformParams: []string{"NotThere"}},
	}, "")

	require.Len(t, records, 1)
	assert.Equal(t, "https://cdn.example/v.mp4", records[0].URL)
	assert.Equal(t, encoded, records[0].Extra["Failed"])
	assert.Equal(t, encoded, records[0].Extra["Panicked"])
	assert.Equal(t, encoded, records[0].Extra["Unknown"])
}
