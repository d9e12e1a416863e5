// Package extract evaluates field paths against JSON documents and applies
// value transforms to the extracted strings.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
)

// Extractor is safe for concurrent use.
type Extractor struct {
	log      zerolog.Logger
	decoders Decoders
	paths    *pathCache

	reMu    sync.RWMutex
	regexes map[string]*regexp.Regexp
}

// New creates an extractor resolving custom transforms against decoders
func New(log zerolog.Logger, decoders Decoders) *Extractor {
	if decoders == nil {
		decoders = Decoders{}
	}
	return &Extractor{
		log:      log.With().Str("module", "extract").Logger(),
		decoders: decoders,
		paths:    newPathCache(),
		regexes:  make(map[string]*regexp.Regexp),
	}
}

// Parse decodes a JSON document, keeping numbers verbatim
func Parse(doc []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "failed to decode document")
	}
	return v, nil
}

// ExtractAll runs mappings against every element found at arrayPath (the
// document root when empty). A non-array value yields exactly one record.
// Unparseable documents and unresolved array paths yield no records.
func (e *Extractor) ExtractAll(doc []byte, mappings []domain.FieldMapping, arrayPath string) []Record {
	root, err := Parse(doc)
	if err != nil {
		e.log.Debug().Err(err).Msg("unparseable document")
		return nil
	}
	return e.ExtractFrom(root, mappings, arrayPath)
}

// ExtractFrom is ExtractAll over an already parsed document
func (e *Extractor) ExtractFrom(root any, mappings []domain.FieldMapping, arrayPath string) []Record {
	target := root
	if arrayPath != "" {
		v, ok := e.lookup(root, arrayPath)
		if !ok {
			return nil
		}
		target = v
	}

	elems, ok := target.([]any)
	if !ok {
		elems = []any{target}
	}

	records := make([]Record, 0, len(elems))
	for _, el := range elems {
		records = append(records, e.extractRecord(el, mappings))
	}
	return records
}

func (e *Extractor) extractRecord(el any, mappings []domain.FieldMapping) Record {
	var r Record
	for _, m := range mappings {
		v, ok := e.lookup(el, m.SourcePath)
		if !ok || v == nil {
			continue
		}
		raw := stringify(v)
		if raw == "" {
			continue
		}
		r.Set(m.TargetField, e.Transform(raw, m))
	}
	return r
}

// Lookup evaluates a single path against a raw document
func (e *Extractor) Lookup(doc []byte, path string) (string, bool) {
	root, err := Parse(doc)
	if err != nil {
		return "", false
	}
	v, ok := e.lookup(root, path)
	if !ok {
		return "", false
	}
	return stringify(v), true
}

func (e *Extractor) lookup(v any, path string) (any, bool) {
	segs, err := e.paths.get(path)
	if err != nil {
		e.log.Debug().Err(err).Str("path", path).Msg("invalid path")
		return nil, false
	}
	return resolve(v, segs)
}

// Transform applies the mapping's transform to value. It never fails;
// any decoding problem returns value unchanged.
func (e *Extractor) Transform(value string, m domain.FieldMapping) string {
	switch m.Transform {
	case "", domain.TransformNone:
		return value

	case domain.TransformDecodeBase64:
		out, _ := DecodeBase64(value)
		return out

	case domain.TransformDecodeHex:
		out, _ := DecodeHex(value)
		return out

	case domain.TransformURLDecode:
		out, err := url.QueryUnescape(value)
		if err != nil {
			return value
		}
		return out

	case domain.TransformPrependHost:
		return PrependHost(value, param(m.TransformParams, 0))

	case domain.TransformRegexExtract:
		return e.regexExtract(value, m.TransformParams)

	case domain.TransformCustom:
		return e.Decode(param(m.TransformParams, 0), value)
	}

	e.log.Warn().Str("transform", string(m.Transform)).Msg("unknown transform, value left unchanged")
	return value
}

// Decode runs the named decoder. Unknown names, errors and panics return value unchanged.
func (e *Extractor) Decode(name, value string) (out string) {
	dec, ok := e.decoders[name]
	if !ok {
		e.log.Warn().Str("decoder", name).Msg("custom decoder not registered")
		return value
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Str("decoder", name).Str("panic", fmt.Sprint(r)).Msg("custom decoder panicked")
			out = value
		}
	}()

	decoded, err := dec(value)
	if err != nil {
		e.log.Warn().Err(err).Str("decoder", name).Msg("custom decoder failed")
		return value
	}
	return decoded
}

// HasDecoder reports whether a decoder with the given name is registered
func (e *Extractor) HasDecoder(name string) bool {
	_, ok := e.decoders[name]
	return ok
}

func (e *Extractor) regexExtract(value string, params []string) string {
	pattern := param(params, 0)
	if pattern == "" {
		return value
	}

	re, err := e.regex(pattern)
	if err != nil {
		e.log.Warn().Err(err).Str("pattern", pattern).Msg("invalid regexExtract pattern")
		return value
	}

	if len(params) > 1 {
		return re.ReplaceAllString(value, params[1])
	}

	m := re.FindStringSubmatch(value)
	switch {
	case m == nil:
		return value
	case len(m) > 1:
		return m[1]
	default:
		return m[0]
	}
}

func (e *Extractor) regex(pattern string) (*regexp.Regexp, error) {
	e.reMu.RLock()
	re, ok := e.regexes[pattern]
	e.reMu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	e.reMu.Lock()
	e.regexes[pattern] = re
	e.reMu.Unlock()
	return re, nil
}

// PrependHost makes value absolute against host. Absolute URLs are returned as is,
// protocol-relative ones get an https scheme.
func PrependHost(value, host string) string {
	if IsAbsoluteURL(value) {
		return value
	}
	if strings.HasPrefix(value, "//") {
		return "https:" + value
	}
	if host == "" {
		return value
	}
	return strings.TrimRight(host, "/") + "/" + strings.TrimLeft(value, "/")
}

// IsAbsoluteURL reports whether s carries both a scheme and a host
func IsAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func param(params []string, i int) string {
	if i < len(params) {
		return params[i]
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
