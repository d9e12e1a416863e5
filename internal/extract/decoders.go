package extract

import (
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/varoOP/shinkrosrc/internal/domain"
)

// AllAnimeSourceDecoder is the name of the built-in dash-prefixed hex decoder
const AllAnimeSourceDecoder = "AllAnimeSourceDecoder"

// Decoder turns an encoded value into its plain form
type Decoder func(string) (string, error)

// Decoders is a named set of decoders handed to an extractor at construction
type Decoders map[string]Decoder

// BuiltinDecoders returns the decoders every runtime starts with
func BuiltinDecoders() Decoders {
	return Decoders{
		AllAnimeSourceDecoder: DashHex,
	}
}

// With returns a copy of d extended with other. Entries of other win.
func (d Decoders) With(other Decoders) Decoders {
	out := make(Decoders, len(d)+len(other))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// CompileRules builds decoders from a config's named transform rules.
// Rules that fail to compile are returned as errors and left out of the set.
func CompileRules(rules []domain.TransformRule) (Decoders, []error) {
	out := make(Decoders, len(rules))
	var errs []error

	for _, rule := range rules {
		if rule.Name == "" {
			errs = append(errs, errors.New("transform rule without a name"))
			continue
		}

		switch rule.Kind {
		case domain.RuleDashHex:
			out[rule.Name] = DashHex
		case domain.RuleBase64:
			out[rule.Name] = func(s string) (string, error) { return DecodeBase64(s) }
		case domain.RuleHex:
			out[rule.Name] = func(s string) (string, error) { return DecodeHex(s) }
		case domain.RuleURLDecode:
			out[rule.Name] = url.QueryUnescape
		case domain.RuleRegex:
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				errs = append(errs, errors.Wrapf(err, "transform rule %q", rule.Name))
				continue
			}
			replacement := rule.Replacement
			out[rule.Name] = func(s string) (string, error) {
				return re.ReplaceAllString(s, replacement), nil
			}
		default:
			errs = append(errs, errors.Errorf("transform rule %q has unknown kind %q", rule.Name, rule.Kind))
		}
	}

	return out, errs
}

// DashHex decodes values of the form "-<hex>" into UTF-8 text. Any other
// value is returned unchanged. On a decode failure the input is returned
// together with the error.
func DashHex(s string) (string, error) {
	if !strings.HasPrefix(s, "-") {
		return s, nil
	}
	b, err := hex.DecodeString(s[1:])
	if err != nil {
		return s, errors.Wrap(err, "dash-prefixed hex")
	}
	return decodeUTF8(b), nil
}

// DecodeHex hex-decodes s. On error the original string is returned.
func DecodeHex(s string) (string, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return s, errors.Wrap(err, "hex")
	}
	return decodeUTF8(b), nil
}

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeBase64 decodes standard or URL-safe base64, padded or not.
// On error, or when the payload is not UTF-8 text, the original string is returned.
func DecodeBase64(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	for _, enc := range base64Encodings {
		b, err := enc.DecodeString(trimmed)
		if err != nil {
			continue
		}
		if !utf8.Valid(b) {
			return s, errors.New("base64 payload is not utf-8 text")
		}
		return string(b), nil
	}
	return s, errors.New("invalid base64")
}

// decodeUTF8 decodes b as UTF-8, replacing every invalid byte with U+FFFD.
func decodeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
