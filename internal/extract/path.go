package extract

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// segment is one step of a compiled path: a member access or an array index
type segment struct {
	key     string
	index   int
	isIndex bool
}

type compiledPath struct {
	segments []segment
	err      error
}

// pathCache memoizes parsed paths. The same handful of paths is evaluated
// against every element of a result array.
type pathCache struct {
	mu    sync.RWMutex
	paths map[string]compiledPath
}

func newPathCache() *pathCache {
	return &pathCache{paths: make(map[string]compiledPath)}
}

func (c *pathCache) get(path string) ([]segment, error) {
	c.mu.RLock()
	cp, ok := c.paths[path]
	c.mu.RUnlock()
	if ok {
		return cp.segments, cp.err
	}

	segs, err := parsePath(path)

	c.mu.Lock()
	c.paths[path] = compiledPath{segments: segs, err: err}
	c.mu.Unlock()

	return segs, err
}

// parsePath compiles `$`, `.name` and `[index]` segments. A leading `$` is
// optional, so `data.items[0]` and `$.data.items[0]` are the same path.
// Bracketed quoted keys (`['weird key']`) are accepted for member names that
// cannot be written with dot syntax.
func parsePath(path string) ([]segment, error) {
	p := strings.TrimSpace(path)
	p = strings.TrimPrefix(p, "$")

	var segs []segment
	for i := 0; i < len(p); {
		switch p[i] {
		case '.':
			i++
			start := i
			for i < len(p) && p[i] != '.' && p[i] != '[' {
				i++
			}
			if start == i {
				return nil, errors.Errorf("empty member name at offset %d in %q", start, path)
			}
			segs = append(segs, segment{key: p[start:i]})

		case '[':
			end := strings.IndexByte(p[i:], ']')
			if end < 0 {
				return nil, errors.Errorf("unterminated index in %q", path)
			}
			inner := strings.TrimSpace(p[i+1 : i+end])
			i += end + 1

			if n := len(inner); n >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[n-1] == inner[0] {
				segs = append(segs, segment{key: inner[1 : n-1]})
				continue
			}

			idx, err := strconv.Atoi(inner)
			if err != nil || idx < 0 {
				return nil, errors.Errorf("invalid array index %q in %q", inner, path)
			}
			segs = append(segs, segment{index: idx, isIndex: true})

		default:
			// bare leading identifier
			start := i
			for i < len(p) && p[i] != '.' && p[i] != '[' {
				i++
			}
			if len(segs) > 0 {
				return nil, errors.Errorf("unexpected character at offset %d in %q", start, path)
			}
			segs = append(segs, segment{key: p[start:i]})
		}
	}

	return segs, nil
}

// resolve walks segs from v. Missing keys, out of range indexes and wrong
// container kinds all report ok=false.
func resolve(v any, segs []segment) (any, bool) {
	cur := v
	for _, s := range segs {
		if s.isIndex {
			arr, ok := cur.([]any)
			if !ok || s.index >= len(arr) {
				return nil, false
			}
			cur = arr[s.index]
			continue
		}

		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[s.key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
