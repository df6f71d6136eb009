package formx

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var ErrConflict = errors.New("formx: key used as both value and object")

// DecodePairs splits an encoded body into unescaped pairs, in order. Empty
// segments are skipped; a segment without "=" has an empty value.
func (o Options) DecodePairs(s string) ([]Pair, error) {
	var out []Pair
	for _, part := range strings.Split(s, o.delimiter()) {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("formx: key %q: %w", k, err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("formx: value for %q: %w", key, err)
		}
		out = append(out, Pair{Key: key, Value: val})
	}
	return out, nil
}

func DecodePairs(s string) ([]Pair, error) { return Options{}.DecodePairs(s) }

// Decode rebuilds the nested value. Objects whose keys are exactly 0..n-1
// become []any, "a[]" appends, and a repeated plain key collects its values
// into a []any. Leaves are always strings.
func (o Options) Decode(s string) (map[string]any, error) {
	pairs, err := o.DecodePairs(s)
	if err != nil {
		return nil, err
	}

	root := map[string]any{}
	for _, p := range pairs {
		if err := insert(root, splitKey(p.Key), p.Value); err != nil {
			return nil, fmt.Errorf("%w: %q", err, p.Key)
		}
	}
	for k, v := range root {
		root[k] = compact(v)
	}
	return root, nil
}

func Decode(s string) (map[string]any, error) { return Options{}.Decode(s) }

// splitKey turns "a[b][0]" into [a b 0]. Keys that do not follow the
// bracket grammar are kept whole.
func splitKey(k string) []string {
	open := strings.IndexByte(k, '[')
	if open <= 0 {
		return []string{k}
	}

	segs := []string{k[:open]}
	rest := k[open:]
	for rest != "" {
		if rest[0] != '[' {
			return []string{k}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{k}
		}
		segs = append(segs, rest[1:end])
		rest = rest[end+1:]
	}
	return segs
}

func insert(node map[string]any, path []string, val string) error {
	seg := path[0]
	if seg == "" {
		seg = strconv.Itoa(len(node))
	}

	if len(path) == 1 {
		switch ex := node[seg].(type) {
		case nil:
			node[seg] = val
		case string:
			node[seg] = []any{ex, val}
		case []any:
			node[seg] = append(ex, val)
		default:
			return ErrConflict
		}
		return nil
	}

	child, ok := node[seg]
	if !ok {
		child = map[string]any{}
		node[seg] = child
	}
	m, ok := child.(map[string]any)
	if !ok {
		return ErrConflict
	}
	return insert(m, path[1:], val)
}

func compact(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, c := range m {
		m[k] = compact(c)
	}

	if len(m) == 0 {
		return m
	}
	list := make([]any, len(m))
	for k, c := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(m) || strconv.Itoa(i) != k {
			return m
		}
		list[i] = c
	}
	return list
}
