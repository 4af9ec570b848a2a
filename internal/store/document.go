package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

type document = map[string]any

// normalize round-trips v through JSON so documents only ever hold maps,
// slices, strings, float64, bools and nil.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toDocument(v any) (document, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	doc, ok := n.(document)
	if !ok {
		return nil, fmt.Errorf("document must encode to a JSON object, got %T", n)
	}
	return doc, nil
}

// Path joins keys into a field path. Dots and backslashes inside a key are
// escaped, so document keys such as challenge IDs may contain them.
func Path(keys ...string) string {
	escaped := make([]string, len(keys))
	for i, k := range keys {
		escaped[i] = pathEscaper.Replace(k)
	}
	return strings.Join(escaped, ".")
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`)

// splitPath is the inverse of Path.
func splitPath(path string) []string {
	var (
		parts []string
		b     strings.Builder
	)
	for i := 0; i < len(path); i++ {
		switch c := path[i]; {
		case c == '\\' && i+1 < len(path):
			i++
			b.WriteByte(path[i])
		case c == '.':
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	return append(parts, b.String())
}

// expand turns dotted field paths into nested objects.
func expand(fields map[string]any) (document, error) {
	out := document{}
	for path, v := range fields {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", path, err)
		}
		parts := splitPath(path)
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(document)
			if !ok {
				next = document{}
				cur[p] = next
			}
			cur = next
		}
		leaf := parts[len(parts)-1]
		if existing, ok := cur[leaf].(document); ok {
			if m, ok := nv.(document); ok {
				mergeInto(existing, m)
				continue
			}
		}
		cur[leaf] = nv
	}
	return out, nil
}

func mergeInto(dst, src document) {
	for k, v := range src {
		if sm, ok := v.(document); ok {
			if dm, ok := dst[k].(document); ok {
				mergeInto(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
}

func lookup(doc document, path string) any {
	var cur any = doc
	for _, p := range splitPath(path) {
		m, ok := cur.(document)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

// assign sets the value at path, creating intermediate objects.
func assign(doc document, path string, v any) {
	parts := splitPath(path)
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(document)
		if !ok {
			next = document{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func matches(doc document, path string, want any) (bool, error) {
	got := lookup(doc, path)
	if want == nil {
		return got == nil, nil
	}
	nw, err := normalize(want)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(got, nw), nil
}

func appendSet(doc document, path string, values []string) (int, error) {
	var arr []any
	switch cur := lookup(doc, path).(type) {
	case nil:
	case []any:
		arr = cur
	default:
		return 0, fmt.Errorf("field %q is %T, not an array", path, cur)
	}

	present := make(map[string]bool, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			present[s] = true
		}
	}
	added := 0
	for _, v := range values {
		if present[v] {
			continue
		}
		present[v] = true
		arr = append(arr, v)
		added++
	}
	if arr == nil {
		arr = []any{}
	}
	assign(doc, path, arr)
	return added, nil
}

func increment(doc document, path string, delta int) (int, error) {
	var cur float64
	switch v := lookup(doc, path).(type) {
	case nil:
	case float64:
		cur = v
	default:
		return 0, fmt.Errorf("field %q is %T, not a number", path, v)
	}
	next := int(cur) + delta
	assign(doc, path, float64(next))
	return next, nil
}
