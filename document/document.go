package document

import (
	"sort"
	"strings"
)

// OutputsKey is the top-level document field under which listener
// outputs are stored. The full storage path of one listener's output is
// "_outputs.<id_key>.<model_identifier>.<model_version>".
const OutputsKey = "_outputs"

// Document is a single row of a collection, addressable by dotted
// paths into nested maps (Mongo-style).
type Document map[string]any

// Get resolves a dotted path like "_outputs.x.my-model" against the
// document. The second return value reports whether the path exists.
func (d Document) Get(path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = map[string]any(d)
	for _, p := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether a dotted path exists in the document.
func (d Document) Has(path string) bool {
	_, ok := d.Get(path)
	return ok
}

// Set writes a value at a dotted path, creating intermediate maps as
// needed. Intermediate non-map values are replaced.
func (d Document) Set(path string, value any) {
	parts := strings.Split(path, ".")
	cur := map[string]any(d)
	for _, p := range parts[:len(parts)-1] {
		next, ok := asMap(cur[p])
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// Keys returns the top-level keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MergeOutputs merges precomputed outputs under the "_outputs" field,
// overriding entries that are already present.
func (d Document) MergeOutputs(outputs map[string]any) {
	if len(outputs) == 0 {
		return
	}
	existing, ok := asMap(d[OutputsKey])
	if !ok {
		existing = map[string]any{}
		d[OutputsKey] = existing
	}
	for k, v := range outputs {
		existing[k] = v
	}
}

// Copy returns a deep copy of the document. Nested maps and slices are
// copied too, so writes through the original never reach the copy.
func (d Document) Copy() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Copy()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return map[string]any(m), true
	default:
		return nil, false
	}
}
