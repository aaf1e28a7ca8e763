package document

import (
	"fmt"
	"sort"
	"strings"
)

// BaseKey is the sentinel key meaning "use the whole document" as the
// model input.
const BaseKey = "_base"

// outputsPrefix marks a key component that references another
// listener's output instead of raw data, in the form
// "_outputs.<key>.<model>".
const outputsPrefix = OutputsKey + "."

// KeyKind discriminates the shapes a listener key can take.
type KeyKind int

const (
	// SingleKey binds the model to one document field.
	SingleKey KeyKind = iota
	// KeySequence binds the model to an ordered list of fields,
	// passed positionally.
	KeySequence
	// KeyMapping binds the model to named fields, passed as named
	// inputs.
	KeyMapping
)

// Key is the field binding of a listener, resolved to one of the three
// shapes at construction time rather than re-examined on every access.
type Key struct {
	kind    KeyKind
	single  string
	seq     []string
	names   []string
	mapping map[string]string
}

// NewKey builds a single-field key.
func NewKey(k string) Key {
	return Key{kind: SingleKey, single: k}
}

// NewKeySequence builds an ordered multi-field key.
func NewKeySequence(ks ...string) Key {
	seq := make([]string, len(ks))
	copy(seq, ks)
	return Key{kind: KeySequence, seq: seq}
}

// NewKeyMapping builds a named multi-field key. Names are ordered
// lexicographically so that derived values (IDKey, extraction order)
// are deterministic.
func NewKeyMapping(m map[string]string) Key {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	mapping := make(map[string]string, len(m))
	for name, k := range m {
		mapping[name] = k
	}
	return Key{kind: KeyMapping, names: names, mapping: mapping}
}

// Kind returns the shape of the key.
func (k Key) Kind() KeyKind { return k.kind }

// IsZero reports whether the key was never set.
func (k Key) IsZero() bool {
	return k.kind == SingleKey && k.single == ""
}

// IsBase reports whether this is the "_base" sentinel key.
func (k Key) IsBase() bool {
	return k.kind == SingleKey && k.single == BaseKey
}

// Components returns the raw key strings in deterministic order.
func (k Key) Components() []string {
	switch k.kind {
	case SingleKey:
		return []string{k.single}
	case KeySequence:
		out := make([]string, len(k.seq))
		copy(out, k.seq)
		return out
	default:
		out := make([]string, 0, len(k.names))
		for _, name := range k.names {
			out = append(out, k.mapping[name])
		}
		return out
	}
}

// IDKey derives the deterministic short name used to namespace stored
// outputs: plain fields pass through, "_outputs.<key>.<model>"
// references collapse to "<key>", and multi-field keys join their
// components with commas.
func (k Key) IDKey() string {
	components := k.Components()
	parts := make([]string, len(components))
	for i, c := range components {
		parts[i] = componentIDKey(c)
	}
	return strings.Join(parts, ",")
}

func componentIDKey(key string) string {
	if strings.HasPrefix(key, outputsPrefix) {
		return strings.Split(key, ".")[1]
	}
	return key
}

// PresentIn reports whether every field this key needs exists in the
// document. The "_base" sentinel never matches here; it is handled as
// an explicit fallback by the caller.
func (k Key) PresentIn(d Document) bool {
	if k.IsBase() {
		return false
	}
	for _, c := range k.Components() {
		if !d.Has(c) {
			return false
		}
	}
	return true
}

// Extract pulls the model input out of a document: the bare field
// value for a single key, an ordered []any for a sequence, and a
// map[string]any of named inputs for a mapping. The "_base" sentinel
// yields the whole document.
func (k Key) Extract(d Document) (any, error) {
	if k.IsBase() {
		return d, nil
	}
	switch k.kind {
	case SingleKey:
		v, ok := d.Get(k.single)
		if !ok {
			return nil, fmt.Errorf("document: key %q not present", k.single)
		}
		return v, nil
	case KeySequence:
		out := make([]any, len(k.seq))
		for i, c := range k.seq {
			v, ok := d.Get(c)
			if !ok {
				return nil, fmt.Errorf("document: key %q not present", c)
			}
			out[i] = v
		}
		return out, nil
	default:
		out := make(map[string]any, len(k.names))
		for _, name := range k.names {
			v, ok := d.Get(k.mapping[name])
			if !ok {
				return nil, fmt.Errorf("document: key %q not present", k.mapping[name])
			}
			out[name] = v
		}
		return out, nil
	}
}

// String renders the key for error messages.
func (k Key) String() string {
	switch k.kind {
	case SingleKey:
		return k.single
	case KeySequence:
		return "[" + strings.Join(k.seq, " ") + "]"
	default:
		parts := make([]string, 0, len(k.names))
		for _, name := range k.names {
			parts = append(parts, name+":"+k.mapping[name])
		}
		return "{" + strings.Join(parts, " ") + "}"
	}
}

// OutputField returns the storage path for one listener's output:
// "_outputs.<idKey>.<model>.<version>".
func OutputField(idKey, model string, version int) string {
	return fmt.Sprintf("%s.%s.%s.%d", OutputsKey, idKey, model, version)
}

// ParseOutputRef splits a "_outputs.<key>.<model>" key component into
// its upstream key and model identifier. ok is false for components
// that do not reference an upstream output.
func ParseOutputRef(component string) (key, model string, ok bool) {
	if !strings.HasPrefix(component, outputsPrefix) {
		return "", "", false
	}
	parts := strings.Split(component, ".")
	if len(parts) < 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}
