package cbor

import mapset "github.com/deckarep/golang-set/v2"

// Set is the decoded form of tag 258 (RFC 8949 §3.4.9 / draft-ietf-cbor-
// tags-set): an array of items with set semantics. Items are kept in
// decode order; no deduplication is performed, since CBOR items are not
// necessarily Go-comparable.
type Set struct {
	Items []any
}

// AsGoSet renders the set as a mapset.Set[any], for callers who want
// membership/union/intersection operations rather than an ordered slice.
// Items that are not comparable (slices, maps, *Map, *Set) are skipped.
func (s *Set) AsGoSet() mapset.Set[any] {
	out := mapset.NewThreadUnsafeSet[any]()
	for _, item := range s.Items {
		if isComparable(item) {
			out.Add(item)
		}
	}
	return out
}

// NewSetFromGoSet builds a Set from a mapset.Set[any], in unspecified
// iteration order (mapset does not track insertion order).
func NewSetFromGoSet(s mapset.Set[any]) *Set {
	out := &Set{Items: make([]any, 0, s.Cardinality())}
	for item := range s.Iter() {
		out.Items = append(out.Items, item)
	}
	return out
}

func isComparable(v any) bool {
	switch v.(type) {
	case []byte, []any, *Map, *Set, *TypedArray:
		return false
	default:
		return true
	}
}
