package memory

import (
	"cmp"
	"strings"
	"time"

	"github.com/Salle79/Litium/services/search/internal/esquery"
)

// sortKey is the value a hit is ordered by for one sort clause. Missing keys
// sort last in either direction unless the clause places them first.
type sortKey struct {
	missing bool
	first   bool
	numeric bool
	num     float64
	str     string
}

func sortKeyOf(h *hit, s esquery.Sort) sortKey {
	if s.Field == esquery.ScoreField {
		return sortKey{numeric: true, num: h.score}
	}

	root := rootScope(h.doc.source)
	var values []any
	if s.Nested != nil {
		for _, n := range root.nested(s.Nested.Path) {
			if s.Nested.Filter != nil {
				if ok, _ := evaluate(s.Nested.Filter, n); !ok {
					continue
				}
			}
			values = append(values, n.values(s.Field)...)
		}
	} else {
		values = root.values(s.Field)
	}

	if len(values) == 0 {
		switch s.Missing {
		case nil, esquery.MissingLast:
			return sortKey{missing: true}
		case esquery.MissingFirst:
			return sortKey{missing: true, first: true}
		}
		return keyOf(s.Missing)
	}

	pickMax := s.Order == esquery.Desc && s.Mode != esquery.SortModeMin
	best := keyOf(values[0])
	for _, v := range values[1:] {
		k := keyOf(v)
		c := compareKeyValues(k, best)
		if (pickMax && c > 0) || (!pickMax && c < 0) {
			best = k
		}
	}
	return best
}

func keyOf(v any) sortKey {
	switch v := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return sortKey{numeric: true, num: float64(t.UnixNano())}
		}
		return sortKey{str: strings.ToLower(v)}
	case time.Time:
		return sortKey{numeric: true, num: float64(v.UnixNano())}
	}
	if f, ok := toFloat(v); ok {
		return sortKey{numeric: true, num: f}
	}
	return sortKey{str: normalize(v)}
}

func compareSortKeys(a, b sortKey, order esquery.Order) int {
	switch {
	case a.missing && b.missing:
		return 0
	case a.missing:
		if a.first {
			return -1
		}
		return 1
	case b.missing:
		if b.first {
			return 1
		}
		return -1
	}
	c := compareKeyValues(a, b)
	if order == esquery.Desc {
		return -c
	}
	return c
}

// compareKeyValues orders numeric keys before string keys.
func compareKeyValues(a, b sortKey) int {
	switch {
	case a.numeric && b.numeric:
		return cmp.Compare(a.num, b.num)
	case a.numeric:
		return -1
	case b.numeric:
		return 1
	default:
		return strings.Compare(a.str, b.str)
	}
}
