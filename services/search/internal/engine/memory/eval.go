package memory

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Salle79/Litium/services/search/internal/esquery"
)

const keywordSuffix = ".keyword"

// scope is the view a query is evaluated against: a whole document, or one
// nested object of it. Fields under the nested path resolve against the
// object, all other fields against the document.
type scope struct {
	root   map[string]any
	path   string
	object map[string]any
}

func rootScope(source map[string]any) scope {
	return scope{root: source}
}

func (s scope) values(field string) []any {
	field = strings.TrimSuffix(field, keywordSuffix)
	if s.path != "" && strings.HasPrefix(field, s.path+".") {
		return lookup(s.object, strings.TrimPrefix(field, s.path+"."))
	}
	return lookup(s.root, field)
}

func (s scope) nested(path string) []scope {
	var out []scope
	for _, v := range lookup(s.root, path) {
		if obj, ok := v.(map[string]any); ok {
			out = append(out, scope{root: s.root, path: path, object: obj})
		}
	}
	return out
}

func (s scope) hasValue(field string, want any) bool {
	key := normalize(want)
	for _, v := range s.values(field) {
		if normalize(v) == key {
			return true
		}
	}
	return false
}

// lookup resolves a dotted path, flattening arrays on the way.
func lookup(obj map[string]any, field string) []any {
	head, rest, more := strings.Cut(field, ".")
	v, ok := obj[head]
	if !ok || v == nil {
		return nil
	}
	if !more {
		return flatten(v)
	}
	var out []any
	for _, item := range flatten(v) {
		if child, ok := item.(map[string]any); ok {
			out = append(out, lookup(child, rest)...)
		}
	}
	return out
}

func flatten(v any) []any {
	arr, ok := v.([]any)
	if !ok {
		return []any{v}
	}
	out := make([]any, 0, len(arr))
	for _, item := range arr {
		if item != nil {
			out = append(out, flatten(item)...)
		}
	}
	return out
}

// evaluate reports whether q matches s and the relevance score it
// contributes. Exact-value clauses score zero.
func evaluate(q esquery.Query, s scope) (bool, float64) {
	switch q := q.(type) {
	case nil, *esquery.MatchAllQuery:
		return true, 1
	case *esquery.TermQuery:
		return s.hasValue(q.Field, q.Value), 0
	case *esquery.TermsQuery:
		for _, v := range q.Values {
			if s.hasValue(q.Field, v) {
				return true, 0
			}
		}
		return false, 0
	case *esquery.RangeQuery:
		return inRange(s.values(q.Field), q), 0
	case *esquery.MatchQuery:
		score := matchScore(s.values(q.Field), q)
		return score > 0, score
	case *esquery.NestedQuery:
		var (
			matched bool
			best    float64
		)
		for _, n := range s.nested(q.Path) {
			if ok, score := evaluate(q.Query, n); ok {
				matched = true
				best = max(best, score)
			}
		}
		return matched, best
	case *esquery.BoolQuery:
		return evaluateBool(q, s)
	default:
		return false, 0
	}
}

func evaluateBool(q *esquery.BoolQuery, s scope) (bool, float64) {
	if q.Empty() {
		return true, 1
	}

	var score float64
	for _, c := range q.MustClauses {
		ok, sc := evaluate(c, s)
		if !ok {
			return false, 0
		}
		score += sc
	}
	for _, c := range q.FilterClauses {
		if ok, _ := evaluate(c, s); !ok {
			return false, 0
		}
	}

	matchedShould := 0
	for _, c := range q.ShouldClauses {
		if ok, sc := evaluate(c, s); ok {
			matchedShould++
			score += sc
		}
	}
	minShould := q.MinimumShouldMatch
	if minShould == 0 && len(q.MustClauses) == 0 && len(q.FilterClauses) == 0 {
		minShould = 1
	}
	if matchedShould < minShould {
		return false, 0
	}
	return true, score
}

func inRange(values []any, q *esquery.RangeQuery) bool {
	for _, v := range values {
		if withinBound(v, q.Gt, func(c int) bool { return c > 0 }) &&
			withinBound(v, q.Gte, func(c int) bool { return c >= 0 }) &&
			withinBound(v, q.Lt, func(c int) bool { return c < 0 }) &&
			withinBound(v, q.Lte, func(c int) bool { return c <= 0 }) {
			return true
		}
	}
	return false
}

func withinBound(value, bound any, ok func(int) bool) bool {
	if bound == nil {
		return true
	}
	c, comparable := compareValue(value, bound)
	return comparable && ok(c)
}

func compareValue(value, bound any) (int, bool) {
	if t, ok := bound.(time.Time); ok {
		vt, ok := toTime(value)
		if !ok {
			return 0, false
		}
		return vt.Compare(t), true
	}
	bf, bok := toFloat(bound)
	vf, vok := toFloat(value)
	if bok && vok {
		return cmp.Compare(vf, bf), true
	}
	return strings.Compare(normalize(value), normalize(bound)), true
}

// matchScore is the boost times the number of query tokens found in the
// field, allowing the configured number of edits per token.
func matchScore(values []any, q *esquery.MatchQuery) float64 {
	var fieldTokens []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			fieldTokens = append(fieldTokens, tokenize(s)...)
		}
	}
	if len(fieldTokens) == 0 {
		return 0
	}

	boost := q.Boost
	if boost == 0 {
		boost = 1
	}

	var score float64
	for _, qt := range tokenize(q.Text) {
		edits := maxEdits(qt, q.Fuzziness)
		for _, ft := range fieldTokens {
			if qt == ft || (edits > 0 && levenshtein(qt, ft) <= edits) {
				score += boost
				break
			}
		}
	}
	return score
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func maxEdits(token, fuzziness string) int {
	switch fuzziness {
	case "":
		return 0
	case esquery.FuzzinessAuto:
		switch n := utf8.RuneCountInString(token); {
		case n <= 2:
			return 0
		case n <= 5:
			return 1
		default:
			return 2
		}
	default:
		n, err := strconv.Atoi(fuzziness)
		if err != nil {
			return 0
		}
		return n
	}
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// normalize renders a scalar the way it is compared for exact matches.
func normalize(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}
