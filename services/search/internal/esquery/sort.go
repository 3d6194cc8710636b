package esquery

// ScoreField is the pseudo-field sorting by relevance score.
const ScoreField = "_score"

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// OrderOf returns Desc when descending is set, Asc otherwise.
func OrderOf(descending bool) Order {
	if descending {
		return Desc
	}
	return Asc
}

// SortModeMin picks the smallest value among multiple field values.
const SortModeMin = "min"

// Placement of documents without a sort value, for Sort.Missing.
const (
	MissingLast  = "_last"
	MissingFirst = "_first"
)

// NestedSort restricts a sort to nested objects under Path matching Filter.
type NestedSort struct {
	Path   string
	Filter Query
}

// Sort is one element of the backend sort array.
type Sort struct {
	Field   string
	Order   Order
	Mode    string
	Missing any
	Nested  *NestedSort
}

// FieldSort returns a plain sort on field.
func FieldSort(field string, order Order) Sort {
	return Sort{Field: field, Order: order}
}

// ScoreSort returns a descending relevance sort.
func ScoreSort() Sort {
	return Sort{Field: ScoreField, Order: Desc}
}

func (s Sort) Source() map[string]any {
	body := map[string]any{"order": string(s.Order)}
	if s.Mode != "" {
		body["mode"] = s.Mode
	}
	if s.Missing != nil {
		body["missing"] = s.Missing
	}
	if s.Nested != nil {
		nested := map[string]any{"path": s.Nested.Path}
		if s.Nested.Filter != nil {
			nested["filter"] = s.Nested.Filter.Source()
		}
		body["nested"] = nested
	}
	return map[string]any{s.Field: body}
}
