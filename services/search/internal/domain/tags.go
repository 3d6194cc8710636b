package domain

import (
	"sort"
	"strings"
)

// TagFilters maps a tag name to the set of selected values. Values within one
// tag are ORed, tags are ANDed.
type TagFilters map[string][]string

// Active reports whether at least one tag has a selected value.
func (t TagFilters) Active() bool {
	for _, values := range t {
		if len(values) > 0 {
			return true
		}
	}
	return false
}

// Names returns the tag names with at least one selected value, sorted.
func (t TagFilters) Names() []string {
	names := make([]string, 0, len(t))
	for name, values := range t {
		if len(values) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is present, regardless of its values.
func (t TagFilters) Has(name string) bool {
	_, ok := t[name]
	return ok
}

// Selected reports whether value is selected for the tag, ignoring case.
func (t TagFilters) Selected(name, value string) bool {
	for _, v := range t[name] {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// Clone returns a copy that can be modified without touching t.
func (t TagFilters) Clone() TagFilters {
	out := make(TagFilters, len(t)+1)
	for name, values := range t {
		out[name] = append([]string(nil), values...)
	}
	return out
}

// Without returns a copy of t minus the named tag, matched ignoring case.
func (t TagFilters) Without(name string) TagFilters {
	out := t.Clone()
	for key := range out {
		if strings.EqualFold(key, name) {
			delete(out, key)
		}
	}
	return out
}

// With returns a copy of t with value added to the named tag.
func (t TagFilters) With(name, value string) TagFilters {
	out := t.Clone()
	if !t.Selected(name, value) {
		out[name] = append(out[name], value)
	}
	return out
}
