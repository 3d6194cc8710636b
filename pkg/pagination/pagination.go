package pagination

import (
	"fmt"
	"net/url"
	"strconv"
)

// Page size limits.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params is a requested page. The zero value means the first page of
// DefaultPerPage items.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Normalize returns p with the page moved to at least 1 and the page size
// defaulted and capped at MaxPerPage.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PerPage < 1:
		p.PerPage = DefaultPerPage
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset is the number of items before the page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

// FromValues reads the page and per_page query parameters. Absent
// parameters stay zero; present ones must be positive integers.
func FromValues(v url.Values) (Params, error) {
	var p Params
	for _, f := range []struct {
		key string
		dst *int
	}{
		{"page", &p.Page},
		{"per_page", &p.PerPage},
	} {
		s := v.Get(f.key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Params{}, fmt.Errorf("%s must be a positive integer", f.key)
		}
		*f.dst = n
	}
	return p, nil
}

// Info describes where a page sits in a result of total items.
type Info struct {
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Describe computes Info for p over total items.
func Describe(total int, p Params) Info {
	p = p.Normalize()
	pages := 0
	if total > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return Info{
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
