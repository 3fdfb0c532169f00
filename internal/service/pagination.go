package service

import (
	"math"
	"strconv"
	"strings"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	minLimit     = 5
	maxLimit     = 50
)

// Pagination is a normalised page request.
type Pagination struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// NormalizePagination applies defaults to missing values, floors page at 1 and clamps limit
// into [5,50]. Page is capped so Offset never overflows.
func NormalizePagination(page, limit *int) Pagination {
	p := Pagination{Page: defaultPage, Limit: defaultLimit}
	if page != nil && *page > 1 {
		p.Page = *page
	}
	if limit != nil {
		p.Limit = *limit
		if p.Limit < minLimit {
			p.Limit = minLimit
		}
		if p.Limit > maxLimit {
			p.Limit = maxLimit
		}
	}
	if maxPage := math.MaxInt/p.Limit + 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

// TotalPages returns ceil(total/limit).
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// ParseIntParam parses a query value; blank or unparsable input yields nil.
func ParseIntParam(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}
