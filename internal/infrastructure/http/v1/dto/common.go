// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pharmaledger/internal/core/types"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date. It accepts "2006-01-02" or RFC 3339 and writes "2006-01-02".
type Date struct {
	time.Time
}

// NewDate returns nil for a nil time.
func NewDate(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	return &Date{Time: types.Date(*t)}
}

// Ptr returns the date as a time pointer, nil for a nil Date.
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := types.Date(d.Time)
	return &t
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	d.Time = types.Date(t)
	return nil
}

// Text holds a JSON string or number as text, so loosely typed inputs such as
// "20", 20 and 20.0 reach the parser unchanged.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected a string or number: %w", err)
		}
		*t = Text(n.String())
	}
	return nil
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int   `json:"page"`
	Pages   int   `json:"pages"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

// NewPagination derives page numbers from a limit/offset window.
func NewPagination(total int64, limit, offset int) Pagination {
	if limit <= 0 {
		limit = 1
	}
	page := offset/limit + 1
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		Page:    page,
		Pages:   pages,
		PerPage: limit,
		Total:   total,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// PageQuery is the common paging query string.
type PageQuery struct {
	Page    int `form:"page"`
	PerPage int `form:"per_page"`
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// MessageResponse for operations without data.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
