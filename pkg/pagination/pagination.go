// Package pagination parses limit/offset query parameters and wraps list
// results in a common envelope.
package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrInvalid = errors.New("invalid pagination parameter")

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit and offset (or its alias skip). Missing values
// take defaults and limits above MaxLimit are clamped; anything that is
// not a non-negative integer is rejected.
func FromContext(c echo.Context) (Params, error) {
	p := Params{Limit: DefaultLimit}

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Params{}, fmt.Errorf("%w: limit must be a positive integer", ErrInvalid)
		}
		p.Limit = min(n, MaxLimit)
	}

	raw := c.QueryParam("offset")
	if raw == "" {
		raw = c.QueryParam("skip")
	}
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Params{}, fmt.Errorf("%w: offset must be a non-negative integer", ErrInvalid)
		}
		p.Offset = n
	}
	return p, nil
}

// Bind is FromContext for handlers: a bad parameter becomes a 400.
func Bind(c echo.Context) (Params, error) {
	p, err := FromContext(c)
	if err != nil {
		return Params{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return p, nil
}

func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// Page is the list envelope. Data is never null.
type Page[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
	NextOffset *int `json:"next_offset,omitempty"`
}

func NewPage[T any](items []T, total int, p Params) *Page[T] {
	if items == nil {
		items = []T{}
	}
	page := &Page[T]{
		Data:    items,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
	if page.HasMore {
		next := p.Offset + p.Limit
		page.NextOffset = &next
	}
	return page
}
