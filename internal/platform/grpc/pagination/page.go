// Package pagination normalizes list request parameters shared by the API
// surfaces.
package pagination

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOrderBy reports an order_by value the endpoint does not accept.
var ErrInvalidOrderBy = errors.New("invalid order_by")

// Config describes the paging rules of one list endpoint.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	// Orders maps each accepted order_by value to whether it sorts
	// descending.
	Orders       map[string]bool
	DefaultOrder string
}

// PageSize applies the default and cap to a requested page size. The result
// is always at least one.
func (c Config) PageSize(requested int) int {
	size := requested
	if size <= 0 {
		size = c.DefaultPageSize
	}
	if c.MaxPageSize > 0 && size > c.MaxPageSize {
		size = c.MaxPageSize
	}
	return max(size, 1)
}

// Order normalizes case and whitespace of orderBy and reports whether it
// sorts descending. An empty value selects DefaultOrder.
func (c Config) Order(orderBy string) (string, bool, error) {
	orderBy = strings.Join(strings.Fields(strings.ToLower(orderBy)), " ")
	if orderBy == "" {
		orderBy = c.DefaultOrder
	}
	descending, ok := c.Orders[orderBy]
	if !ok {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidOrderBy, orderBy)
	}
	return orderBy, descending, nil
}
