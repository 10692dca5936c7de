package rest

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/opst/fleetdeck/pkg/api/types/documents"
)

// list parameters of the backend
const (
	paramDocumentType = "documentType"
	paramExpand       = "expand"
	paramCount        = "$count"
	paramFilter       = "$filter"
	paramLimit        = "$limit"
	paramOrderBy      = "$orderby"
)

// PageSize decides $limit of list requests.
type PageSize interface {
	// Limit returns the number of documents in a page. 0 or less means no limits.
	Limit() int
}

type fixed int

func (f fixed) Limit() int {
	return int(f)
}

// Fixed is a page size of n documents.
func Fixed(n int) PageSize {
	return fixed(n)
}

// Unlimited does not page lists.
func Unlimited() PageSize {
	return fixed(0)
}

// average footprint of a card in a list, in pixels.
const averageItemSize = 250

// Viewport estimates how many items fill a screen of width x height pixels.
type Viewport struct {
	Width  int
	Height int
}

func (v Viewport) Limit() int {
	if v.Width <= 0 || v.Height <= 0 {
		return 0
	}
	return int(math.Ceil(
		float64(v.Width) / averageItemSize * float64(v.Height) / averageItemSize,
	))
}

// encode query as the backend expects: spaces are %20.
func encodeQuery(q url.Values) string {
	return strings.ReplaceAll(q.Encode(), "+", "%20")
}

// paginationQuery builds query of a paged list request.
func (c *client) paginationQuery(filter string, count bool, orderBy string) url.Values {
	q := url.Values{}
	q.Set(paramDocumentType, "true")
	q.Set(paramCount, strconv.FormatBool(count))
	if limit := c.pageSize.Limit(); 0 < limit {
		q.Set(paramLimit, strconv.Itoa(limit))
	}
	if orderBy != "" {
		q.Set(paramOrderBy, orderBy)
	}
	if filter != "" {
		q.Set(paramFilter, filter)
	}
	return q
}

// page gets a page of documents.
func page[T any](ctx context.Context, c *client, factory string, q url.Values, messageFor MessageFor) (documents.List[T], error) {
	env, err := get[documents.Envelope](ctx, c, factory+"?"+encodeQuery(q), messageFor)
	if err != nil {
		return documents.List[T]{}, err
	}
	return documents.Decode[T](env)
}

// expanded lists all documents, expanded, without paging.
func expanded[T any](ctx context.Context, c *client, factory string, filter string, messageFor MessageFor) (documents.List[T], error) {
	q := url.Values{}
	q.Set(paramDocumentType, "true")
	q.Set(paramExpand, "true")
	if filter != "" {
		q.Set(paramFilter, filter)
	}
	return page[T](ctx, c, factory, q, messageFor)
}
