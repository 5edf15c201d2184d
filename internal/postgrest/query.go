package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Query is a declarative request against one table. Filters, ordering and
// paging accumulate on the builder; a terminal method sends it.
type Query struct {
	client     *Client
	table      string
	columns    string
	filters    []param
	order      []string
	offset     int
	limit      int
	onConflict string
}

type param struct {
	key, value string
}

func newQuery(c *Client, table string) *Query {
	return &Query{client: c, table: table, offset: -1, limit: -1}
}

// Select sets the column list, including embedded resources such as
// "*,products(name,brand)".
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

func (q *Query) Eq(column string, value any) *Query { return q.filter(column, "eq", value) }
func (q *Query) Neq(column string, value any) *Query { return q.filter(column, "neq", value) }
func (q *Query) Gte(column string, value any) *Query { return q.filter(column, "gte", value) }
func (q *Query) Lte(column string, value any) *Query { return q.filter(column, "lte", value) }
func (q *Query) Is(column string, value any) *Query { return q.filter(column, "is", value) }
func (q *Query) ILike(column, pattern string) *Query { return q.filter(column, "ilike", pattern) }

// In matches column against any of values.
func (q *Query) In(column string, values []string) *Query {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}
	q.filters = append(q.filters, param{column, "in.(" + strings.Join(quoted, ",") + ")"})
	return q
}

func (q *Query) Order(column string, desc bool) *Query {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.order = append(q.order, column+"."+dir)
	return q
}

// Range limits the result to rows [from, to], both inclusive.
func (q *Query) Range(from, to int) *Query {
	q.offset = from
	q.limit = to - from + 1
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// OnConflict names the unique key an Upsert resolves against.
func (q *Query) OnConflict(columns ...string) *Query {
	q.onConflict = strings.Join(columns, ",")
	return q
}

func (q *Query) filter(column, op string, value any) *Query {
	q.filters = append(q.filters, param{column, op + "." + fmt.Sprint(value)})
	return q
}

func (q *Query) encode(withSelect bool) string {
	var parts []string
	add := func(k, v string) {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}

	if withSelect {
		cols := q.columns
		if cols == "" {
			cols = "*"
		}
		add("select", cols)
	}
	for _, f := range q.filters {
		add(f.key, f.value)
	}
	if len(q.order) > 0 {
		add("order", strings.Join(q.order, ","))
	}
	if q.offset >= 0 {
		add("offset", strconv.Itoa(q.offset))
	}
	if q.limit >= 0 {
		add("limit", strconv.Itoa(q.limit))
	}
	if q.onConflict != "" {
		add("on_conflict", q.onConflict)
	}
	return strings.Join(parts, "&")
}

// returning selects the Prefer return mode; a nil dest needs no body back.
func returning(dest any) string {
	if dest == nil {
		return "return=minimal"
	}
	return "return=representation"
}

// Get decodes the matching rows into dest, which must point to a slice.
func (q *Query) Get(ctx context.Context, dest any) error {
	return q.client.do(ctx, request{
		method: http.MethodGet,
		table:  q.table,
		query:  q.encode(true),
	}, dest)
}

// GetOne decodes exactly one row into dest. Zero matches yield ErrNotFound.
func (q *Query) GetOne(ctx context.Context, dest any) error {
	return q.client.do(ctx, request{
		method: http.MethodGet,
		table:  q.table,
		query:  q.encode(true),
		single: true,
	}, dest)
}

// Insert writes body (a row or a slice of rows). When dest is non-nil the
// created rows are decoded into it.
func (q *Query) Insert(ctx context.Context, body, dest any) error {
	return q.client.do(ctx, request{
		method: http.MethodPost,
		table:  q.table,
		query:  q.encode(dest != nil),
		body:   body,
		prefer: []string{returning(dest)},
	}, dest)
}

// Upsert inserts body, resolving conflicts on the OnConflict key by merging
// into the existing row, or by skipping it when ignoreDuplicates is set.
func (q *Query) Upsert(ctx context.Context, body, dest any, ignoreDuplicates bool) error {
	resolution := "resolution=merge-duplicates"
	if ignoreDuplicates {
		resolution = "resolution=ignore-duplicates"
	}
	return q.client.do(ctx, request{
		method: http.MethodPost,
		table:  q.table,
		query:  q.encode(dest != nil),
		body:   body,
		prefer: []string{resolution, returning(dest)},
	}, dest)
}

// Update patches every row matching the filters with body.
func (q *Query) Update(ctx context.Context, body, dest any) error {
	return q.client.do(ctx, request{
		method: http.MethodPatch,
		table:  q.table,
		query:  q.encode(dest != nil),
		body:   body,
		prefer: []string{returning(dest)},
	}, dest)
}

// Delete removes every row matching the filters.
func (q *Query) Delete(ctx context.Context, dest any) error {
	return q.client.do(ctx, request{
		method: http.MethodDelete,
		table:  q.table,
		query:  q.encode(dest != nil),
		prefer: []string{returning(dest)},
	}, dest)
}

// quote wraps values holding PostgREST reserved characters in double quotes.
func quote(v string) string {
	if strings.ContainsAny(v, ",.:()\" \\") {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		return `"` + v + `"`
	}
	return v
}
