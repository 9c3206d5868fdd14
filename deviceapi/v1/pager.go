package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"

	"accessadmin.com/accessadmin/deviceapi/v1/common"
)

// decodeFunc validates one raw record of a page.
type decodeFunc[T any] func(raw json.RawMessage) (T, error)

// Pager walks a paginated list endpoint one page at a time. A page is only
// requested by NextPage, so a consumer that stops early costs no further
// requests.
type Pager[T any] struct {
	transport *Transport
	path      string
	query     url.Values
	pageSize  int
	decode    decodeFunc[T]

	page      int
	morePages bool
	firstPage bool
}

func newPager[T any](t *Transport, path string, query url.Values, pageSize int, decode decodeFunc[T]) *Pager[T] {
	if query == nil {
		query = url.Values{}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager[T]{
		transport: t,
		path:      path,
		query:     query,
		pageSize:  pageSize,
		decode:    decode,
		firstPage: true,
	}
}

// HasMorePages reports whether NextPage may return further records.
func (p *Pager[T]) HasMorePages() bool {
	return p.firstPage || p.morePages
}

// NextPage fetches the next page. Records failing validation are returned as
// *MalformedError entries in errs alongside the valid records, in page order
// (errs[i] belongs to the i-th raw record; nil for valid ones).
func (p *Pager[T]) NextPage(ctx context.Context) ([]T, []error, error) {
	if !p.HasMorePages() {
		return nil, nil, fmt.Errorf("no more pages")
	}

	q := url.Values{}
	for k, v := range p.query {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(p.page+1))
	q.Set("page_size", strconv.Itoa(p.pageSize))

	resp, err := p.transport.Get(ctx, p.path, q)
	if err != nil {
		return nil, nil, err
	}

	var envelope common.ListResponse
	if err := json.Unmarshal(resp.Data, &envelope); err != nil {
		return nil, nil, &RemoteError{Method: http.MethodGet, Path: p.path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode page: %w", err)}
	}
	if err := validate.Struct(&envelope); err != nil {
		return nil, nil, &RemoteError{Method: http.MethodGet, Path: p.path, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid page: %w", err)}
	}

	p.firstPage = false
	p.page++
	p.morePages = envelope.HasNext() && len(envelope.Data) > 0

	items := make([]T, len(envelope.Data))
	errs := make([]error, len(envelope.Data))
	for i, raw := range envelope.Data {
		items[i], errs[i] = p.decode(raw)
	}
	return items, errs, nil
}

// All returns a lazy sequence over every record. Each range over the sequence
// starts again from the first page. A malformed record is yielded as a
// *MalformedError and iteration continues; a failed page fetch is yielded
// once and ends the sequence.
func (p *Pager[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		run := newPager(p.transport, p.path, p.query, p.pageSize, p.decode)
		for run.HasMorePages() {
			items, errs, err := run.NextPage(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for i := range items {
				if !yield(items[i], errs[i]) {
					return
				}
			}
		}
	}
}

// Collect gathers up to limit valid records (all when limit <= 0), skipping
// malformed ones.
func (p *Pager[T]) Collect(ctx context.Context, limit int) ([]T, error) {
	var out []T
	for item, err := range p.All(ctx) {
		if err != nil {
			var malformed *MalformedError
			if errors.As(err, &malformed) {
				continue
			}
			return out, err
		}
		out = append(out, item)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
