package woocommerce

import "context"

// record is one list element: the decoded item, or why it could not be decoded.
type record[T any] struct {
	item T
	err  *RecordError
}

type pageFunc[T any] func(ctx context.Context, page int) ([]record[T], int, error)

// Pager walks a paginated list endpoint lazily, one page request at a time.
// A Pager is single use: once Next returns false it stays exhausted.
//
//	pager := client.ListProducts(q)
//	for pager.Next(ctx) {
//		if err := pager.RecordErr(); err != nil {
//			// this element was malformed, the rest of the page is fine
//			continue
//		}
//		product := pager.Item()
//	}
//	if err := pager.Err(); err != nil { ... }
type Pager[T any] struct {
	fetch     pageFunc[T]
	next      int
	current   int
	records   []record[T]
	idx       int
	item      T
	recordErr *RecordError
	err       error
	finished  bool
}

func newPager[T any](fetch pageFunc[T]) *Pager[T] {
	return &Pager[T]{fetch: fetch, next: 1}
}

// Next advances to the next record, fetching the following page when the
// buffered one is used up. It returns false when the list is exhausted or a
// page fetch failed; check Err to tell the two apart. A malformed element
// still advances the pager and is reported by RecordErr.
func (p *Pager[T]) Next(ctx context.Context) bool {
	for {
		if p.idx < len(p.records) {
			r := p.records[p.idx]
			p.item, p.recordErr = r.item, r.err
			p.idx++
			return true
		}
		if p.finished || p.err != nil {
			return false
		}

		p.current = p.next
		records, totalPages, err := p.fetch(ctx, p.current)
		if err != nil {
			p.err = err
			return false
		}

		p.next++
		p.records, p.idx = records, 0
		if len(records) == 0 || (totalPages > 0 && p.next > totalPages) {
			p.finished = true
		}
	}
}

// Item is the current record. It is the zero value when RecordErr is set.
func (p *Pager[T]) Item() T {
	return p.item
}

// RecordErr reports why the current element could not be decoded, or nil.
func (p *Pager[T]) RecordErr() *RecordError {
	return p.recordErr
}

func (p *Pager[T]) Err() error {
	return p.err
}

// Page is the number of the page most recently requested, the failing one
// when Err is set.
func (p *Pager[T]) Page() int {
	return p.current
}

// All drains the pager. A malformed element fails the whole list.
func (p *Pager[T]) All(ctx context.Context) ([]T, error) {
	var out []T
	for p.Next(ctx) {
		if err := p.RecordErr(); err != nil {
			return out, err
		}
		out = append(out, p.Item())
	}
	return out, p.Err()
}
