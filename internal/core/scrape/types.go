package scrape

// UntitledTitle is the placeholder used when a note's title cannot be
// resolved.
const UntitledTitle = "Untitled"

// ContentRef points at one note discovered in the magazine listing. URL
// already carries the magazine_key query parameter when the listing entry
// supplied one. Refs are emitted in listing order and never deduplicated.
type ContentRef struct {
	URL         string
	MagazineKey string
}

// ItemRecord is the resolved metadata of one note: display title plus the
// embedded image URLs in source order. Records with no assets are dropped
// before materialization.
type ItemRecord struct {
	Title  string
	Assets []string
}

// ProgressFunc reports materialization progress: assets done so far, the
// total discovered before materialization began, and the item currently
// being written.
type ProgressFunc func(done, total int, item string)

// Progress is the run-scoped counter of successfully materialized assets.
// It is monotonic and bounded above by the discovered total. The pipeline
// is sequential, so no locking is needed; a parallel caller would have to
// serialize Advance.
type Progress struct {
	done  int
	total int
	item  string
	fn    ProgressFunc
}

// NewProgress creates a progress counter over the given total. fn may be
// nil.
func NewProgress(total int, fn ProgressFunc) *Progress {
	return &Progress{total: total, fn: fn}
}

// SetItem records the item currently being materialized.
func (p *Progress) SetItem(title string) {
	p.item = title
	p.notify()
}

// Advance adds n successfully materialized assets, clamped to the total.
func (p *Progress) Advance(n int) {
	p.done += n
	if p.done > p.total {
		p.done = p.total
	}
	p.notify()
}

// Done returns the number of materialized assets so far.
func (p *Progress) Done() int { return p.done }

// Total returns the discovered asset total.
func (p *Progress) Total() int { return p.total }

func (p *Progress) notify() {
	if p.fn != nil {
		p.fn(p.done, p.total, p.item)
	}
}
