package scrape

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cfbeg/NoteMagazineScraper/internal/infra/logx"
	"github.com/cfbeg/NoteMagazineScraper/internal/note"
)

// pageDelay is the pause between listing page fetches, on top of the
// transport's rate limiting.
const pageDelay = 100 * time.Millisecond

// SectionAPI is the slice of the note client the paginator needs.
type SectionAPI interface {
	MagazineSectionPage(ctx context.Context, key string, page int) (*note.MagazineSection, error)
}

// Paginator walks a magazine's section listing page by page.
type Paginator struct {
	api   SectionAPI
	clock note.Clock
	delay time.Duration
}

// NewPaginator creates a paginator with the default inter-page delay.
func NewPaginator(api SectionAPI) *Paginator {
	return &Paginator{api: api, clock: note.SystemClock(), delay: pageDelay}
}

// NewPaginatorWithClock creates a paginator with an injected clock (tests).
func NewPaginatorWithClock(api SectionAPI, clock note.Clock) *Paginator {
	return &Paginator{api: api, clock: clock, delay: pageDelay}
}

// Walk collects ContentRefs across all listing pages, starting at page 1.
// Any page-level failure stops discovery and returns what was collected so
// far; it never fails the run. An empty page terminates pagination even
// without the explicit last-page flag.
func (p *Paginator) Walk(ctx context.Context, magazineKey string) []ContentRef {
	var refs []ContentRef
	for page := 1; ; page++ {
		sec, err := p.api.MagazineSectionPage(ctx, magazineKey, page)
		if err != nil {
			logx.Warnf("magazine %s: page %d failed, stopping discovery: %v", magazineKey, page, err)
			return refs
		}
		if sec.Notes == nil {
			logx.Warnf("magazine %s: page %d carried no note list, stopping discovery", magazineKey, page)
			return refs
		}
		if len(sec.Notes) == 0 {
			return refs
		}
		for _, n := range sec.Notes {
			if n.NoteURL == "" {
				continue
			}
			refs = append(refs, ContentRef{
				URL:         appendMagazineKey(n.NoteURL, n.MagazineKey),
				MagazineKey: n.MagazineKey,
			})
		}
		if sec.IsLastPage {
			return refs
		}
		p.clock.Sleep(p.delay)
	}
}

// appendMagazineKey adds the collection-scoped key as a query parameter,
// joining with & when the URL already carries a query string.
func appendMagazineKey(noteURL, key string) string {
	if key == "" {
		return noteURL
	}
	sep := "?"
	if strings.Contains(noteURL, "?") {
		sep = "&"
	}
	return noteURL + sep + "magazine_key=" + url.QueryEscape(key)
}
