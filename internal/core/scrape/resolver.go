package scrape

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cfbeg/NoteMagazineScraper/internal/note"
)

// MetadataAPI is the slice of the note client the resolver needs.
type MetadataAPI interface {
	EmbedMetadata(ctx context.Context, lookupKey string) (*note.EmbedMeta, error)
}

// Resolver turns a ContentRef into an ItemRecord via the embed metadata
// endpoint.
type Resolver struct {
	api MetadataAPI
}

// NewResolver creates a resolver over the given metadata API.
func NewResolver(api MetadataAPI) *Resolver {
	return &Resolver{api: api}
}

// Resolve fetches the metadata record for one ref. On failure it returns a
// sentinel record alongside the error; the orchestrator logs the error and
// keeps the sentinel, so resolution failures never propagate.
func (r *Resolver) Resolve(ctx context.Context, ref ContentRef) (ItemRecord, error) {
	meta, err := r.api.EmbedMetadata(ctx, LookupKey(ref.URL))
	if err != nil {
		return ItemRecord{Title: UntitledTitle}, fmt.Errorf("resolve %s: %w", ref.URL, err)
	}
	title := meta.Title
	if title == "" {
		title = UntitledTitle
	}
	return ItemRecord{Title: title, Assets: meta.Images}, nil
}

// LookupKey builds the embed endpoint path segment for a note URL: the
// bare URL with exactly one magazine_key parameter re-appended (empty when
// the ref carried none), percent-encoded as a single segment.
func LookupKey(raw string) string {
	bare := raw
	magKey := ""
	if u, err := url.Parse(raw); err == nil {
		magKey = u.Query().Get("magazine_key")
		u.RawQuery = ""
		u.Fragment = ""
		bare = u.String()
	}
	return url.PathEscape(bare + "?magazine_key=" + magKey)
}
