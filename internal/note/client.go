package note

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const apiBase = "https://note.com/api"

const (
	schemaContext   = "https://schema.org"
	typeImageObject = "ImageObject"
)

// Client talks to the note.com JSON API and asset CDN through the shared
// retrying, rate-limited transport.
type Client struct {
	http    *http.Client
	base    string
	metrics *Metrics
}

// New creates a client with transport defaults from the environment.
func New() *Client {
	return NewWithOptions(apiBase, DefaultTransportOptionsFromEnv())
}

// NewWithOptions creates a client against a custom base URL with custom
// transport options (tests).
func NewWithOptions(base string, opts TransportOptions) *Client {
	rt := NewRetryingLimiterTransport(opts)
	return &Client{
		http:    &http.Client{Transport: rt},
		base:    base,
		metrics: opts.Metrics,
	}
}

// Metrics returns the transport metrics collector, possibly nil.
func (c *Client) Metrics() *Metrics { return c.metrics }

// MagazineNote is one entry of a magazine section page.
type MagazineNote struct {
	NoteURL     string `json:"note_url"`
	MagazineKey string `json:"magazine_key"`
}

// MagazineSection is one page of a magazine's note listing. Notes is nil
// when the response carried no note list at all, as opposed to an empty
// (last) page.
type MagazineSection struct {
	Notes      []MagazineNote
	IsLastPage bool
}

type magazineSectionResp struct {
	Data *struct {
		MagazineNotes []MagazineNote `json:"magazine_notes"`
		IsLastPage    bool           `json:"is_last_page"`
	} `json:"data"`
}

// MagazineSectionPage fetches one listing page of the given magazine.
func (c *Client) MagazineSectionPage(ctx context.Context, key string, page int) (*MagazineSection, error) {
	u := fmt.Sprintf("%s/v1/layout/magazine/%s/section?page=%d", c.base, url.PathEscape(key), page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("magazine.section status %s", res.Status)
	}
	var payload magazineSectionResp
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Data == nil {
		return &MagazineSection{}, nil
	}
	return &MagazineSection{
		Notes:      payload.Data.MagazineNotes,
		IsLastPage: payload.Data.IsLastPage,
	}, nil
}

// EmbedMeta is the resolved metadata of one note: its display title and the
// embedded image URLs in source order.
type EmbedMeta struct {
	Title  string
	Images []string
}

type structuredEntry struct {
	Context    string `json:"@context"`
	Type       string `json:"@type"`
	ContentURL string `json:"contentUrl"`
}

type embedResp struct {
	Data struct {
		Title          string            `json:"title"`
		StructuredData []structuredEntry `json:"structuredData"`
	} `json:"data"`
}

// EmbedMetadata fetches the embed metadata record for an already
// percent-encoded lookup key.
func (c *Client) EmbedMetadata(ctx context.Context, lookupKey string) (*EmbedMeta, error) {
	u := c.base + "/v2/embed/" + lookupKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed.get status %s", res.Status)
	}
	var payload embedResp
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, err
	}
	meta := &EmbedMeta{Title: payload.Data.Title}
	for _, e := range payload.Data.StructuredData {
		if e.Context != schemaContext || e.Type != typeImageObject {
			continue
		}
		if e.ContentURL == "" {
			continue
		}
		meta.Images = append(meta.Images, e.ContentURL)
	}
	return meta, nil
}

// AssetBytes performs a single GET of a binary asset and returns its body.
func (c *Client) AssetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset.get status %s", res.Status)
	}
	return io.ReadAll(res.Body)
}
