package note

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func testClient(srv *httptest.Server) *Client {
	opts := TransportOptions{
		RetryMax:   0,
		Clock:      newFakeClock(),
		Metrics:    NewMetrics(),
		HostLimits: map[string]Limit{},
	}
	return NewWithOptions(srv.URL+"/api", opts)
}

func TestMagazineSectionPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/layout/magazine/mag123/section" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
		fmt.Fprint(w, `{"data":{"magazine_notes":[
			{"note_url":"https://note.com/u/n/aaa","magazine_key":"mag123"},
			{"note_url":"https://note.com/u/n/bbb"}
		],"is_last_page":true}}`)
	}))
	defer srv.Close()

	sec, err := testClient(srv).MagazineSectionPage(context.Background(), "mag123", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sec.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(sec.Notes))
	}
	if sec.Notes[0].MagazineKey != "mag123" || sec.Notes[1].MagazineKey != "" {
		t.Fatalf("unexpected keys: %+v", sec.Notes)
	}
	if !sec.IsLastPage {
		t.Fatal("expected is_last_page to be honored")
	}
}

func TestMagazineSectionPageMissingList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	sec, err := testClient(srv).MagazineSectionPage(context.Background(), "m", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sec.Notes != nil {
		t.Fatalf("expected nil note list for missing payload, got %v", sec.Notes)
	}
}

func TestMagazineSectionPageStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := testClient(srv).MagazineSectionPage(context.Background(), "m", 1); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestEmbedMetadata(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		fmt.Fprint(w, `{"data":{"title":"第3巻","structuredData":[
			{"@context":"https://schema.org","@type":"ImageObject","contentUrl":"https://assets.st-note.com/1.jpg"},
			{"@context":"https://schema.org","@type":"Person","contentUrl":"https://assets.st-note.com/x.jpg"},
			{"@context":"https://schema.org","@type":"ImageObject"},
			{"@context":"https://schema.org","@type":"ImageObject","contentUrl":"https://assets.st-note.com/2.jpg"}
		]}}`)
	}))
	defer srv.Close()

	key := url.PathEscape("https://note.com/u/n/aaa?magazine_key=m")
	meta, err := testClient(srv).EmbedMetadata(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Title != "第3巻" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	// Person entries and image entries without contentUrl are skipped,
	// order of the rest preserved.
	if len(meta.Images) != 2 || meta.Images[0] != "https://assets.st-note.com/1.jpg" || meta.Images[1] != "https://assets.st-note.com/2.jpg" {
		t.Fatalf("unexpected images: %v", meta.Images)
	}
	if gotPath != "/api/v2/embed/"+key {
		t.Fatalf("lookup key not passed as single path segment: %s", gotPath)
	}
}

func TestAssetBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("jpegbytes"))
	}))
	defer srv.Close()

	c := testClient(srv)
	b, err := c.AssetBytes(context.Background(), srv.URL+"/ok.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "jpegbytes" {
		t.Fatalf("unexpected body %q", b)
	}
	if _, err := c.AssetBytes(context.Background(), srv.URL+"/missing.jpg"); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.IncRequest("note.com")
	m.IncRequest("note.com")
	m.IncStatus(200)
	m.IncStatus(429)
	m.IncStatus(503)
	m.IncRetry()
	m.AddBackoff(250 * time.Millisecond)

	s := m.Snapshot()
	if s.TotalRequests != 2 || s.HostCounts["note.com"] != 2 {
		t.Fatalf("request counts wrong: %+v", s)
	}
	if s.Status2xx != 1 || s.Status429 != 1 || s.Status5xx != 1 {
		t.Fatalf("status buckets wrong: %+v", s)
	}
	if s.TotalRetries != 1 || s.TotalBackoffNanos != (250*time.Millisecond).Nanoseconds() {
		t.Fatalf("retry/backoff wrong: %+v", s)
	}
}
