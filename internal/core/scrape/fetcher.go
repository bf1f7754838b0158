package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/cfbeg/NoteMagazineScraper/internal/infra/logx"
	"github.com/cfbeg/NoteMagazineScraper/internal/note"
)

const (
	defaultRetryMax  = 3
	defaultRetryWait = 500 * time.Millisecond
)

// AssetSource is the slice of the note client the fetcher needs: one
// request, one body.
type AssetSource interface {
	AssetBytes(ctx context.Context, url string) ([]byte, error)
}

// Fetcher downloads binary assets with a fixed, bounded retry policy and
// idempotent resume on the local filesystem.
type Fetcher struct {
	src       AssetSource
	fs        afero.Fs
	clock     note.Clock
	retryMax  int
	retryWait time.Duration
}

// NewFetcher creates a fetcher with the default retry policy.
func NewFetcher(src AssetSource, fs afero.Fs) *Fetcher {
	return &Fetcher{
		src:       src,
		fs:        fs,
		clock:     note.SystemClock(),
		retryMax:  defaultRetryMax,
		retryWait: defaultRetryWait,
	}
}

// NewFetcherWithPolicy creates a fetcher with explicit retry bounds and
// clock (tests).
func NewFetcherWithPolicy(src AssetSource, fs afero.Fs, clock note.Clock, retryMax int, retryWait time.Duration) *Fetcher {
	if retryMax < 1 {
		retryMax = 1
	}
	return &Fetcher{src: src, fs: fs, clock: clock, retryMax: retryMax, retryWait: retryWait}
}

// Bytes fetches an asset body, retrying up to the configured bound with a
// fixed wait between failed attempts. No wait follows the last failure.
func (f *Fetcher) Bytes(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.retryMax; attempt++ {
		if attempt > 1 {
			f.clock.Sleep(f.retryWait)
		}
		b, err := f.src.AssetBytes(ctx, url)
		if err == nil {
			return b, nil
		}
		lastErr = err
		logx.Debugf("asset %s: attempt %d/%d failed: %v", url, attempt, f.retryMax, err)
	}
	return nil, fmt.Errorf("asset %s: %w", url, lastErr)
}

// Download writes an asset to dest. A file already present at dest counts
// as success without any network activity, which is what makes interrupted
// runs resumable.
func (f *Fetcher) Download(ctx context.Context, url, dest string) error {
	if ok, err := afero.Exists(f.fs, dest); err == nil && ok {
		logx.Debugf("asset %s already at %s, skipping", url, dest)
		return nil
	}
	b, err := f.Bytes(ctx, url)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(f.fs, dest, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
