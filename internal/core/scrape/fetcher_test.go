package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAssetSource answers each call from a queue of bodies or errors.
type fakeAssetSource struct {
	queue []any // []byte or error
	calls int
}

func (f *fakeAssetSource) AssetBytes(_ context.Context, _ string) ([]byte, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.queue) {
		return nil, errors.New("queue exhausted")
	}
	if b, ok := f.queue[idx].([]byte); ok {
		return b, nil
	}
	return nil, f.queue[idx].(error)
}

func TestBytesSucceedsFirstAttempt(t *testing.T) {
	src := &fakeAssetSource{queue: []any{[]byte("img")}}
	clock := &fakeClock{}
	f := NewFetcherWithPolicy(src, afero.NewMemMapFs(), clock, 3, 500*time.Millisecond)

	b, err := f.Bytes(context.Background(), "https://assets.st-note.com/1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), b)
	assert.Equal(t, 1, src.calls)
	assert.Zero(t, clock.slept, "no backoff on immediate success")
}

func TestBytesRetriesThenSucceeds(t *testing.T) {
	src := &fakeAssetSource{queue: []any{
		errors.New("asset.get status 503"),
		errors.New("asset.get status 503"),
		[]byte("img"),
	}}
	clock := &fakeClock{}
	f := NewFetcherWithPolicy(src, afero.NewMemMapFs(), clock, 3, 500*time.Millisecond)

	b, err := f.Bytes(context.Background(), "https://assets.st-note.com/1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), b)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, 2*500*time.Millisecond, clock.slept, "fixed wait before each retry")
}

func TestBytesExhaustsRetries(t *testing.T) {
	src := &fakeAssetSource{queue: []any{
		errors.New("boom"), errors.New("boom"), errors.New("boom"), errors.New("boom"),
	}}
	clock := &fakeClock{}
	f := NewFetcherWithPolicy(src, afero.NewMemMapFs(), clock, 3, 500*time.Millisecond)

	_, err := f.Bytes(context.Background(), "https://assets.st-note.com/1.jpg")
	require.Error(t, err)
	assert.Equal(t, 3, src.calls, "exactly maxRetries attempts")
	assert.Equal(t, 2*500*time.Millisecond, clock.slept, "no wait after the final failure")
}

func TestDownloadWritesFile(t *testing.T) {
	src := &fakeAssetSource{queue: []any{[]byte("img")}}
	fs := afero.NewMemMapFs()
	f := NewFetcherWithPolicy(src, fs, &fakeClock{}, 3, 0)

	require.NoError(t, f.Download(context.Background(), "https://assets.st-note.com/1.jpg", "out/001.jpg"))
	got, err := afero.ReadFile(fs, "out/001.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), got)
}

func TestDownloadIdempotent(t *testing.T) {
	src := &fakeAssetSource{queue: []any{[]byte("img")}}
	fs := afero.NewMemMapFs()
	f := NewFetcherWithPolicy(src, fs, &fakeClock{}, 3, 0)

	require.NoError(t, f.Download(context.Background(), "https://assets.st-note.com/1.jpg", "out/001.jpg"))
	require.NoError(t, f.Download(context.Background(), "https://assets.st-note.com/1.jpg", "out/001.jpg"))
	assert.Equal(t, 1, src.calls, "second call must short-circuit on the existing file")
}

func TestDownloadFailureLeavesNoFile(t *testing.T) {
	src := &fakeAssetSource{queue: []any{errors.New("boom")}}
	fs := afero.NewMemMapFs()
	f := NewFetcherWithPolicy(src, fs, &fakeClock{}, 1, 0)

	require.Error(t, f.Download(context.Background(), "https://assets.st-note.com/1.jpg", "out/001.jpg"))
	ok, _ := afero.Exists(fs, "out/001.jpg")
	assert.False(t, ok)
}
