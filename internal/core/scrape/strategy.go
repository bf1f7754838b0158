package scrape

import (
	"archive/zip"
	"compress/flate"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/cfbeg/NoteMagazineScraper/internal/infra/logx"
)

const assetExt = ".jpg"

// Strategy materializes one resolved item's assets to local storage.
// Implementations advance the progress counter once per persisted asset
// and must keep original-index numbering even when some assets fail.
type Strategy interface {
	Materialize(ctx context.Context, item ItemRecord, prog *Progress) error
}

// assetName numbers assets by their position in the resolved list. A
// failed asset leaves a hole; later assets are never renumbered, so names
// stay stable across resumed runs.
func assetName(idx int) string {
	return fmt.Sprintf("%03d%s", idx+1, assetExt)
}

// DirectoryStrategy writes one subdirectory per item with numbered image
// files, resumable at per-asset granularity through the fetcher's
// existence check.
type DirectoryStrategy struct {
	fs      afero.Fs
	fetcher *Fetcher
	baseDir string
	naming  SanitizeOptions
}

func NewDirectoryStrategy(fs afero.Fs, fetcher *Fetcher, baseDir string, naming SanitizeOptions) *DirectoryStrategy {
	return &DirectoryStrategy{fs: fs, fetcher: fetcher, baseDir: baseDir, naming: naming}
}

func (s *DirectoryStrategy) Materialize(ctx context.Context, item ItemRecord, prog *Progress) error {
	dir := filepath.Join(s.baseDir, Sanitize(item.Title, s.naming))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for i, u := range item.Assets {
		dest := filepath.Join(dir, assetName(i))
		if err := s.fetcher.Download(ctx, u, dest); err != nil {
			logx.Warnf("item %q: asset %s skipped: %v", item.Title, u, err)
			continue
		}
		prog.Advance(1)
	}
	return nil
}

// ArchiveStrategy writes one zip archive per item, assets streamed
// straight into it at maximum compression. Resume is item-granular: an
// existing archive is trusted wholesale.
type ArchiveStrategy struct {
	fs      afero.Fs
	fetcher *Fetcher
	baseDir string
	naming  SanitizeOptions
}

func NewArchiveStrategy(fs afero.Fs, fetcher *Fetcher, baseDir string, naming SanitizeOptions) *ArchiveStrategy {
	return &ArchiveStrategy{fs: fs, fetcher: fetcher, baseDir: baseDir, naming: naming}
}

func (s *ArchiveStrategy) Materialize(ctx context.Context, item ItemRecord, prog *Progress) error {
	path := filepath.Join(s.baseDir, Sanitize(item.Title, s.naming)+".zip")
	if ok, err := afero.Exists(s.fs, path); err == nil && ok {
		logx.Infof("archive %s already exists, skipping item", path)
		prog.Advance(len(item.Assets))
		return nil
	}
	if err := s.fs.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.baseDir, err)
	}
	f, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for i, u := range item.Assets {
		// Archive members are write-once, so no existence pre-check here.
		b, err := s.fetcher.Bytes(ctx, u)
		if err != nil {
			logx.Warnf("item %q: asset %s skipped: %v", item.Title, u, err)
			continue
		}
		w, err := zw.Create(assetName(i))
		if err != nil {
			zw.Close()
			f.Close()
			return fmt.Errorf("archive %s: %w", path, err)
		}
		if _, err := w.Write(b); err != nil {
			zw.Close()
			f.Close()
			return fmt.Errorf("archive %s: %w", path, err)
		}
		prog.Advance(1)
	}

	// Finalize only after every asset has been attempted; entries that
	// failed to fetch are simply absent.
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return f.Close()
}
