package raster

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // scanned-label uploads arrive as JPEG
	"image/png"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/local/labelbridge/internal/config"
	"github.com/local/labelbridge/internal/filetype"
)

// Page is one rasterized page persisted as a temporary PNG file. A page is
// exclusively owned by the pipeline iteration that processes it and must be
// released at the end of that iteration, whatever the outcome.
type Page struct {
	Index int
	Path  string
}

// Load decodes the page image from its temporary file.
func (p Page) Load() (image.Image, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open page %d: %w", p.Index, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode page %d: %w", p.Index, err)
	}
	return img, nil
}

// Release deletes the page's temporary file. Failure to remove it is
// best-effort housekeeping, logged and never escalated.
func (p Page) Release() {
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Int("page", p.Index).Str("file", p.Path).Msg("failed to remove page temp file")
	}
}

// Metadata is what the PostScript header tells us about the spool job.
type Metadata struct {
	Title       string
	Author      string
	Application string
}

// Document is an ordered sequence of rasterized pages plus any header
// metadata. Close removes the scratch directory after the per-page releases.
type Document struct {
	Pages []Page
	Meta  Metadata

	dir string
}

// Close removes the document's scratch directory and anything left in it.
func (d *Document) Close() {
	if d.dir == "" {
		return
	}
	if err := os.RemoveAll(d.dir); err != nil {
		log.Warn().Err(err).Str("dir", d.dir).Msg("failed to remove raster scratch dir")
	}
}

// Rasterizer turns one input document into a page sequence. Implementations
// invoke external renderers and are the job-aborting collaborators: if
// rasterization fails there is nothing to process.
type Rasterizer interface {
	Rasterize(ctx context.Context, srcPath string) (*Document, error)
}

// ForKind picks the rasterizer for a detected input kind.
func ForKind(kind filetype.Kind, cfg config.RasterConfig) (Rasterizer, error) {
	switch kind {
	case filetype.KindPostScript:
		return NewGhostscript(cfg), nil
	case filetype.KindPDF:
		return NewFitz(cfg), nil
	case filetype.KindImage:
		return passthrough{}, nil
	}
	return nil, fmt.Errorf("no rasterizer for input kind %q", kind)
}

// passthrough treats an already-raster input as a single-page document.
type passthrough struct{}

func (passthrough) Rasterize(ctx context.Context, srcPath string) (*Document, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	dir, err := os.MkdirTemp("", "labelbridge-pages-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	path := filepath.Join(dir, "page_001.png")
	if err := writePNG(path, img); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &Document{Pages: []Page{{Index: 1, Path: path}}, dir: dir}, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create page file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode page png: %w", err)
	}
	return nil
}
