package raster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/labelbridge/internal/config"
)

// Fitz rasterizes PDF documents page by page with MuPDF. Some carriers ship
// return labels as PDF attachments instead of PostScript spool jobs.
type Fitz struct {
	DPI int
}

// NewFitz builds a PDF rasterizer from config.
func NewFitz(cfg config.RasterConfig) *Fitz {
	return &Fitz{DPI: cfg.DPI}
}

// Rasterize renders every PDF page at the configured DPI into a scratch
// directory. A pdfcpu page-count preflight rejects broken files before
// MuPDF touches them.
func (f *Fitz) Rasterize(ctx context.Context, srcPath string) (*Document, error) {
	count, err := api.PageCountFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("pdf page count failed: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("pdf has no pages: %s", srcPath)
	}

	doc, err := fitz.New(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	dir, err := os.MkdirTemp("", "labelbridge-pages-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	start := time.Now()
	out := &Document{dir: dir}
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			out.Close()
			return nil, err
		}
		// go-fitz uses 0-based indexing
		img, err := doc.ImageDPI(i, float64(f.DPI))
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("page_%03d.png", i+1))
		if err := writePNG(path, img); err != nil {
			out.Close()
			return nil, err
		}
		out.Pages = append(out.Pages, Page{Index: i + 1, Path: path})
	}

	log.Info().
		Int("pages", len(out.Pages)).
		Int("dpi", f.DPI).
		Dur("duration", time.Since(start)).
		Msg("rasterized pdf document")
	return out, nil
}
