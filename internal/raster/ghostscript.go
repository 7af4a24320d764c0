package raster

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/labelbridge/internal/config"
)

// Ghostscript rasterizes PostScript spool files, one PNG per page, by
// invoking the external gs binary. It is treated as a black box: a non-zero
// exit aborts the whole job.
type Ghostscript struct {
	Bin     string
	DPI     int
	Timeout time.Duration
}

// NewGhostscript builds a Ghostscript rasterizer from config.
func NewGhostscript(cfg config.RasterConfig) *Ghostscript {
	return &Ghostscript{Bin: cfg.GhostscriptBin, DPI: cfg.DPI, Timeout: cfg.Timeout}
}

// IsAvailable checks that the gs binary is on PATH.
func (g *Ghostscript) IsAvailable() bool {
	_, err := exec.LookPath(g.Bin)
	return err == nil
}

// Rasterize renders every page of the PostScript file into a scratch
// directory and returns the ordered page sequence plus header metadata.
func (g *Ghostscript) Rasterize(ctx context.Context, srcPath string) (*Document, error) {
	dir, err := os.MkdirTemp("", "labelbridge-pages-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, g.Bin,
		"-q", "-dSAFER", "-dBATCH", "-dNOPAUSE",
		fmt.Sprintf("-r%d", g.DPI),
		"-sDEVICE=png16m",
		fmt.Sprintf("-sOutputFile=%s", filepath.Join(dir, "page_%03d.png")),
		srcPath,
	)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("ghostscript command")

	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("ghostscript failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "page_*.png"))
	if err != nil || len(matches) == 0 {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("ghostscript produced no pages for %s", srcPath)
	}
	sort.Strings(matches)

	doc := &Document{dir: dir}
	for i, m := range matches {
		doc.Pages = append(doc.Pages, Page{Index: i + 1, Path: m})
	}
	doc.Meta = readPSHeader(srcPath)

	log.Info().
		Int("pages", len(doc.Pages)).
		Int("dpi", g.DPI).
		Dur("duration", time.Since(start)).
		Str("title", doc.Meta.Title).
		Msg("rasterized postscript document")
	return doc, nil
}

// readPSHeader pulls %%Title / %%For / %%Creator out of the first lines of
// the DSC header. Not every producer writes these; missing fields stay empty.
func readPSHeader(path string) Metadata {
	var meta Metadata
	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for i := 0; i < 20 && sc.Scan(); i++ {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "%%Title: "):
			meta.Title = strings.TrimSpace(strings.TrimPrefix(line, "%%Title: "))
		case strings.HasPrefix(line, "%%For: "):
			meta.Author = strings.TrimSpace(strings.TrimPrefix(line, "%%For: "))
		case strings.HasPrefix(line, "%%Creator: "):
			creator := strings.TrimSpace(strings.TrimPrefix(line, "%%Creator: "))
			if i := strings.Index(creator, ": "); i > 0 {
				creator = creator[:i]
			}
			meta.Application = creator
		}
	}
	return meta
}
