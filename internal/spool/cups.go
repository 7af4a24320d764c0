package spool

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/labelbridge/internal/config"
	"github.com/local/labelbridge/internal/metrics"
	"github.com/local/labelbridge/internal/pipeline"
)

// CUPS submits composited images to named printer queues through the lp
// command. The image is staged as a temporary PNG that is removed after the
// submission, success or not.
type CUPS struct {
	bin     string
	media   string
	copies  int
	timeout time.Duration
}

// NewCUPS builds a spooler from config.
func NewCUPS(cfg config.SpoolConfig) *CUPS {
	copies := cfg.Copies
	if copies <= 0 {
		copies = 1
	}
	return &CUPS{bin: cfg.LpBin, media: cfg.Media, copies: copies, timeout: cfg.Timeout}
}

// IsAvailable checks that the lp binary is on PATH.
func (c *CUPS) IsAvailable() bool {
	_, err := exec.LookPath(c.bin)
	return err == nil
}

// Submit spools one routed output. A failure here is reported to the caller
// but does not undo outputs already routed for the same job.
func (c *CUPS) Submit(ctx context.Context, out pipeline.RoutedOutput) error {
	tmp, err := os.CreateTemp("", "labelbridge-print-*.png")
	if err != nil {
		return fmt.Errorf("create print temp file: %w", err)
	}
	path := tmp.Name()
	defer c.cleanup(path)

	if err := png.Encode(tmp, out.Image); err != nil {
		tmp.Close()
		return fmt.Errorf("encode print png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close print temp file: %w", err)
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	title := fmt.Sprintf("%s-p%d-%s", out.JobID, out.Page, out.Region)
	cmd := exec.CommandContext(ctx, c.bin,
		"-d", out.Queue,
		"-t", title,
		"-n", strconv.Itoa(c.copies),
		"-o", "media="+c.media,
		path,
	)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("lp command")

	if outB, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("lp submit to %q failed: %w: %s", out.Queue, err, strings.TrimSpace(string(outB)))
	}

	log.Debug().Str("queue", out.Queue).Str("title", title).Msg("submitted to print queue")
	return nil
}

// cleanup removes the staged file. Removal failure is housekeeping, not a
// print failure: the output already left for the queue.
func (c *CUPS) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		metrics.IncCleanupFailure()
		log.Warn().Err(err).Str("file", path).Msg("failed to remove print temp file")
	}
}
