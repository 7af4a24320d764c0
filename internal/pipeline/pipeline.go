package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/labelbridge/internal/classify"
	"github.com/local/labelbridge/internal/compose"
	"github.com/local/labelbridge/internal/extract"
	"github.com/local/labelbridge/internal/geometry"
	"github.com/local/labelbridge/internal/metrics"
	"github.com/local/labelbridge/internal/raster"
)

// RoutedOutput pairs a composited image with the print queue it goes to.
// Consumed exactly once by the spooler.
type RoutedOutput struct {
	JobID     string
	Page      int
	LabelType geometry.LabelType
	Region    string // "label" or "info"
	Queue     string
	Image     *image.RGBA
}

// Spooler submits one routed output to a physical print queue.
type Spooler interface {
	Submit(ctx context.Context, out RoutedOutput) error
}

// Summary is what a job run reports back: every page accounted for, with
// per-page failures collected instead of propagated.
type Summary struct {
	Pages   int
	Routed  int
	Skipped int
	Errors  []*PageError
}

// Pipeline runs the per-page Classify -> Extract -> Compose -> Route flow.
// It holds only read-only state; each page's image, crops and outputs are
// owned by that page's iteration and never referenced afterwards.
type Pipeline struct {
	set        *geometry.Set
	canvas     compose.Canvas
	classifier *classify.Classifier
	spooler    Spooler
}

// New builds a pipeline over a validated profile set.
func New(set *geometry.Set, spooler Spooler) *Pipeline {
	return &Pipeline{
		set:        set,
		canvas:     compose.FromGeometry(set.Canvas),
		classifier: classify.New(set),
		spooler:    spooler,
	}
}

// Run processes pages strictly in document order, one at a time. A page that
// classifies Unknown is skipped; a page that fails is recorded and the job
// moves on — multi-page spool jobs routinely interleave label pages with
// cover and filing pages, and one bad page must not sink its siblings.
func (p *Pipeline) Run(ctx context.Context, jobID string, pages []raster.Page) (Summary, error) {
	sum := Summary{Pages: len(pages)}
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		routed, skipped, perr := p.processPage(ctx, jobID, page)
		sum.Routed += routed
		if skipped {
			sum.Skipped++
		}
		if perr != nil {
			log.Error().
				Str("job_id", jobID).
				Int("page", perr.Page).
				Str("label_type", perr.LabelType).
				Err(perr.Err).
				Msg("page processing failed")
			sum.Errors = append(sum.Errors, perr)
		}
	}
	log.Info().
		Str("job_id", jobID).
		Int("pages", sum.Pages).
		Int("routed", sum.Routed).
		Int("skipped", sum.Skipped).
		Int("failed", len(sum.Errors)).
		Msg("job pages processed")
	return sum, nil
}

// processPage owns one page from load to release. The page's temporary file
// is removed on every exit path: success, skip or failure.
func (p *Pipeline) processPage(ctx context.Context, jobID string, page raster.Page) (routed int, skipped bool, perr *PageError) {
	defer page.Release()

	img, err := page.Load()
	if err != nil {
		return 0, false, &PageError{Page: page.Index, Err: err}
	}

	start := time.Now()
	labelType := p.classifier.Classify(img)
	metrics.ObserveStage("classify", time.Since(start))
	metrics.PageClassified(string(labelType))

	if labelType == geometry.Unknown {
		log.Debug().Str("job_id", jobID).Int("page", page.Index).Msg("page matches no label profile, skipping")
		return 0, true, nil
	}

	start = time.Now()
	regions, err := extract.Extract(img, labelType, p.set)
	metrics.ObserveStage("extract", time.Since(start))
	if err != nil {
		return 0, false, &PageError{Page: page.Index, LabelType: string(labelType), Err: err}
	}

	profile := p.set.Profiles[labelType]
	outputs := []RoutedOutput{{
		JobID:     jobID,
		Page:      page.Index,
		LabelType: labelType,
		Region:    "label",
		Queue:     p.set.QueueFor(profile, false),
	}}
	sources := []image.Image{regions.Primary}
	if regions.Supplementary != nil {
		outputs = append(outputs, RoutedOutput{
			JobID:     jobID,
			Page:      page.Index,
			LabelType: labelType,
			Region:    "info",
			Queue:     p.set.QueueFor(profile, true),
		})
		sources = append(sources, regions.Supplementary)
	}

	// A submission failure is reported per output; sibling outputs of the
	// same page still go out.
	var firstErr error
	for i := range outputs {
		start = time.Now()
		outputs[i].Image = compose.Compose(sources[i], p.canvas)
		metrics.ObserveStage("compose", time.Since(start))

		start = time.Now()
		err := p.spooler.Submit(ctx, outputs[i])
		metrics.ObserveStage("route", time.Since(start))
		if err != nil {
			metrics.OutputRouted(outputs[i].Queue, "error")
			if firstErr == nil {
				firstErr = &CollaboratorError{Collaborator: "print-spooler", JobID: jobID, Page: page.Index, Err: err}
			}
			continue
		}
		metrics.OutputRouted(outputs[i].Queue, "ok")
		routed++
		log.Info().
			Str("job_id", jobID).
			Int("page", page.Index).
			Str("label_type", string(labelType)).
			Str("region", outputs[i].Region).
			Str("queue", outputs[i].Queue).
			Msg("output routed")
	}
	if firstErr != nil {
		return routed, false, &PageError{Page: page.Index, LabelType: string(labelType), Err: firstErr}
	}
	return routed, false, nil
}
