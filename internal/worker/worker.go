package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/labelbridge/internal/config"
	"github.com/local/labelbridge/internal/fetch"
	"github.com/local/labelbridge/internal/filetype"
	"github.com/local/labelbridge/internal/metrics"
	"github.com/local/labelbridge/internal/pipeline"
	"github.com/local/labelbridge/internal/raster"
	"github.com/local/labelbridge/internal/storage"
	"github.com/local/labelbridge/internal/store"
)

// Queue is the job intake the worker consumes.
type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
	Ack(ctx context.Context, msgID string) error
	AddDLQ(ctx context.Context, payload []byte, reason string) error
}

// Status persists externally visible job state.
type Status interface {
	Set(ctx context.Context, jobID string, st store.JobStatus) error
	Get(ctx context.Context, jobID string) (store.JobStatus, bool, error)
}

// jobPayload is the queue message shape produced by the intake server.
type jobPayload struct {
	JobID   string `json:"job_id"`
	FileRef string `json:"file_ref"`
	User    string `json:"user"`
	Source  string `json:"source"`
}

// Worker consumes queued print jobs and drives the page pipeline: fetch the
// document, rasterize it, classify/extract/compose each page, route outputs.
// Pages within a job run strictly in order; throughput is bounded by the
// rasterizer and the print queues, not by this loop.
type Worker struct {
	cfg      config.Config
	q        Queue
	status   Status
	pipe     *pipeline.Pipeline
	consumer string
	stop     chan struct{}
	done     chan struct{}
}

// New builds a worker over an already-validated pipeline.
func New(cfg config.Config, q Queue, status Status, pipe *pipeline.Pipeline, consumer string) *Worker {
	return &Worker{
		cfg:      cfg,
		q:        q,
		status:   status,
		pipe:     pipe,
		consumer: consumer,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the consume loop.
func (w *Worker) Start() {
	go w.loop()
}

// Stop signals the loop and waits for the in-flight job to finish.
func (w *Worker) Stop(ctx context.Context) error {
	close(w.stop)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer close(w.done)
	log.Info().Str("consumer", w.consumer).Msg("print worker started")
	ctx := context.Background()
	for {
		select {
		case <-w.stop:
			log.Info().Str("consumer", w.consumer).Msg("print worker stopped")
			return
		default:
		}

		msgID, data, err := w.q.Dequeue(ctx, w.consumer, 2*time.Second)
		if err != nil {
			log.Error().Err(err).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if msgID == "" {
			continue
		}

		var job jobPayload
		if err := json.Unmarshal(data, &job); err != nil || job.JobID == "" {
			log.Error().Err(err).Str("msg_id", msgID).Msg("malformed job payload")
			_ = w.q.AddDLQ(ctx, data, "malformed payload")
			_ = w.q.Ack(ctx, msgID)
			continue
		}

		if err := w.process(ctx, job); err != nil {
			// Job-level failure: bad collaborator or unusable input. The
			// job is finished either way; per-page errors never reach here.
			log.Error().Err(err).Str("job_id", job.JobID).Msg("job failed")
			_ = w.q.AddDLQ(ctx, data, err.Error())
			w.fail(ctx, job.JobID, err)
			metrics.JobProcessed("failed")
		}
		_ = w.q.Ack(ctx, msgID)
	}
}

func (w *Worker) process(ctx context.Context, job jobPayload) error {
	w.setStatus(ctx, job.JobID, "processing", 10, "fetching document", nil)

	localPath, cleanup, err := fetch.Fetch(ctx, job.FileRef)
	if err != nil {
		return &pipeline.CollaboratorError{Collaborator: "document-fetch", JobID: job.JobID, Err: err}
	}
	defer cleanup()

	info, err := filetype.Detect(localPath)
	if err != nil {
		return fmt.Errorf("detect input type: %w", err)
	}
	if info.Kind == filetype.KindUnsupported {
		return fmt.Errorf("unsupported input: %s", info.Description)
	}

	rast, err := raster.ForKind(info.Kind, w.cfg.Raster)
	if err != nil {
		return err
	}

	w.setStatus(ctx, job.JobID, "processing", 25, "rasterizing "+string(info.Kind), nil)
	start := time.Now()
	doc, err := rast.Rasterize(ctx, localPath)
	metrics.ObserveRaster(string(info.Kind), time.Since(start))
	if err != nil {
		// Rasterizer failure leaves nothing to process: abort the whole job.
		return &pipeline.CollaboratorError{Collaborator: "rasterizer", JobID: job.JobID, Err: err}
	}
	defer doc.Close()

	meta := map[string]any{
		"total_pages": len(doc.Pages),
		"file_ref":    job.FileRef,
		"user":        job.User,
		"source":      job.Source,
	}
	if doc.Meta.Title != "" {
		meta["title"] = doc.Meta.Title
	}
	if doc.Meta.Author != "" {
		meta["author"] = doc.Meta.Author
	}
	if doc.Meta.Application != "" {
		meta["application"] = doc.Meta.Application
	}
	w.setStatus(ctx, job.JobID, "processing", 50, "processing pages", meta)

	sum, err := w.pipe.Run(ctx, job.JobID, doc.Pages)
	if err != nil {
		return err
	}

	meta["pages_routed"] = sum.Routed
	meta["pages_skipped"] = sum.Skipped
	meta["pages_failed"] = len(sum.Errors)
	msg := fmt.Sprintf("completed: %d output(s) routed, %d page(s) skipped", sum.Routed, sum.Skipped)
	if len(sum.Errors) > 0 {
		errs := make([]string, 0, len(sum.Errors))
		for _, pe := range sum.Errors {
			errs = append(errs, pe.Error())
		}
		meta["page_errors"] = errs
		msg = fmt.Sprintf("completed with %d failed page(s): %d output(s) routed", len(sum.Errors), sum.Routed)
	}

	now := time.Now()
	_ = w.status.Set(ctx, job.JobID, store.JobStatus{
		Status: "success", Progress: 100, Message: msg, End: &now, Metadata: meta,
	})
	metrics.JobProcessed("success")
	return nil
}

func (w *Worker) setStatus(ctx context.Context, jobID, status string, progress int, msg string, meta map[string]any) {
	st, ok, err := w.status.Get(ctx, jobID)
	if err != nil || !ok {
		st = store.JobStatus{}
	}
	st.Status = status
	st.Progress = progress
	st.Message = msg
	if meta != nil {
		if st.Metadata == nil {
			st.Metadata = map[string]any{}
		}
		for k, v := range meta {
			st.Metadata[k] = v
		}
	}
	if err := w.status.Set(ctx, jobID, st); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("status update failed")
	}
}

func (w *Worker) fail(ctx context.Context, jobID string, jobErr error) {
	now := time.Now()
	st, ok, err := w.status.Get(ctx, jobID)
	if err != nil || !ok {
		st = store.JobStatus{}
	}
	st.Status = "failed"
	st.Message = jobErr.Error()
	st.End = &now
	if err := w.status.Set(ctx, jobID, st); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("status update failed")
	}
}

// ArchivingSpooler wraps the real spooler and keeps an encrypted S3 copy of
// every routed output. Archive failures are logged, never fatal: the label
// already went to the printer.
type ArchivingSpooler struct {
	Spool    pipeline.Spooler
	Archiver *storage.Archiver
}

func (a *ArchivingSpooler) Submit(ctx context.Context, out pipeline.RoutedOutput) error {
	err := a.Spool.Submit(ctx, out)
	if err == nil && a.Archiver != nil {
		if aerr := a.Archiver.Archive(ctx, out.JobID, out.Page, out.Region, out.Queue, out.Image); aerr != nil {
			log.Warn().Err(aerr).Str("job_id", out.JobID).Int("page", out.Page).Msg("archive failed")
		}
	}
	return err
}
