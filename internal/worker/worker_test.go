package worker

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/local/labelbridge/internal/config"
	"github.com/local/labelbridge/internal/geometry"
	"github.com/local/labelbridge/internal/pipeline"
	"github.com/local/labelbridge/internal/store"
)

type memStatus struct {
	mu sync.Mutex
	m  map[string]store.JobStatus
}

func newMemStatus() *memStatus { return &memStatus{m: map[string]store.JobStatus{}} }

func (s *memStatus) Set(_ context.Context, jobID string, st store.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[jobID] = st
	return nil
}

func (s *memStatus) Get(_ context.Context, jobID string) (store.JobStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[jobID]
	return st, ok, nil
}

type memQueue struct {
	mu  sync.Mutex
	dlq [][]byte
}

func (q *memQueue) Dequeue(context.Context, string, time.Duration) (string, []byte, error) {
	return "", nil, nil
}
func (q *memQueue) Ack(context.Context, string) error { return nil }
func (q *memQueue) AddDLQ(_ context.Context, payload []byte, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dlq = append(q.dlq, payload)
	return nil
}

type recordingSpooler struct {
	mu      sync.Mutex
	outputs []pipeline.RoutedOutput
}

func (r *recordingSpooler) Submit(_ context.Context, out pipeline.RoutedOutput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, out)
	return nil
}

func testSet(t *testing.T) *geometry.Set {
	t.Helper()
	set, err := geometry.NewSet(
		geometry.Canvas{WidthIn: 4, HeightIn: 6, DPI: 100},
		"labels",
		map[geometry.LabelType]geometry.Profile{
			"dhl": {
				Priority: 10,
				Match: geometry.MatchRule{
					Kind: geometry.MatchHLine, Band: []float64{0.333, 0.667}, MinSpan: 0.6, Threshold: 220,
				},
				Label:      geometry.Fractions{Top: 0.02, Bottom: 0.47, Left: 0.06, Right: 0.94},
				LabelQueue: "labels",
			},
		})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

// labelPNG writes a single-page input image carrying the dhl cut-line signal.
func labelPNG(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 400, 600))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for x := 40; x < 360; x++ {
		img.SetGray(x, 300, color.Gray{Y: 0})
	}
	path := filepath.Join(t.TempDir(), "spool.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func newTestWorker(t *testing.T, sp pipeline.Spooler, status Status) *Worker {
	t.Helper()
	cfg := config.Config{Raster: config.RasterConfig{DPI: 100}}
	pipe := pipeline.New(testSet(t), sp)
	return New(cfg, &memQueue{}, status, pipe, "worker-test")
}

func TestProcessImageJob(t *testing.T) {
	sp := &recordingSpooler{}
	status := newMemStatus()
	w := newTestWorker(t, sp, status)

	job := jobPayload{JobID: "job-1", FileRef: labelPNG(t), User: "warehouse01", Source: "api"}
	if err := w.process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(sp.outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(sp.outputs))
	}
	out := sp.outputs[0]
	if out.JobID != "job-1" || out.LabelType != "dhl" || out.Queue != "labels" {
		t.Errorf("output = %+v", out)
	}

	st, ok, _ := status.Get(context.Background(), "job-1")
	if !ok || st.Status != "success" || st.Progress != 100 {
		t.Fatalf("status = %+v", st)
	}
	if st.Metadata["total_pages"] != 1 {
		t.Errorf("metadata = %+v", st.Metadata)
	}
	if st.Metadata["pages_routed"] != 1 {
		t.Errorf("pages_routed = %v", st.Metadata["pages_routed"])
	}
}

func TestProcessMissingFile(t *testing.T) {
	w := newTestWorker(t, &recordingSpooler{}, newMemStatus())

	job := jobPayload{JobID: "job-2", FileRef: filepath.Join(t.TempDir(), "absent.ps"), User: "u"}
	err := w.process(context.Background(), job)
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	var cerr *pipeline.CollaboratorError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CollaboratorError, got %T: %v", err, err)
	}
	if cerr.Collaborator != "document-fetch" {
		t.Errorf("collaborator = %q", cerr.Collaborator)
	}
}

func TestProcessUnsupportedInput(t *testing.T) {
	w := newTestWorker(t, &recordingSpooler{}, newMemStatus())

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain text, not a print document"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.process(context.Background(), jobPayload{JobID: "job-3", FileRef: path, User: "u"}); err == nil {
		t.Fatal("expected error for unsupported input kind")
	}
}
