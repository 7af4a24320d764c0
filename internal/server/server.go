package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/labelbridge/internal/metrics"
	"github.com/local/labelbridge/internal/store"
)

// Queue is the intake side of the job queue.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
}

// Status persists externally visible job state.
type Status interface {
	Set(ctx context.Context, jobID string, st store.JobStatus) error
	Get(ctx context.Context, jobID string) (store.JobStatus, bool, error)
}

// Server is the HTTP intake for print jobs: submit a document reference or
// upload, poll progress, scrape metrics.
type Server struct {
	q         Queue
	status    Status
	uploadDir string
}

// New builds the intake server.
func New(q Queue, status Status) *Server {
	dir := os.Getenv("UPLOAD_DIR")
	if dir == "" {
		dir = "uploads"
	}
	return &Server{q: q, status: status, uploadDir: dir}
}

// RegisterRoutes attaches all endpoints to the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/submit_job", s.handleSubmit)
	mux.HandleFunc("/submit_upload", s.handleUpload)
	mux.HandleFunc("/progress/", s.handleProgress)
	mux.Handle("/metrics", metrics.Handler())
}

type submitReq struct {
	FilePath string `json:"file_path"`
	FileURL  string `json:"file_url"`
	UserName string `json:"user_name"`
	UserID   string `json:"user_id"`
}

type submitResp struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	fileRef := req.FilePath
	if fileRef == "" {
		fileRef = req.FileURL
	}
	user := req.UserName
	if user == "" {
		user = req.UserID
	}
	if fileRef == "" || user == "" {
		http.Error(w, "missing file_path/file_url or user_name/user_id", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	if err := s.enqueue(r.Context(), jobID, fileRef, user, "api"); err != nil {
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(submitResp{Status: "ok", JobID: jobID, Message: "Print job created"})
}

// handleUpload accepts multipart/form-data with the spool document itself.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil { // 64MB max memory before temp files
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()
	user := r.FormValue("user_name")
	if user == "" {
		http.Error(w, "missing user_name", http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		http.Error(w, "cannot create upload dir", http.StatusInternalServerError)
		return
	}
	jobID := uuid.NewString()
	name := hdr.Filename
	if name == "" {
		name = "upload.ps"
	}
	localPath := filepath.Join(s.uploadDir, fmt.Sprintf("%s_%s", jobID, filepath.Base(name)))
	out, err := os.Create(localPath)
	if err != nil {
		http.Error(w, "cannot save upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	_ = out.Close()

	if err := s.enqueue(r.Context(), jobID, "file://"+localPath, user, "upload"); err != nil {
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(submitResp{Status: "ok", JobID: jobID, Message: "Upload job created"})
}

func (s *Server) enqueue(ctx context.Context, jobID, fileRef, user, source string) error {
	start := time.Now()
	_ = s.status.Set(ctx, jobID, store.JobStatus{
		Status: "queued", Progress: 0, Message: "queued", Start: &start,
		Metadata: map[string]any{"file_ref": fileRef, "user": user, "source": source},
	})

	payload, _ := json.Marshal(map[string]any{
		"job_id":   jobID,
		"file_ref": fileRef,
		"user":     user,
		"source":   source,
	})
	if err := s.q.Enqueue(ctx, payload); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed")
		return err
	}
	log.Info().Str("job_id", jobID).Str("file", fileRef).Str("user", user).Msg("job created")
	return nil
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/progress/")
	st, ok, err := s.status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":    st.Status == "success",
		"job_id":     id,
		"status":     st.Status,
		"progress":   st.Progress,
		"message":    st.Message,
		"start_time": st.Start,
		"end_time":   st.End,
		"metadata":   st.Metadata,
	})
}
