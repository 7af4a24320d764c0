package pipeline

import "fmt"

// CollaboratorError wraps a failure of an external collaborator (rasterizer
// or print spooler) with enough context to retry the job externally.
type CollaboratorError struct {
	Collaborator string
	JobID        string
	Page         int
	Err          error
}

func (e *CollaboratorError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s failed for job %s page %d: %v", e.Collaborator, e.JobID, e.Page, e.Err)
	}
	return fmt.Sprintf("%s failed for job %s: %v", e.Collaborator, e.JobID, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// PageError records a per-page failure. Per-page failures never abort
// sibling pages; they are collected into the job summary instead.
type PageError struct {
	Page      int
	LabelType string
	Err       error
}

func (e *PageError) Error() string {
	if e.LabelType != "" {
		return fmt.Sprintf("page %d (%s): %v", e.Page, e.LabelType, e.Err)
	}
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
