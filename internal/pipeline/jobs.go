package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/colporter/internal/content"
)

// JobStatus represents the state of an export job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusWalking   JobStatus = "walking"
	StatusPackaging JobStatus = "packaging"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Job tracks the state of a single export run.
type Job struct {
	mu sync.Mutex

	ID             string `json:"job_id"`
	ContentID      string `json:"content_id"`
	ContentVersion string `json:"content_version"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`
	Title  string    `json:"title"`

	Progress Progress `json:"progress"`

	ArtifactHash string    `json:"artifact_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Internal: not serialized.
	artifactPath string
	refErrors    []content.ResolutionError
	errors       []string
}

// Progress tracks export progress.
type Progress struct {
	DocumentsExported int      `json:"documents_exported"`
	ResourcesEmbedded int      `json:"resources_embedded"`
	RefErrors         int      `json:"ref_errors"`
	Errors            []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetTitle records the root document title once the walk has fetched it.
func (j *Job) SetTitle(title string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Title = title
	j.UpdatedAt = time.Now()
}

// AddError records a run-level error or warning.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrDocumentsExported atomically increments the exported document count.
func (j *Job) IncrDocumentsExported() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.DocumentsExported++
	j.UpdatedAt = time.Now()
}

// AddRefErrors records the reference errors one document produced.
func (j *Job) AddRefErrors(errs []content.ResolutionError) {
	if len(errs) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.refErrors = append(j.refErrors, errs...)
	j.Progress.RefErrors = len(j.refErrors)
	j.UpdatedAt = time.Now()
}

// RefErrors returns a copy of the accumulated reference errors.
func (j *Job) RefErrors() []content.ResolutionError {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]content.ResolutionError, len(j.refErrors))
	copy(out, j.refErrors)
	return out
}

// SetResourcesEmbedded records the embedded resource count.
func (j *Job) SetResourcesEmbedded(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ResourcesEmbedded = n
	j.UpdatedAt = time.Now()
}

// SetArtifact records the produced package path and its digest.
func (j *Job) SetArtifact(path, hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.artifactPath = path
	j.ArtifactHash = hash
	j.UpdatedAt = time.Now()
}

// ArtifactPath returns the produced package path, empty until packaging has
// finished.
func (j *Job) ArtifactPath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.artifactPath
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID             string    `json:"job_id"`
	ContentID      string    `json:"content_id"`
	ContentVersion string    `json:"content_version"`
	Status         JobStatus `json:"status"`
	Phase          string    `json:"phase"`
	Title          string    `json:"title"`
	ArtifactHash   string    `json:"artifact_hash,omitempty"`
	Progress       Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:             j.ID,
		ContentID:      j.ContentID,
		ContentVersion: j.ContentVersion,
		Status:         j.Status,
		Phase:          j.Phase,
		Title:          j.Title,
		ArtifactHash:   j.ArtifactHash,
		Progress: Progress{
			DocumentsExported: j.Progress.DocumentsExported,
			ResourcesEmbedded: j.Progress.ResourcesEmbedded,
			RefErrors:         j.Progress.RefErrors,
			Errors:            errs,
		},
	}
}
