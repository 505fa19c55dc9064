package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/colporter/internal/content"
	"github.com/dgallion1/colporter/internal/pipeline"
)

// exportRequest names the root of one export.
type exportRequest struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		jsonError(w, "id is required", http.StatusBadRequest)
		return
	}

	job, err := s.submitExport(req)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   job.Status,
		"poll_url": fmt.Sprintf("/api/exports/%s/status", job.ID),
	})
}

func (s *Server) handleBatchExport(w http.ResponseWriter, r *http.Request) {
	var reqs []exportRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(reqs) == 0 {
		jsonError(w, "at least one export is required", http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, req := range reqs {
		if req.ID == "" {
			results = append(results, map[string]any{
				"error": "id is required",
			})
			continue
		}
		job, err := s.submitExport(req)
		if err != nil {
			results = append(results, map[string]any{
				"id":      req.ID,
				"version": req.Version,
				"error":   err.Error(),
			})
			continue
		}
		results = append(results, map[string]any{
			"id":       req.ID,
			"version":  req.Version,
			"job_id":   job.ID,
			"status":   job.Status,
			"poll_url": fmt.Sprintf("/api/exports/%s/status", job.ID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

func (s *Server) submitExport(req exportRequest) (*pipeline.Job, error) {
	now := time.Now()
	job := &pipeline.Job{
		ID:             uuid.NewString(),
		ContentID:      req.ID,
		ContentVersion: req.Version,
		Status:         pipeline.StatusQueued,
		Phase:          "queued",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.orchestrator.Submit(job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   snap.ID,
		"content":  snap.ContentID + "@" + snap.ContentVersion,
		"title":    snap.Title,
		"status":   snap.Status,
		"phase":    snap.Phase,
		"progress": snap.Progress,
	})
}

func (s *Server) handleExportErrors(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	errs := job.RefErrors()
	if errs == nil {
		errs = []content.ResolutionError{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id": jobID,
		"errors": errs,
	})
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	path := job.ArtifactPath()
	if path == "" {
		jsonError(w, "artifact not ready", http.StatusConflict)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/epub+zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", snap.ContentID+"@"+snap.ContentVersion+".epub"))
	http.ServeFile(w, r, path)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
