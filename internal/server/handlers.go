package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cddevrks/code-run/internal/job"
	"github.com/cddevrks/code-run/internal/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Execution handlers ---

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req job.ExecuteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, job.ExecuteResponse{Error: "invalid JSON: " + err.Error()})
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, job.ExecuteResponse{Error: "code is required"})
		return
	}
	if _, ok := s.catalog.Get(req.Language); !ok {
		writeJSON(w, http.StatusBadRequest, job.ExecuteResponse{Error: "unsupported language: " + req.Language})
		return
	}

	j := &job.Job{
		ID:       uuid.New().String(),
		Language: req.Language,
		Code:     req.Code,
		Status:   job.StatusQueued,
	}
	if err := s.store.CreateJob(r.Context(), j); err != nil {
		writeJSON(w, http.StatusInternalServerError, job.ExecuteResponse{Error: err.Error()})
		return
	}

	s.registry.Add(j.ID)

	if err := s.dispatch.Submit(job.Submission{
		JobID:    j.ID,
		Language: req.Language,
		Code:     req.Code,
		Stdin:    req.Stdin,
	}); err != nil {
		s.registry.Remove(j.ID)
		j.Status = job.StatusFailed
		j.Error = err.Error()
		s.store.UpdateJob(r.Context(), j)
		writeJSON(w, http.StatusServiceUnavailable, job.ExecuteResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, job.ExecuteResponse{Success: true, JobID: j.ID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	// Jobs still in flight are answered from the registry, finished ones
	// from the store.
	if lj, ok := s.registry.Get(id); ok {
		writeJSON(w, http.StatusOK, job.StatusResponse{
			Status:   lj.Status,
			Progress: lj.Progress,
		})
		return
	}

	j, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "job not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := job.StatusResponse{Status: j.Status}
	if j.Status.Terminal() {
		resp.Result = &job.Result{
			Output:          j.Output,
			Error:           j.Error,
			ExecutionTimeMs: j.ExecutionTimeMs,
			MemoryBytes:     j.MemoryBytes,
		}
		resp.Error = j.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- History handlers ---

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	opts := storage.JobListOptions{}

	if status := r.URL.Query().Get("status"); status != "" {
		opts.Status = job.Status(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	jobs, err := s.store.ListJobs(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if jobs == nil {
		jobs = []job.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	j, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "job not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, j)
}

// --- Language handlers ---

type languageInfo struct {
	Name     string `json:"name"`
	Template string `json:"template"`
}

func (s *Server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	var langs []languageInfo
	for _, name := range s.catalog.Names() {
		langs = append(langs, languageInfo{
			Name:     name,
			Template: s.catalog.Template(name),
		})
	}
	writeJSON(w, http.StatusOK, langs)
}
