package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nischay-chauhan/video-transcode/internal/job"
	"github.com/nischay-chauhan/video-transcode/internal/media"
	"github.com/nischay-chauhan/video-transcode/internal/queue"
	"github.com/nischay-chauhan/video-transcode/internal/upload"
)

type jobAccepted struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type chunkAccepted struct {
	UploadID string `json:"uploadId"`
	Received int    `json:"received"`
	Total    int    `json:"total"`
	JobID    string `json:"jobId,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Upload accepts a whole video in one multipart request and queues an encode
// job for it.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("video file is required"))
		return
	}
	defer file.Close()

	options, err := parseOptions(r.FormValue("options"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	inputPath, err := h.reassembler.SaveDirect(header.Filename, file)
	if err != nil {
		h.logger.Error("failed to stage upload", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to store upload"))
		return
	}

	h.queueJob(w, r, inputPath, header.Filename, options)
}

// ChunkUpload accepts one chunk of a chunked upload. The request that
// completes the set triggers the merge and queues the encode job.
func (h *Handler) ChunkUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploadID := strings.TrimSpace(r.FormValue("uploadId"))
	filename := strings.TrimSpace(r.FormValue("filename"))
	totalChunks, err := strconv.Atoi(r.FormValue("totalChunks"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("totalChunks must be an integer"))
		return
	}
	currentChunk, err := strconv.Atoi(r.FormValue("currentChunk"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("currentChunk must be an integer"))
		return
	}

	file, _, err := r.FormFile("chunk")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("chunk file is required"))
		return
	}
	defer file.Close()

	result, err := h.reassembler.PutChunk(upload.ChunkParams{
		UploadID:    uploadID,
		Filename:    filename,
		TotalChunks: totalChunks,
		Index:       currentChunk,
		Data:        file,
	})
	if err != nil {
		var uploadErr *upload.Error
		if errors.As(err, &uploadErr) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to store chunk", "upload_id", uploadID, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to store chunk"))
		return
	}

	if !result.Merged {
		writeJSON(w, http.StatusOK, chunkAccepted{
			UploadID: uploadID,
			Received: result.Received,
			Total:    result.Total,
		})
		return
	}

	options, err := parseOptions(r.FormValue("options"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.queueMergedJob(w, r, uploadID, result, filename, options)
}

// Status reports the current state of a job.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/videos/status/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, fmt.Errorf("job id is required"))
		return
	}
	j, err := h.registry.Get(id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("job %s not found", id))
			return
		}
		h.logger.Error("failed to load job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to load job"))
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// Jobs lists all known jobs, newest last.
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	jobs, err := h.registry.List()
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to list jobs"))
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Websocket upgrades the request for job progress streaming.
func (h *Handler) Websocket(w http.ResponseWriter, r *http.Request) {
	h.hub.HandleConnection(w, r)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) queueJob(w http.ResponseWriter, r *http.Request, inputPath, filename string, options media.Options) {
	created, err := h.registry.Create(job.Spec{
		InputPath:  inputPath,
		OutputPath: h.outputPath(filename, options),
		Options:    options,
	})
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to create job"))
		return
	}
	if h.metrics != nil {
		h.metrics.JobQueued()
	}
	if err := h.queue.Publish(r.Context(), queue.Task{JobID: created.ID, EnqueuedAt: time.Now().UTC()}); err != nil {
		h.logger.Error("failed to enqueue job", "job_id", created.ID, "error", err)
		if _, terr := h.registry.Transition(created.ID, job.StateFailed, "enqueue failed"); terr != nil {
			h.logger.Error("failed to mark job failed", "job_id", created.ID, "error", terr)
		}
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("failed to enqueue job"))
		return
	}
	h.logger.Info("job queued", "job_id", created.ID, "input", inputPath)
	writeJSON(w, http.StatusAccepted, jobAccepted{JobID: created.ID, Status: string(created.State)})
}

func (h *Handler) queueMergedJob(w http.ResponseWriter, r *http.Request, uploadID string, result upload.ChunkResult, filename string, options media.Options) {
	created, err := h.registry.Create(job.Spec{
		InputPath:  result.MergedPath,
		OutputPath: h.outputPath(filename, options),
		Options:    options,
	})
	if err != nil {
		h.logger.Error("failed to create job", "upload_id", uploadID, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to create job"))
		return
	}
	if h.metrics != nil {
		h.metrics.JobQueued()
	}
	if err := h.queue.Publish(r.Context(), queue.Task{JobID: created.ID, EnqueuedAt: time.Now().UTC()}); err != nil {
		h.logger.Error("failed to enqueue job", "job_id", created.ID, "error", err)
		if _, terr := h.registry.Transition(created.ID, job.StateFailed, "enqueue failed"); terr != nil {
			h.logger.Error("failed to mark job failed", "job_id", created.ID, "error", terr)
		}
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("failed to enqueue job"))
		return
	}
	h.logger.Info("chunked upload queued", "upload_id", uploadID, "job_id", created.ID)
	writeJSON(w, http.StatusAccepted, chunkAccepted{
		UploadID: uploadID,
		Received: result.Received,
		Total:    result.Total,
		JobID:    created.ID,
		Status:   string(created.State),
	})
}

func (h *Handler) outputPath(filename string, options media.Options) string {
	base := upload.SanitizeFilename(filename)
	ext := filepath.Ext(base)
	if options.Format != "" {
		ext = "." + strings.TrimPrefix(options.Format, ".")
	} else if ext == "" {
		ext = ".mp4"
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(h.outputDir, fmt.Sprintf("%s_%s%s", uuid.NewString(), name, ext))
}

func parseOptions(raw string) (media.Options, error) {
	var options media.Options
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			return media.Options{}, fmt.Errorf("invalid options: %w", err)
		}
	}
	if err := options.Validate(); err != nil {
		return media.Options{}, err
	}
	return options, nil
}
