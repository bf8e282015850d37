// Package upload reassembles chunked uploads and stages direct uploads on
// local disk before they are handed to the encode pipeline.
package upload

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/nischay-chauhan/video-transcode/internal/observability/metrics"
	"github.com/nischay-chauhan/video-transcode/internal/ws"
)

// Error is a typed upload failure carrying the session it belongs to.
type Error struct {
	UploadID string
	Reason   string
}

func (e *Error) Error() string {
	if e.UploadID == "" {
		return e.Reason
	}
	return fmt.Sprintf("upload %s: %s", e.UploadID, e.Reason)
}

// ReassemblerConfig configures a Reassembler.
type ReassemblerConfig struct {
	// Dir is the root directory for staged uploads and chunk scratch space.
	Dir         string
	Logger      *slog.Logger
	Metrics     *metrics.Recorder
	Broadcaster ws.Broadcaster
	// SessionTTL bounds how long an idle chunk session may live before the
	// sweeper discards it. A zero value disables sweeping.
	SessionTTL time.Duration
}

// Reassembler tracks chunked upload sessions keyed by upload ID. Chunks for
// one session may arrive concurrently; the merge runs exactly once, when the
// final chunk completes the set.
type Reassembler struct {
	dir         string
	logger      *slog.Logger
	metrics     *metrics.Recorder
	broadcaster ws.Broadcaster
	sessionTTL  time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu          sync.Mutex
	filename    string
	totalChunks int
	received    map[int]struct{}
	merged      bool
	lastTouched time.Time
}

// NewReassembler initialises the reassembler and creates its staging
// directory.
func NewReassembler(cfg ReassemblerConfig) (*Reassembler, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reassembler{
		dir:         dir,
		logger:      logger,
		metrics:     cfg.Metrics,
		broadcaster: cfg.Broadcaster,
		sessionTTL:  cfg.SessionTTL,
		sessions:    make(map[string]*session),
	}, nil
}

// SaveDirect stages a whole-file upload and returns the path of the staged
// file.
func (r *Reassembler) SaveDirect(filename string, src io.Reader) (string, error) {
	path := r.stagedPath(filename)
	if err := writeFileAtomic(path, src); err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if r.metrics != nil {
		r.metrics.ObserveUploadEvent("direct")
	}
	r.logger.Info("upload staged", "path", path)
	return path, nil
}

// ChunkParams describes one incoming chunk of a chunked upload session.
type ChunkParams struct {
	UploadID    string
	Filename    string
	TotalChunks int
	// Index is zero-based. Re-sent indices overwrite the earlier copy.
	Index int
	Data  io.Reader
}

// ChunkResult reports the state of the session after a chunk is accepted.
type ChunkResult struct {
	Received int
	Total    int
	// Merged is true when this chunk completed the set; MergedPath then
	// holds the reassembled file.
	Merged     bool
	MergedPath string
}

// PutChunk persists one chunk and merges the session once every index in
// [0, totalChunks) has been received.
func (r *Reassembler) PutChunk(params ChunkParams) (ChunkResult, error) {
	if err := validateChunkParams(params); err != nil {
		return ChunkResult{}, err
	}

	sess := r.getOrCreateSession(params.UploadID, params.Filename, params.TotalChunks)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.merged {
		return ChunkResult{}, &Error{UploadID: params.UploadID, Reason: "session already merged"}
	}
	if sess.totalChunks != params.TotalChunks {
		return ChunkResult{}, &Error{
			UploadID: params.UploadID,
			Reason:   fmt.Sprintf("totalChunks %d conflicts with session total %d", params.TotalChunks, sess.totalChunks),
		}
	}
	if params.Index < 0 || params.Index >= sess.totalChunks {
		return ChunkResult{}, &Error{
			UploadID: params.UploadID,
			Reason:   fmt.Sprintf("chunk index %d out of range [0,%d)", params.Index, sess.totalChunks),
		}
	}

	scratch := r.scratchDir(params.UploadID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return ChunkResult{}, fmt.Errorf("create chunk directory: %w", err)
	}
	chunkPath := filepath.Join(scratch, fmt.Sprintf("chunk_%06d", params.Index))
	if err := writeFileAtomic(chunkPath, params.Data); err != nil {
		return ChunkResult{}, fmt.Errorf("write chunk %d: %w", params.Index, err)
	}

	sess.received[params.Index] = struct{}{}
	sess.lastTouched = time.Now()
	if r.metrics != nil {
		r.metrics.ObserveUploadEvent("chunk_received")
	}

	result := ChunkResult{Received: len(sess.received), Total: sess.totalChunks}
	r.broadcastProgress(params.UploadID, result.Received, result.Total)

	if len(sess.received) < sess.totalChunks {
		return result, nil
	}

	merged, err := r.merge(params.UploadID, sess)
	if err != nil {
		return ChunkResult{}, err
	}
	// The session stays in the map as a tombstone so a resubmitted chunk is
	// rejected instead of opening a fresh session under the same id. The
	// sweeper reaps tombstones once the TTL passes.
	sess.merged = true
	sess.lastTouched = time.Now()

	result.Merged = true
	result.MergedPath = merged
	if r.metrics != nil {
		r.metrics.ObserveUploadEvent("merged")
	}
	r.logger.Info("chunked upload merged", "upload_id", params.UploadID, "chunks", sess.totalChunks, "path", merged)
	return result, nil
}

// merge concatenates chunk files in index order into the staged output. The
// caller holds the session lock.
func (r *Reassembler) merge(uploadID string, sess *session) (string, error) {
	scratch := r.scratchDir(uploadID)
	target := r.stagedPath(sess.filename)
	tmp := target + ".partial"

	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create merge target: %w", err)
	}
	for i := 0; i < sess.totalChunks; i++ {
		chunkPath := filepath.Join(scratch, fmt.Sprintf("chunk_%06d", i))
		if err := appendFile(out, chunkPath); err != nil {
			out.Close()
			os.Remove(tmp)
			return "", &Error{UploadID: uploadID, Reason: fmt.Sprintf("merge chunk %d: %v", i, err)}
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize merge: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("publish merged file: %w", err)
	}

	if err := os.RemoveAll(scratch); err != nil {
		r.logger.Warn("failed to remove chunk scratch directory", "upload_id", uploadID, "error", err)
	}
	return target, nil
}

// Sweep discards sessions idle longer than the configured TTL, removing their
// scratch directories, and drops merged tombstones of the same age. It
// returns the number of sessions discarded.
func (r *Reassembler) Sweep() int {
	if r.sessionTTL <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-r.sessionTTL)

	r.mu.Lock()
	stale := make(map[string]*session)
	for id, sess := range r.sessions {
		stale[id] = sess
	}
	r.mu.Unlock()

	removed := 0
	for id, sess := range stale {
		sess.mu.Lock()
		expired := sess.lastTouched.Before(cutoff)
		sess.mu.Unlock()
		if !expired {
			continue
		}
		r.dropSession(id)
		if err := os.RemoveAll(r.scratchDir(id)); err != nil {
			r.logger.Warn("failed to remove stale chunk directory", "upload_id", id, "error", err)
		}
		r.logger.Info("discarded stale upload session", "upload_id", id)
		removed++
	}
	return removed
}

func (r *Reassembler) getOrCreateSession(uploadID, filename string, totalChunks int) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[uploadID]; ok {
		return sess
	}
	sess := &session{
		filename:    filename,
		totalChunks: totalChunks,
		received:    make(map[int]struct{}),
		lastTouched: time.Now(),
	}
	r.sessions[uploadID] = sess
	return sess
}

func (r *Reassembler) dropSession(uploadID string) {
	r.mu.Lock()
	delete(r.sessions, uploadID)
	r.mu.Unlock()
}

func (r *Reassembler) broadcastProgress(uploadID string, received, total int) {
	if r.broadcaster == nil {
		return
	}
	percent := float64(received) / float64(total) * 100
	r.broadcaster.Broadcast(ws.Progress(uploadID, ws.ProgressData{
		Phase:          "upload",
		Percent:        percent,
		ReceivedChunks: received,
		TotalChunks:    total,
	}))
}

func (r *Reassembler) scratchDir(uploadID string) string {
	return filepath.Join(r.dir, "chunks", uploadID)
}

func (r *Reassembler) stagedPath(filename string) string {
	return filepath.Join(r.dir, uuid.NewString()+"_"+SanitizeFilename(filename))
}

func validateChunkParams(params ChunkParams) error {
	if strings.TrimSpace(params.UploadID) == "" {
		return &Error{Reason: "uploadId is required"}
	}
	if strings.TrimSpace(params.Filename) == "" {
		return &Error{UploadID: params.UploadID, Reason: "filename is required"}
	}
	if params.TotalChunks <= 0 {
		return &Error{UploadID: params.UploadID, Reason: "totalChunks must be positive"}
	}
	if params.Data == nil {
		return &Error{UploadID: params.UploadID, Reason: "chunk body is required"}
	}
	return nil
}

// SanitizeFilename normalizes the name to NFC, strips any path components,
// and replaces characters unsafe for local filesystems.
func SanitizeFilename(name string) string {
	normalized := norm.NFC.String(name)
	base := filepath.Base(strings.ReplaceAll(normalized, "\\", "/"))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

func writeFileAtomic(path string, src io.Reader) error {
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func appendFile(dst io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(dst, in)
	return err
}
