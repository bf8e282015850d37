package encode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nischay-chauhan/video-transcode/internal/media"
	"github.com/nischay-chauhan/video-transcode/internal/observability/metrics"
	"github.com/nischay-chauhan/video-transcode/internal/ws"
)

// Error is a typed encode failure identifying which stage broke.
type Error struct {
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Engine media.Engine
	// ScratchDir holds per-job segment outputs until they are stitched.
	ScratchDir string
	// SegmentSeconds is the planned segment length. Zero selects the
	// default.
	SegmentSeconds float64
	Logger         *slog.Logger
	Metrics        *metrics.Recorder
	Broadcaster    ws.Broadcaster
}

// Coordinator runs one job at a time through the segmented encode pipeline:
// probe, plan, encode segments sequentially, concatenate, and optionally
// extract a thumbnail.
type Coordinator struct {
	engine         media.Engine
	scratchDir     string
	segmentSeconds float64
	logger         *slog.Logger
	metrics        *metrics.Recorder
	broadcaster    ws.Broadcaster
}

// NewCoordinator initialises the coordinator and creates its scratch
// directory.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	scratch := strings.TrimSpace(cfg.ScratchDir)
	if scratch == "" {
		return nil, fmt.Errorf("scratch directory is required")
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	segmentSeconds := cfg.SegmentSeconds
	if segmentSeconds <= 0 {
		segmentSeconds = DefaultSegmentSeconds
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		engine:         cfg.Engine,
		scratchDir:     scratch,
		segmentSeconds: segmentSeconds,
		logger:         logger,
		metrics:        cfg.Metrics,
		broadcaster:    cfg.Broadcaster,
	}, nil
}

// Run encodes the job described by spec. The output file appears at
// spec.OutputPath only after every segment succeeded; a failed run never
// leaves a partial output behind.
func (c *Coordinator) Run(ctx context.Context, jobID string, spec media.EncodeSpec) error {
	logger := c.logger.With("job_id", jobID)

	probed, err := c.engine.Probe(ctx, spec.InputPath)
	if err != nil {
		return &Error{Stage: "probe", Message: "probe source", Err: err}
	}

	start, duration, err := EncodeWindow(probed.Duration, spec.Options.Trim)
	if err != nil {
		return err
	}
	segments := PlanSegments(start, duration, c.segmentSeconds)
	logger.Info("encode planned",
		"source_duration", probed.Duration,
		"window_start", start,
		"window_duration", duration,
		"segments", len(segments))

	scratch := filepath.Join(c.scratchDir, jobID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return &Error{Stage: "encode", Message: "create job scratch directory", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("failed to remove job scratch directory", "error", err)
		}
	}()

	// Every segment, including a single-segment run, encodes into scratch so
	// the output path never holds a partial result.
	paths := make([]string, len(segments))
	for _, seg := range segments {
		part := spec
		part.Start = seg.Start
		part.Duration = seg.Duration
		part.OutputPath = filepath.Join(scratch, fmt.Sprintf("segment_%04d%s", seg.Index, outputExt(spec)))
		paths[seg.Index] = part.OutputPath
		if err := c.encodeSegment(ctx, logger, part, seg.Index, len(segments)); err != nil {
			return err
		}
		c.broadcastSegmentProgress(jobID, seg.Index+1, len(segments))
	}
	if err := concatFiles(spec.OutputPath, paths); err != nil {
		return &Error{Stage: "concat", Message: "stitch segments", Err: err}
	}

	if spec.Options.Thumbnail {
		c.extractThumbnail(ctx, logger, spec, probed.Duration)
	}

	logger.Info("encode completed", "output", spec.OutputPath)
	return nil
}

func (c *Coordinator) encodeSegment(ctx context.Context, logger *slog.Logger, spec media.EncodeSpec, index, total int) error {
	progress := func(p media.Progress) {
		logger.Debug("segment progress",
			"segment", index,
			"elapsed", p.Elapsed,
			"speed", p.Speed,
			"fps", p.FPS)
	}
	if err := c.engine.Encode(ctx, spec, progress); err != nil {
		return &Error{Stage: "encode", Message: fmt.Sprintf("segment %d of %d", index+1, total), Err: err}
	}
	if c.metrics != nil {
		c.metrics.ObserveSegmentEncoded()
	}
	return nil
}

func (c *Coordinator) broadcastSegmentProgress(jobID string, completed, total int) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Broadcast(ws.Progress(jobID, ws.ProgressData{
		Phase:             "encode",
		Percent:           float64(completed) / float64(total) * 100,
		CompletedSegments: completed,
		TotalSegments:     total,
	}))
}

// extractThumbnail is best effort; a failure is logged and does not fail the
// job.
func (c *Coordinator) extractThumbnail(ctx context.Context, logger *slog.Logger, spec media.EncodeSpec, sourceDuration float64) {
	at := sourceDuration / 2
	if at <= 0 {
		at = 1
	}
	thumbPath := thumbnailPath(spec.OutputPath)
	if err := c.engine.Thumbnail(ctx, spec.InputPath, thumbPath, at); err != nil {
		logger.Warn("thumbnail extraction failed", "error", err)
		return
	}
	logger.Info("thumbnail extracted", "path", thumbPath)
}

func thumbnailPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + "_thumb.jpg"
}

func outputExt(spec media.EncodeSpec) string {
	if ext := filepath.Ext(spec.OutputPath); ext != "" {
		return ext
	}
	return ".mp4"
}

// concatFiles joins the parts in order into target, writing through a
// temporary file so the target never holds a partial result.
func concatFiles(target string, parts []string) error {
	tmp := target + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	for _, part := range parts {
		if err := copyInto(out, part); err != nil {
			out.Close()
			os.Remove(tmp)
			return fmt.Errorf("append %s: %w", filepath.Base(part), err)
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func copyInto(dst io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(dst, in)
	return err
}
