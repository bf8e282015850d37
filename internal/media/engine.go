package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Progress reports the engine's position within one encode invocation.
type Progress struct {
	// Elapsed is the amount of output rendered so far, in seconds.
	Elapsed float64
	// Speed is the encode rate relative to realtime, e.g. 1.5.
	Speed float64
	FPS   float64
}

// ProgressFunc receives periodic progress callbacks during an encode.
type ProgressFunc func(Progress)

// Engine is the external encoding operation. Implementations run one
// process per invocation and must respect context cancellation.
type Engine interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
	Encode(ctx context.Context, spec EncodeSpec, onProgress ProgressFunc) error
	Thumbnail(ctx context.Context, inputPath, outputPath string, at float64) error
}

// FFmpegConfig configures the ffmpeg-backed Engine.
type FFmpegConfig struct {
	// Binary overrides the ffmpeg executable name.
	Binary string
	// ProbeBinary overrides the ffprobe executable name.
	ProbeBinary string
	Logger      *slog.Logger
}

// NewFFmpeg returns an Engine that shells out to ffmpeg/ffprobe.
func NewFFmpeg(cfg FFmpegConfig) Engine {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	probeBinary := strings.TrimSpace(cfg.ProbeBinary)
	if probeBinary == "" {
		probeBinary = "ffprobe"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ffmpegEngine{binary: binary, probeBinary: probeBinary, logger: logger}
}

type ffmpegEngine struct {
	binary      string
	probeBinary string
	logger      *slog.Logger
}

func (e *ffmpegEngine) Probe(ctx context.Context, path string) (ProbeResult, error) {
	return probe(ctx, e.probeBinary, path)
}

func (e *ffmpegEngine) Encode(ctx context.Context, spec EncodeSpec, onProgress ProgressFunc) error {
	if strings.TrimSpace(spec.InputPath) == "" {
		return fmt.Errorf("encode: input path is required")
	}
	if strings.TrimSpace(spec.OutputPath) == "" {
		return fmt.Errorf("encode: output path is required")
	}
	args := spec.Args()
	cmd := exec.CommandContext(ctx, e.binary, args...)
	stderr := newTailWriter(4096)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("encode: start ffmpeg: %w", err)
	}
	e.consumeProgress(stdout, onProgress)
	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("encode %s: %w: %s", spec.OutputPath, err, detail)
		}
		return fmt.Errorf("encode %s: %w", spec.OutputPath, err)
	}
	return nil
}

func (e *ffmpegEngine) Thumbnail(ctx context.Context, inputPath, outputPath string, at float64) error {
	cmd := exec.CommandContext(ctx, e.binary, ThumbnailArgs(inputPath, outputPath, at)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("thumbnail %s: %w: %s", outputPath, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// consumeProgress drains the -progress key=value stream, invoking the
// callback on each progress block boundary.
func (e *ffmpegEngine) consumeProgress(r io.Reader, onProgress ProgressFunc) {
	scanner := bufio.NewScanner(r)
	var current Progress
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !found {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us > 0 {
				current.Elapsed = float64(us) / float64(time.Second.Microseconds())
			}
		case "speed":
			if speed, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
				current.Speed = speed
			}
		case "fps":
			if fps, err := strconv.ParseFloat(value, 64); err == nil {
				current.FPS = fps
			}
		case "progress":
			if onProgress != nil {
				onProgress(current)
			}
		}
	}
}

// tailWriter keeps the last max bytes written, enough to surface the
// trailing ffmpeg error lines without buffering full logs.
type tailWriter struct {
	max int
	buf bytes.Buffer
}

func newTailWriter(max int) *tailWriter {
	return &tailWriter{max: max}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if w.buf.Len() > w.max {
		data := w.buf.Bytes()
		trimmed := make([]byte, w.max)
		copy(trimmed, data[len(data)-w.max:])
		w.buf.Reset()
		w.buf.Write(trimmed)
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	return w.buf.String()
}
