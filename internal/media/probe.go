package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult carries the container metadata the pipeline needs from a
// source file.
type ProbeResult struct {
	// Duration is the container duration in seconds. Zero means the
	// probe succeeded but the container does not report a duration.
	Duration float64
	Format   string
	SizeByte int64
}

type probePayload struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
		Size       string `json:"size"`
	} `json:"format"`
}

// ParseProbeOutput decodes ffprobe JSON output into a ProbeResult.
func ParseProbeOutput(data []byte) (ProbeResult, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ProbeResult{}, fmt.Errorf("decode probe output: %w", err)
	}
	result := ProbeResult{Format: payload.Format.FormatName}
	if raw := strings.TrimSpace(payload.Format.Duration); raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds > 0 {
			result.Duration = seconds
		}
	}
	if raw := strings.TrimSpace(payload.Format.Size); raw != "" {
		if size, err := strconv.ParseInt(raw, 10, 64); err == nil {
			result.SizeByte = size
		}
	}
	return result, nil
}

func probe(ctx context.Context, binary, path string) (ProbeResult, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return ProbeResult{}, fmt.Errorf("probe: input path is required")
	}
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		detail := strings.TrimSpace(stderrOf(err))
		if detail != "" {
			return ProbeResult{}, fmt.Errorf("probe %s: %w: %s", path, err, detail)
		}
		return ProbeResult{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return ParseProbeOutput(output)
}

func stderrOf(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return string(exitErr.Stderr)
	}
	return ""
}

// ParseTimestamp converts an "HH:MM:SS" timestamp into seconds.
func ParseTimestamp(value string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q, expected HH:MM:SS", value)
	}
	var total float64
	for _, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q, expected HH:MM:SS", value)
		}
		total = total*60 + n
	}
	return total, nil
}
