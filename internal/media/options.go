package media

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Options describes the requested output characteristics for one encode.
// Every field is optional; unset fields are omitted from the ffmpeg
// invocation rather than defaulted.
type Options struct {
	// Quality is the target video bitrate, e.g. "1000k".
	Quality    string `json:"quality,omitempty"`
	Format     string `json:"format,omitempty"`
	Resolution string `json:"resolution,omitempty" validate:"omitempty,resolution"`
	FPS        int    `json:"fps,omitempty" validate:"omitempty,min=1,max=240"`
	VideoCodec string `json:"videoCodec,omitempty"`
	AudioCodec string `json:"audioCodec,omitempty"`

	Preset  string `json:"preset,omitempty" validate:"omitempty,oneof=ultrafast superfast veryfast faster fast medium slow slower veryslow"`
	CRF     *int   `json:"crf,omitempty" validate:"omitempty,min=0,max=51"`
	Tune    string `json:"tune,omitempty"`
	HWAccel string `json:"hwaccel,omitempty"`

	Trim      *Trim      `json:"trim,omitempty"`
	Filters   *Filters   `json:"filters,omitempty"`
	Audio     *Audio     `json:"audio,omitempty"`
	Watermark *Watermark `json:"watermark,omitempty"`

	// Thumbnail requests a single-frame extraction at the source
	// midpoint once the encode succeeds.
	Thumbnail bool `json:"thumbnail,omitempty"`
}

// Trim bounds the encode to a window of the source. Timestamps use the
// "HH:MM:SS" form.
type Trim struct {
	Start    string `json:"start,omitempty" validate:"omitempty,datetime=15:04:05"`
	Duration string `json:"duration,omitempty" validate:"omitempty,datetime=15:04:05"`
}

// Filters holds per-frame video filter levels.
type Filters struct {
	Brightness *float64 `json:"brightness,omitempty" validate:"omitempty,gte=-1,lte=1"`
	Contrast   *float64 `json:"contrast,omitempty" validate:"omitempty,gte=-2,lte=2"`
	Saturation *float64 `json:"saturation,omitempty" validate:"omitempty,gte=0,lte=3"`
	Blur       *float64 `json:"blur,omitempty" validate:"omitempty,gte=0,lte=10"`
	Sharpen    *float64 `json:"sharpen,omitempty" validate:"omitempty,gte=0,lte=10"`
}

// Audio holds audio-stream adjustments.
type Audio struct {
	Volume   *float64 `json:"volume,omitempty" validate:"omitempty,gte=0,lte=2"`
	Bitrate  string   `json:"bitrate,omitempty"`
	Channels int      `json:"channels,omitempty" validate:"omitempty,min=1,max=8"`
}

// Watermark overlays an image at one of five named anchor positions.
type Watermark struct {
	Path     string   `json:"path" validate:"required"`
	Position string   `json:"position" validate:"required,oneof=center topLeft topRight bottomLeft bottomRight"`
	Opacity  *float64 `json:"opacity,omitempty" validate:"omitempty,gt=0,lte=1"`
}

// watermarkAnchors maps the named positions to fixed overlay coordinate
// expressions.
var watermarkAnchors = map[string]string{
	"center":      "(W-w)/2:(H-h)/2",
	"topLeft":     "10:10",
	"topRight":    "W-w-10:10",
	"bottomLeft":  "10:H-h-10",
	"bottomRight": "W-w-10:H-h-10",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// "640x480" style, both dimensions positive.
	_ = v.RegisterValidation("resolution", func(fl validator.FieldLevel) bool {
		parts := strings.Split(fl.Field().String(), "x")
		if len(parts) != 2 {
			return false
		}
		for _, part := range parts {
			n, err := strconv.Atoi(part)
			if err != nil || n <= 0 {
				return false
			}
		}
		return true
	})
	return v
}

// Validate checks option ranges and enumerations. Invalid options are
// rejected at the API boundary and never enter the job pipeline.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// EncodeSpec is one invocation of the external encode operation: a window
// of the input rendered to a single output artifact.
type EncodeSpec struct {
	InputPath  string
	OutputPath string
	// Start is the window offset in seconds from the beginning of the
	// input. Zero means the input's start.
	Start float64
	// Duration bounds the window in seconds. Zero or negative means
	// encode to the end of the input.
	Duration float64
	Options  Options
}

// Args assembles the ffmpeg argument list for s. Option fields that
// are unset contribute nothing.
func (s EncodeSpec) Args() []string {
	o := s.Options
	args := []string{"-hide_banner", "-nostdin", "-y"}
	if o.HWAccel != "" {
		args = append(args, "-hwaccel", o.HWAccel)
	}
	if s.Start > 0 {
		args = append(args, "-ss", formatSeconds(s.Start))
	}
	args = append(args, "-i", s.InputPath)
	if o.Watermark != nil {
		args = append(args, "-i", o.Watermark.Path)
	}
	if s.Duration > 0 {
		args = append(args, "-t", formatSeconds(s.Duration))
	}

	videoChain := videoFilterChain(o.Filters)
	if o.Watermark != nil {
		args = append(args, "-filter_complex", overlayGraph(o.Watermark, videoChain))
	} else if videoChain != "" {
		args = append(args, "-vf", videoChain)
	}
	if chain := audioFilterChain(o.Audio); chain != "" {
		args = append(args, "-af", chain)
	}

	if o.VideoCodec != "" {
		args = append(args, "-c:v", o.VideoCodec)
	}
	if o.AudioCodec != "" {
		args = append(args, "-c:a", o.AudioCodec)
	}
	if o.Quality != "" {
		args = append(args, "-b:v", o.Quality)
	}
	if o.Audio != nil && o.Audio.Bitrate != "" {
		args = append(args, "-b:a", o.Audio.Bitrate)
	}
	if o.Audio != nil && o.Audio.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(o.Audio.Channels))
	}
	if o.Resolution != "" {
		args = append(args, "-s", o.Resolution)
	}
	if o.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(o.FPS))
	}
	if o.Preset != "" {
		args = append(args, "-preset", o.Preset)
	}
	if o.CRF != nil {
		args = append(args, "-crf", strconv.Itoa(*o.CRF))
	}
	if o.Tune != "" {
		args = append(args, "-tune", o.Tune)
	}
	if o.Format != "" {
		args = append(args, "-f", o.Format)
	}
	args = append(args, "-progress", "pipe:1", s.OutputPath)
	return args
}

func videoFilterChain(f *Filters) string {
	if f == nil {
		return ""
	}
	var filters []string
	var eq []string
	if f.Brightness != nil {
		eq = append(eq, "brightness="+formatLevel(*f.Brightness))
	}
	if f.Contrast != nil {
		eq = append(eq, "contrast="+formatLevel(*f.Contrast))
	}
	if f.Saturation != nil {
		eq = append(eq, "saturation="+formatLevel(*f.Saturation))
	}
	if len(eq) > 0 {
		filters = append(filters, "eq="+strings.Join(eq, ":"))
	}
	if f.Blur != nil && *f.Blur > 0 {
		filters = append(filters, "boxblur="+formatLevel(*f.Blur))
	}
	if f.Sharpen != nil && *f.Sharpen > 0 {
		filters = append(filters, fmt.Sprintf("unsharp=5:5:%s", formatLevel(*f.Sharpen)))
	}
	return strings.Join(filters, ",")
}

func audioFilterChain(a *Audio) string {
	if a == nil || a.Volume == nil {
		return ""
	}
	return "volume=" + formatLevel(*a.Volume)
}

// overlayGraph builds the filter_complex graph stacking the video filter
// chain (if any) beneath the watermark overlay.
func overlayGraph(wm *Watermark, videoChain string) string {
	anchor := watermarkAnchors[wm.Position]
	base := "[0:v]"
	wmLabel := "[1:v]"
	var graph strings.Builder
	if videoChain != "" {
		graph.WriteString("[0:v]" + videoChain + "[base];")
		base = "[base]"
	}
	if wm.Opacity != nil {
		graph.WriteString(fmt.Sprintf("[1:v]format=rgba,colorchannelmixer=aa=%s[wm];", formatLevel(*wm.Opacity)))
		wmLabel = "[wm]"
	}
	graph.WriteString(base + wmLabel + "overlay=" + anchor)
	return graph.String()
}

// ThumbnailArgs assembles the argument list for a single-frame extraction
// at the given offset.
func ThumbnailArgs(inputPath, outputPath string, at float64) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", formatSeconds(at),
		"-i", inputPath,
		"-frames:v", "1",
		outputPath,
	}
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func formatLevel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
