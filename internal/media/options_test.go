package media

import (
	"strings"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestValidateAcceptsEmptyOptions(t *testing.T) {
	if err := (Options{}).Validate(); err != nil {
		t.Fatalf("empty options must validate: %v", err)
	}
}

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		name    string
		options Options
		wantErr bool
	}{
		{name: "full valid set", options: Options{
			Quality:    "1000k",
			Format:     "mp4",
			Resolution: "1920x1080",
			FPS:        30,
			VideoCodec: "libx264",
			AudioCodec: "aac",
			Preset:     "fast",
			CRF:        intPtr(23),
			Trim:       &Trim{Start: "00:00:10", Duration: "00:01:00"},
			Filters:    &Filters{Brightness: floatPtr(0.1), Contrast: floatPtr(1.2)},
			Audio:      &Audio{Volume: floatPtr(1.5), Bitrate: "128k", Channels: 2},
			Watermark:  &Watermark{Path: "logo.png", Position: "bottomRight", Opacity: floatPtr(0.5)},
			Thumbnail:  true,
		}},
		{name: "bad resolution shape", options: Options{Resolution: "1920by1080"}, wantErr: true},
		{name: "zero dimension", options: Options{Resolution: "0x1080"}, wantErr: true},
		{name: "fps too high", options: Options{FPS: 500}, wantErr: true},
		{name: "unknown preset", options: Options{Preset: "warp"}, wantErr: true},
		{name: "crf out of range", options: Options{CRF: intPtr(52)}, wantErr: true},
		{name: "crf zero is valid", options: Options{CRF: intPtr(0)}},
		{name: "bad trim timestamp", options: Options{Trim: &Trim{Start: "10 seconds"}}, wantErr: true},
		{name: "brightness out of range", options: Options{Filters: &Filters{Brightness: floatPtr(1.5)}}, wantErr: true},
		{name: "volume out of range", options: Options{Audio: &Audio{Volume: floatPtr(2.5)}}, wantErr: true},
		{name: "too many channels", options: Options{Audio: &Audio{Channels: 12}}, wantErr: true},
		{name: "watermark missing path", options: Options{Watermark: &Watermark{Position: "center"}}, wantErr: true},
		{name: "watermark bad position", options: Options{Watermark: &Watermark{Path: "logo.png", Position: "middle"}}, wantErr: true},
		{name: "watermark zero opacity", options: Options{Watermark: &Watermark{Path: "logo.png", Position: "center", Opacity: floatPtr(0)}}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.options.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func argsString(spec EncodeSpec) string {
	return strings.Join(spec.Args(), " ")
}

func TestArgsMinimalSpec(t *testing.T) {
	got := argsString(EncodeSpec{InputPath: "in.mp4", OutputPath: "out.mp4"})
	want := "-hide_banner -nostdin -y -i in.mp4 -progress pipe:1 out.mp4"
	if got != want {
		t.Fatalf("Args() = %q, want %q", got, want)
	}
}

func TestArgsWindow(t *testing.T) {
	got := argsString(EncodeSpec{InputPath: "in.mp4", OutputPath: "seg.mp4", Start: 30, Duration: 15})
	if !strings.Contains(got, "-ss 30.000 -i in.mp4") {
		t.Fatalf("expected seek before input, got %q", got)
	}
	if !strings.Contains(got, "-t 15.000") {
		t.Fatalf("expected duration bound, got %q", got)
	}
}

func TestArgsFullOptions(t *testing.T) {
	got := argsString(EncodeSpec{
		InputPath:  "in.mp4",
		OutputPath: "out.webm",
		Options: Options{
			Quality:    "2000k",
			Format:     "webm",
			Resolution: "1280x720",
			FPS:        24,
			VideoCodec: "libvpx-vp9",
			AudioCodec: "libopus",
			Preset:     "slow",
			CRF:        intPtr(30),
			Tune:       "film",
			HWAccel:    "vaapi",
			Audio:      &Audio{Bitrate: "96k", Channels: 2},
		},
	})
	for _, fragment := range []string{
		"-hwaccel vaapi",
		"-c:v libvpx-vp9",
		"-c:a libopus",
		"-b:v 2000k",
		"-b:a 96k",
		"-ac 2",
		"-s 1280x720",
		"-r 24",
		"-preset slow",
		"-crf 30",
		"-tune film",
		"-f webm",
	} {
		if !strings.Contains(got, fragment) {
			t.Fatalf("expected %q in args, got %q", fragment, got)
		}
	}
}

func TestArgsVideoFilterChain(t *testing.T) {
	got := argsString(EncodeSpec{
		InputPath:  "in.mp4",
		OutputPath: "out.mp4",
		Options: Options{
			Filters: &Filters{
				Brightness: floatPtr(0.1),
				Saturation: floatPtr(1.2),
				Blur:       floatPtr(2),
			},
		},
	})
	if !strings.Contains(got, "-vf eq=brightness=0.1:saturation=1.2,boxblur=2") {
		t.Fatalf("unexpected filter chain in %q", got)
	}
}

func TestArgsAudioVolume(t *testing.T) {
	got := argsString(EncodeSpec{
		InputPath:  "in.mp4",
		OutputPath: "out.mp4",
		Options:    Options{Audio: &Audio{Volume: floatPtr(0.5)}},
	})
	if !strings.Contains(got, "-af volume=0.5") {
		t.Fatalf("expected volume filter in %q", got)
	}
}

func TestArgsWatermarkOverlay(t *testing.T) {
	args := EncodeSpec{
		InputPath:  "in.mp4",
		OutputPath: "out.mp4",
		Options: Options{
			Watermark: &Watermark{Path: "logo.png", Position: "topRight"},
		},
	}.Args()

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-i in.mp4 -i logo.png") {
		t.Fatalf("expected watermark as second input, got %q", joined)
	}
	if !strings.Contains(joined, "-filter_complex [0:v][1:v]overlay=W-w-10:10") {
		t.Fatalf("unexpected overlay graph in %q", joined)
	}
}

func TestArgsWatermarkWithOpacityAndFilters(t *testing.T) {
	got := argsString(EncodeSpec{
		InputPath:  "in.mp4",
		OutputPath: "out.mp4",
		Options: Options{
			Filters:   &Filters{Contrast: floatPtr(1.1)},
			Watermark: &Watermark{Path: "logo.png", Position: "center", Opacity: floatPtr(0.4)},
		},
	})
	want := "[0:v]eq=contrast=1.1[base];[1:v]format=rgba,colorchannelmixer=aa=0.4[wm];[base][wm]overlay=(W-w)/2:(H-h)/2"
	if !strings.Contains(got, want) {
		t.Fatalf("expected graph %q in %q", want, got)
	}
	if strings.Contains(got, "-vf ") {
		t.Fatalf("filters must fold into the overlay graph, got %q", got)
	}
}

func TestThumbnailArgs(t *testing.T) {
	got := strings.Join(ThumbnailArgs("in.mp4", "thumb.jpg", 12.5), " ")
	want := "-hide_banner -nostdin -y -ss 12.500 -i in.mp4 -frames:v 1 thumb.jpg"
	if got != want {
		t.Fatalf("ThumbnailArgs = %q, want %q", got, want)
	}
}
