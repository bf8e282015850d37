// Package encode drives segmented transcodes: it probes the source, splits
// the encode window into fixed-length segments, runs them through the media
// engine, and stitches the pieces back together.
package encode

import "github.com/nischay-chauhan/video-transcode/internal/media"

// Segment is one slice of the encode window.
type Segment struct {
	Index    int
	Start    float64
	Duration float64
}

// DefaultSegmentSeconds is the segment length used when the caller does not
// override it.
const DefaultSegmentSeconds = 30.0

// PlanSegments splits the window [start, start+duration) into consecutive
// segments of at most segmentSeconds each. A non-positive duration yields a
// single unbounded segment, which encodes the source in one pass.
func PlanSegments(start, duration, segmentSeconds float64) []Segment {
	if duration <= 0 {
		return []Segment{{Index: 0, Start: start, Duration: 0}}
	}
	if segmentSeconds <= 0 {
		segmentSeconds = DefaultSegmentSeconds
	}
	if duration <= segmentSeconds {
		return []Segment{{Index: 0, Start: start, Duration: duration}}
	}

	var segments []Segment
	offset := 0.0
	for index := 0; offset < duration; index++ {
		length := segmentSeconds
		if remaining := duration - offset; remaining < length {
			length = remaining
		}
		segments = append(segments, Segment{
			Index:    index,
			Start:    start + offset,
			Duration: length,
		})
		offset += length
	}
	return segments
}

// EncodeWindow resolves the portion of the source to encode from the probed
// duration and an optional trim. Returns the window start and duration; a
// zero duration means the whole remainder of the source.
func EncodeWindow(probed float64, trim *media.Trim) (start, duration float64, err error) {
	duration = probed
	if trim == nil {
		return 0, duration, nil
	}
	if trim.Start != "" {
		start, err = media.ParseTimestamp(trim.Start)
		if err != nil {
			return 0, 0, err
		}
	}
	if trim.Duration != "" {
		length, err := media.ParseTimestamp(trim.Duration)
		if err != nil {
			return 0, 0, err
		}
		if length <= 0 {
			return 0, 0, &Error{Stage: "plan", Message: "trim duration must be positive"}
		}
		if probed > 0 && start+length > probed {
			length = probed - start
		}
		if length <= 0 {
			return 0, 0, &Error{Stage: "plan", Message: "trim start is past the end of the source"}
		}
		return start, length, nil
	}
	if probed > 0 {
		if start >= probed {
			return 0, 0, &Error{Stage: "plan", Message: "trim start is past the end of the source"}
		}
		duration = probed - start
	} else {
		duration = 0
	}
	return start, duration, nil
}
