// Package ws delivers typed job events to subscribed websocket clients.
// A connection follows at most one job at a time; broadcast is a
// best-effort fan-out keyed by job id with no buffering for late
// subscribers.
package ws

// EventType enumerates the messages flowing to progress subscribers.
type EventType string

const (
	// EventTypeProgress carries a percentage update for one phase of a
	// job (upload or encode).
	EventTypeProgress EventType = "progress"
	// EventTypeStatus carries a lifecycle announcement such as
	// completion.
	EventTypeStatus EventType = "status"
	// EventTypeError carries a human-readable failure message.
	EventTypeError EventType = "error"
)

// Event is the wire representation sent to subscribers.
type Event struct {
	Type  EventType `json:"type"`
	JobID string    `json:"jobId"`
	Data  any       `json:"data,omitempty"`
}

// ProgressData is the payload for progress events.
type ProgressData struct {
	Phase   string  `json:"phase"`
	Percent float64 `json:"percent"`

	// Chunk counters, set during the upload phase.
	ReceivedChunks int `json:"receivedChunks,omitempty"`
	TotalChunks    int `json:"totalChunks,omitempty"`

	// Segment counters, set during the encode phase.
	CompletedSegments int `json:"completedSegments,omitempty"`
	TotalSegments     int `json:"totalSegments,omitempty"`
}

// StatusData is the payload for status events.
type StatusData struct {
	Status     string `json:"status"`
	OutputPath string `json:"outputPath,omitempty"`
}

// ErrorData is the payload for error events.
type ErrorData struct {
	Message string `json:"message"`
}

// Progress builds a progress event for a job.
func Progress(jobID string, data ProgressData) Event {
	return Event{Type: EventTypeProgress, JobID: jobID, Data: data}
}

// Status builds a status event for a job.
func Status(jobID string, data StatusData) Event {
	return Event{Type: EventTypeStatus, JobID: jobID, Data: data}
}

// Error builds an error event for a job.
func Error(jobID, message string) Event {
	return Event{Type: EventTypeError, JobID: jobID, Data: ErrorData{Message: message}}
}

// Broadcaster is the delivery contract consumed by the upload and dispatch
// layers. The Hub implements it; tests inject fakes.
type Broadcaster interface {
	Broadcast(event Event)
}
