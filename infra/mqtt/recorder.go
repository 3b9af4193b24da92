package mqtt

import (
	"time"

	"github.com/google/uuid"

	coremetrics "github.com/kilianp07/gridsweep/core/metrics"
)

// Publisher publishes JSON payloads below a topic prefix.
type Publisher interface {
	Topic(parts ...string) string
	Publish(topic string, v any) error
}

// RunMessage is the payload published for every executed run.
type RunMessage struct {
	MessageID string  `json:"message_id"`
	Session   string  `json:"session"`
	RunID     int     `json:"run_id"`
	Status    string  `json:"status"`
	Objective float64 `json:"objective,omitempty"`
	Seconds   float64 `json:"seconds"`
	Error     string  `json:"error,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// SweepMessage is the payload published when a sweep finishes.
type SweepMessage struct {
	MessageID string  `json:"message_id"`
	Session   string  `json:"session"`
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
	Seconds   float64 `json:"seconds"`
	Timestamp int64   `json:"timestamp"`
}

// Recorder publishes run events on <prefix>/<session>/runs and sweep
// summaries on <prefix>/<session>/summary.
type Recorder struct {
	pub Publisher
}

// NewRecorder wraps a publisher.
func NewRecorder(pub Publisher) *Recorder {
	return &Recorder{pub: pub}
}

// RecordRun publishes one RunMessage.
func (r *Recorder) RecordRun(ev coremetrics.RunEvent) error {
	return r.pub.Publish(r.pub.Topic(ev.Session, "runs"), RunMessage{
		MessageID: uuid.NewString(),
		Session:   ev.Session,
		RunID:     ev.RunID,
		Status:    ev.Status,
		Objective: ev.Objective,
		Seconds:   ev.Duration.Seconds(),
		Error:     ev.Err,
		Timestamp: stamp(ev.Time),
	})
}

// RecordSweep publishes one SweepMessage.
func (r *Recorder) RecordSweep(ev coremetrics.SweepEvent) error {
	return r.pub.Publish(r.pub.Topic(ev.Session, "summary"), SweepMessage{
		MessageID: uuid.NewString(),
		Session:   ev.Session,
		Total:     ev.Total,
		Completed: ev.Completed,
		Failed:    ev.Failed,
		Skipped:   ev.Skipped,
		Seconds:   ev.Duration.Seconds(),
		Timestamp: stamp(ev.Time),
	})
}

func stamp(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}
