package logging

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event is one structured log record emitted during a backup.
type Event struct {
	Time   time.Time         `json:"time"`
	Name   string            `json:"event"`
	CastID string            `json:"cast_id,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Emitter receives structured events from the backup pipeline.
type Emitter interface {
	Emit(event Event)
}

// JSONEmitter writes events as one JSON object per line.
type JSONEmitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONEmitter creates an emitter writing to w.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{enc: json.NewEncoder(w)}
}

// Emit writes the event. Encoding failures are swallowed: logging must
// never fail a backup.
func (e *JSONEmitter) Emit(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.enc.Encode(event)
}

// Recorder is an Emitter that keeps events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit stores the event.
func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Nop is an Emitter that discards everything.
type Nop struct{}

// Emit discards the event.
func (Nop) Emit(Event) {}
