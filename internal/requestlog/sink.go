package requestlog

import (
	"context"
	"time"
)

// Record is the structured per-request entry emitted once per completed
// pipeline run. It is fire-and-forget: writing it never blocks or fails the
// response path.
type Record struct {
	SessionID        string           `json:"session_id"`
	Status           string           `json:"status"`
	ErrorKind        string           `json:"error_kind,omitempty"`
	DetectedLanguage string           `json:"detected_language,omitempty"`
	Emotion          string           `json:"emotion,omitempty"`
	Dialect          string           `json:"dialect,omitempty"`
	TargetLang       string           `json:"target_lang,omitempty"`
	StageLatencyMS   map[string]int64 `json:"stage_latency_ms"`
	DegradedStages   []string         `json:"degraded_stages,omitempty"`
	TotalMS          int64            `json:"total_ms"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Sink accepts per-request records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

type nopSink struct{}

// NewNopSink discards records; used when request logging is disabled.
func NewNopSink() Sink { return nopSink{} }

func (nopSink) Write(context.Context, Record) error { return nil }

type multiSink struct {
	sinks []Sink
}

// NewMultiSink fans a record out to every sink, returning the first error.
func NewMultiSink(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (m *multiSink) Write(ctx context.Context, rec Record) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
