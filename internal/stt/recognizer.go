package stt

import (
	"context"

	"github.com/vaani-labs/vaani-core/internal/audio"
)

// LanguageUnknown is reported when no recognition ran, e.g. for silent input.
const LanguageUnknown = "unknown"

// Segment is one time-aligned span of the transcript.
type Segment struct {
	Text    string `json:"text"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// Transcription captures recognizer output for a whole utterance.
type Transcription struct {
	Text     string
	Language string
	Segments []Segment
}

// Recognizer abstracts STT backends. Implementations must be safe for
// concurrent invocation and must not retry internally.
type Recognizer interface {
	Transcribe(ctx context.Context, buf audio.Buffer) (Transcription, error)
}

type silenceGate struct {
	next Recognizer
}

// SilenceAware wraps a recognizer so silent buffers short-circuit to an
// empty transcript without invoking the model.
func SilenceAware(next Recognizer) Recognizer {
	return &silenceGate{next: next}
}

func (g *silenceGate) Transcribe(ctx context.Context, buf audio.Buffer) (Transcription, error) {
	if buf.Silent {
		return Transcription{Text: "", Language: LanguageUnknown}, nil
	}
	return g.next.Transcribe(ctx, buf)
}
