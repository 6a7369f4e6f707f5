package stt

import (
	"context"
	"fmt"

	"github.com/vaani-labs/vaani-core/internal/audio"
)

type mockRecognizer struct {
	language string
}

// NewMockRecognizer returns a deterministic placeholder recognizer for
// development runs without model weights.
func NewMockRecognizer(language string) Recognizer {
	if language == "" {
		language = "en"
	}
	return &mockRecognizer{language: language}
}

func (m *mockRecognizer) Transcribe(_ context.Context, buf audio.Buffer) (Transcription, error) {
	durationMS := int64(buf.Duration() * 1000)
	text := fmt.Sprintf("[transcript samples=%d]", len(buf.Samples))
	return Transcription{
		Text:     text,
		Language: m.language,
		Segments: []Segment{{Text: text, StartMS: 0, EndMS: durationMS}},
	}, nil
}
