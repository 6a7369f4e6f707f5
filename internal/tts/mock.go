package tts

import (
	"context"
	"math"

	"github.com/vaani-labs/vaani-core/internal/audio"
)

type mockSynth struct {
	sampleRate int
	channels   int
}

// NewMockSynth returns a synthesizer that renders a quiet tone whose length
// tracks the text length and speed multiplier. Useful for development runs
// and end-to-end tests without a voice model.
func NewMockSynth(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	// 60ms of audio per character, scaled by speed.
	samplesPerChar := float64(m.sampleRate) * 0.06
	n := int(samplesPerChar*float64(len(req.Text))/speed) * m.channels

	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.05 * math.Sin(2*math.Pi*220*float64(i)/float64(m.sampleRate)))
	}

	return audio.EncodeWAVBytes(audio.Buffer{
		Samples:    samples,
		SampleRate: m.sampleRate,
		Channels:   m.channels,
	})
}
