package tts

import (
	"context"
	"errors"
)

// ErrUnavailable reports that no synthesis backend can serve the request.
// The orchestrator treats it as a graceful degradation, never a hard
// failure.
var ErrUnavailable = errors.New("tts synthesizer unavailable")

// Request describes one synthesis call. Speed is the emotion-derived
// prosody multiplier; it is the only channel through which emotion reaches
// the synthesized audio.
type Request struct {
	Text     string
	Language string
	Voice    string
	Speed    float64
}

// Synthesizer produces complete WAV audio for a request. Implementations
// must be safe for concurrent invocation and must not retry internally.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

type unavailableSynth struct{}

// NewUnavailableSynth stands in when TTS is disabled, keeping the
// degradation path uniform.
func NewUnavailableSynth() Synthesizer {
	return &unavailableSynth{}
}

func (u *unavailableSynth) Synthesize(context.Context, Request) ([]byte, error) {
	return nil, ErrUnavailable
}
