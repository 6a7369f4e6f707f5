package audio

import (
	"errors"
	"math"
)

// TargetSampleRate is the canonical rate every pipeline stage expects.
const TargetSampleRate = 16000

// ErrInvalidAudio marks input that cannot enter the pipeline at all.
var ErrInvalidAudio = errors.New("invalid audio")

// Buffer is an immutable PCM waveform. After preprocessing SampleRate is
// 16000 and Channels is 1; stages must treat Samples as read-only.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Silent     bool
}

// Duration returns the buffer length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate*b.Channels)
}

// RMS computes root-mean-square energy over all samples.
func (b Buffer) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.Samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}
