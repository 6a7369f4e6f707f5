package audio

import (
	"fmt"
	"math"
)

// Preprocessor normalizes raw input audio into the canonical mono 16kHz
// form. Near-silence is flagged, not rejected; it is a valid signal the
// pipeline handles deterministically downstream.
type Preprocessor struct {
	targetRate int
	silenceRMS float64
}

func NewPreprocessor(targetRate int, silenceRMS float64) *Preprocessor {
	if targetRate <= 0 {
		targetRate = TargetSampleRate
	}
	return &Preprocessor{targetRate: targetRate, silenceRMS: silenceRMS}
}

// Normalize validates, downmixes, resamples and clamps raw audio. The input
// buffer is never mutated.
func (p *Preprocessor) Normalize(raw Buffer) (Buffer, error) {
	if len(raw.Samples) == 0 {
		return Buffer{}, fmt.Errorf("%w: empty sample data", ErrInvalidAudio)
	}
	if raw.Channels <= 0 {
		return Buffer{}, fmt.Errorf("%w: channel count must be positive", ErrInvalidAudio)
	}
	if raw.SampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: sample rate must be positive", ErrInvalidAudio)
	}
	for _, s := range raw.Samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return Buffer{}, fmt.Errorf("%w: non-finite sample", ErrInvalidAudio)
		}
	}

	mono := downmix(raw.Samples, raw.Channels)
	resampled := resample(mono, raw.SampleRate, p.targetRate)
	clamp(resampled)

	out := Buffer{
		Samples:    resampled,
		SampleRate: p.targetRate,
		Channels:   1,
	}
	out.Silent = out.RMS() < p.silenceRMS
	return out, nil
}

// downmix averages interleaved channels into a single channel.
func downmix(samples []float32, channels int) []float32 {
	if channels == 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resample performs linear interpolation between sample rates.
func resample(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 {
		return samples
	}
	ratio := float64(from) / float64(to)
	outLen := int(math.Max(1, math.Round(float64(len(samples))/ratio)))
	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

func clamp(samples []float32) {
	for i, s := range samples {
		if s > 1 {
			samples[i] = 1
		} else if s < -1 {
			samples[i] = -1
		}
	}
}
