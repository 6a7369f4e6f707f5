package pipeline

import "github.com/vaani-labs/vaani-core/internal/emotion"

// prosodySpeed maps an emotion label to the fixed speaking-speed multiplier
// consumed by TTS. A pure lookup table; the sole channel through which
// emotion affects synthesized audio.
func prosodySpeed(label emotion.Label) float64 {
	switch label {
	case emotion.Happy:
		return 1.05
	case emotion.Sad:
		return 0.92
	case emotion.Angry:
		return 1.10
	case emotion.Fearful:
		return 1.05
	default:
		return 1.00
	}
}
