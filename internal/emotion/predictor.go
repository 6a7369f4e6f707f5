package emotion

import (
	"context"

	"github.com/vaani-labs/vaani-core/internal/audio"
)

// AudioPredictor abstracts audio-based emotion recognition backends.
// Implementations must be safe for concurrent invocation.
type AudioPredictor interface {
	Predict(ctx context.Context, buf audio.Buffer) (Prediction, error)
}

// TextPredictor abstracts text-based emotion recognition backends.
type TextPredictor interface {
	Predict(ctx context.Context, text string) (Prediction, error)
}
