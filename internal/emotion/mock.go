package emotion

import (
	"context"
	"strings"

	"github.com/vaani-labs/vaani-core/internal/audio"
)

type mockAudioPredictor struct{}

// NewMockAudioPredictor returns a deterministic audio predictor for
// development runs without model weights. Louder input skews happier.
func NewMockAudioPredictor() AudioPredictor {
	return &mockAudioPredictor{}
}

func (m *mockAudioPredictor) Predict(_ context.Context, buf audio.Buffer) (Prediction, error) {
	scores := Distribution{Neutral: 0.6, Happy: 0.1, Sad: 0.1, Angry: 0.1, Fearful: 0.1}
	if buf.RMS() > 0.3 {
		scores = Distribution{Neutral: 0.2, Happy: 0.5, Sad: 0.1, Angry: 0.1, Fearful: 0.1}
	}
	label, confidence := scores.Top()
	return Prediction{Label: label, Confidence: confidence, Scores: scores}, nil
}

type mockTextPredictor struct{}

// NewMockTextPredictor returns a keyword-driven text predictor.
func NewMockTextPredictor() TextPredictor {
	return &mockTextPredictor{}
}

var mockTextCues = map[Label][]string{
	Happy:   {"happy", "great", "wonderful", "glad"},
	Sad:     {"sad", "sorry", "miss"},
	Angry:   {"angry", "furious", "hate"},
	Fearful: {"afraid", "scared", "worried"},
}

func (m *mockTextPredictor) Predict(_ context.Context, text string) (Prediction, error) {
	lowered := strings.ToLower(text)
	scores := Distribution{Neutral: 0.5, Happy: 0.125, Sad: 0.125, Angry: 0.125, Fearful: 0.125}
scan:
	for _, label := range Labels() {
		for _, cue := range mockTextCues[label] {
			if strings.Contains(lowered, cue) {
				scores = Distribution{Neutral: 0.1, Happy: 0.1, Sad: 0.1, Angry: 0.1, Fearful: 0.1}
				scores[label] = 0.6
				break scan
			}
		}
	}
	scores = scores.Normalize()
	label, confidence := scores.Top()
	return Prediction{Label: label, Confidence: confidence, Scores: scores}, nil
}
