package emotion

// Label is one of the five canonical emotion categories.
type Label string

const (
	Neutral Label = "neutral"
	Happy   Label = "happy"
	Sad     Label = "sad"
	Angry   Label = "angry"
	Fearful Label = "fearful"
)

// Labels returns the canonical label set in stable order.
func Labels() []Label {
	return []Label{Neutral, Happy, Sad, Angry, Fearful}
}

// ParseLabel maps a string onto the canonical set.
func ParseLabel(s string) (Label, bool) {
	switch Label(s) {
	case Neutral, Happy, Sad, Angry, Fearful:
		return Label(s), true
	}
	return "", false
}

// Distribution maps each label to a probability. Stages exchange
// distributions normalized to sum ~1.0.
type Distribution map[Label]float64

// Normalize returns a copy scaled to sum to 1.0 over the canonical set.
// A zero-mass distribution normalizes to all zeros.
func (d Distribution) Normalize() Distribution {
	out := make(Distribution, len(Labels()))
	var total float64
	for _, l := range Labels() {
		total += d[l]
	}
	if total <= 0 {
		for _, l := range Labels() {
			out[l] = 0
		}
		return out
	}
	for _, l := range Labels() {
		out[l] = d[l] / total
	}
	return out
}

// Top returns the highest-scoring label, breaking ties by canonical order.
func (d Distribution) Top() (Label, float64) {
	best := Neutral
	bestScore := d[Neutral]
	for _, l := range Labels()[1:] {
		if d[l] > bestScore {
			best = l
			bestScore = d[l]
		}
	}
	return best, bestScore
}

// Prediction is one model's verdict over the canonical label set.
type Prediction struct {
	Label      Label
	Confidence float64
	Scores     Distribution
}

// Fused is the single emotion verdict the pipeline carries forward. Audio
// scores are always present; text scores are nil when no text-derived
// distribution participated.
type Fused struct {
	Label       Label
	Confidence  float64
	AudioScores Distribution
	TextScores  Distribution
}
