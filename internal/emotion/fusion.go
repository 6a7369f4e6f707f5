package emotion

// Fuser combines an audio-derived emotion distribution with an optional
// text-derived one. Audio is the primary signal: it is always present, it
// wins ties, and text only participates when its top confidence clears the
// configured minimum. Fuse is a pure function of its inputs.
type Fuser struct {
	audioWeight       float64
	textWeight        float64
	textMinConfidence float64
}

func NewFuser(audioWeight, textWeight, textMinConfidence float64) *Fuser {
	return &Fuser{
		audioWeight:       audioWeight,
		textWeight:        textWeight,
		textMinConfidence: textMinConfidence,
	}
}

// Silence is the single authoritative verdict for silent input audio.
func (f *Fuser) Silence() Fused {
	return Fused{
		Label:       Neutral,
		Confidence:  1.0,
		AudioScores: Distribution{Neutral: 1.0},
	}
}

// Fuse combines the two distributions. text may be nil.
func (f *Fuser) Fuse(audio Prediction, text *Prediction) Fused {
	audioScores := audio.Scores.Normalize()

	useText := text != nil && text.Confidence >= f.textMinConfidence
	if !useText {
		label, confidence := topPreferring(audioScores, audio.Label)
		return Fused{
			Label:       label,
			Confidence:  confidence,
			AudioScores: audioScores,
		}
	}

	textScores := text.Scores.Normalize()
	fused := make(Distribution, len(Labels()))
	for _, l := range Labels() {
		fused[l] = f.audioWeight*audioScores[l] + f.textWeight*textScores[l]
	}
	fused = fused.Normalize()

	label, confidence := topPreferring(fused, audio.Label)
	return Fused{
		Label:       label,
		Confidence:  confidence,
		AudioScores: audioScores,
		TextScores:  textScores,
	}
}

// topPreferring picks the argmax, resolving exact ties in favor of the
// audio-derived label.
func topPreferring(scores Distribution, preferred Label) (Label, float64) {
	best, bestScore := scores.Top()
	if scores[preferred] >= bestScore {
		return preferred, scores[preferred]
	}
	return best, bestScore
}
