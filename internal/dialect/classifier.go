package dialect

import (
	"context"
	"strings"

	"github.com/vaani-labs/vaani-core/internal/config"
)

// Label is a regional dialect verdict. Dialect is pure metadata: it never
// influences translation or synthesis.
type Label string

const (
	Telangana      Label = "telangana"
	Andhra         Label = "andhra"
	StandardTelugu Label = "standard_telugu"
	Standard       Label = "standard"
)

// Verdict is the classifier output.
type Verdict struct {
	Label      Label
	Confidence float64
}

// DefaultVerdict is what the orchestrator substitutes when the classifier
// times out.
func DefaultVerdict() Verdict {
	return Verdict{Label: Standard, Confidence: 0}
}

// Detector abstracts dialect classification backends. Implementations must
// be safe for concurrent invocation and must not retry internally.
type Detector interface {
	Detect(ctx context.Context, text, language string) (Verdict, error)
}

// Classifier detects a Telugu regional dialect by keyword density over two
// lexicons. No ML model; the lexicons are configurable empirical lists.
type Classifier struct {
	language  string
	telangana []string
	andhra    []string
}

func NewClassifier(cfg config.DialectConfig) *Classifier {
	return &Classifier{
		language:  cfg.Language,
		telangana: lowerAll(cfg.TelanganaKeywords),
		andhra:    lowerAll(cfg.AndhraKeywords),
	}
}

// Detect classifies the transcript. Non-Telugu input returns the plain
// standard label immediately, without a lexicon scan.
func (c *Classifier) Detect(_ context.Context, text, language string) (Verdict, error) {
	if language != c.language {
		return Verdict{Label: Standard, Confidence: 1.0}, nil
	}

	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Verdict{Label: StandardTelugu, Confidence: 0.5}, nil
	}

	words := len(strings.Fields(normalized))
	if words == 0 {
		words = 1
	}

	telanganaHits := countHits(normalized, c.telangana)
	andhraHits := countHits(normalized, c.andhra)

	if telanganaHits == 0 && andhraHits == 0 {
		return Verdict{Label: StandardTelugu, Confidence: 0.5}, nil
	}
	if telanganaHits == andhraHits {
		return Verdict{Label: StandardTelugu, Confidence: density(telanganaHits, words)}, nil
	}

	if telanganaHits > andhraHits {
		return Verdict{Label: Telangana, Confidence: density(telanganaHits, words)}, nil
	}
	return Verdict{Label: Andhra, Confidence: density(andhraHits, words)}, nil
}

// density converts a hit count into a confidence in (0, 1].
func density(hits, words int) float64 {
	d := float64(hits) / float64(words)
	if d > 1 {
		return 1
	}
	return d
}

func countHits(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		hits += strings.Count(text, kw)
	}
	return hits
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
