package translate

import (
	"context"
	"fmt"
)

// Result is a completed translation. Translation is a pure function of
// (text, source, target); emotion and dialect never enter this stage.
type Result struct {
	TranslatedText string
	SourceLang     string
	TargetLang     string
}

// Translator abstracts translation backends. Implementations must be safe
// for concurrent invocation and must not retry internally.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error)
}

type mockTranslator struct{}

// NewMockTranslator returns a deterministic placeholder translator.
func NewMockTranslator() Translator {
	return &mockTranslator{}
}

func (m *mockTranslator) Translate(_ context.Context, text, sourceLang, targetLang string) (Result, error) {
	return Result{
		TranslatedText: fmt.Sprintf("[%s>%s] %s", sourceLang, targetLang, text),
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
	}, nil
}
