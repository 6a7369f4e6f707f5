package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vaani-labs/vaani-core/internal/stage"
)

// httpTranslator calls a local inference endpoint speaking a minimal JSON
// API, the same shape local model servers expose.
type httpTranslator struct {
	endpoint string
	model    string
	client   *http.Client
}

type httpRequest struct {
	Model      string `json:"model,omitempty"`
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type httpResponse struct {
	TranslatedText string `json:"translated_text"`
}

func NewHTTPTranslator(endpoint, model string) Translator {
	return &httpTranslator{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (t *httpTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	payload, err := json.Marshal(httpRequest{
		Model:      t.model,
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	})
	if err != nil {
		return Result{}, stage.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/v1/translate", bytes.NewReader(payload))
	if err != nil {
		return Result{}, stage.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, stage.Unavailable(fmt.Errorf("translation endpoint unreachable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, stage.Unavailable(fmt.Errorf("translation endpoint returned %d", resp.StatusCode))
	}

	var body httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, stage.Internal(fmt.Errorf("decode translation response: %w", err))
	}
	return Result{TranslatedText: body.TranslatedText, SourceLang: sourceLang, TargetLang: targetLang}, nil
}
