package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/vaani-labs/vaani-core/internal/stage"
)

// execTranslator shells out to a local translation command. The command
// receives the request as JSON on stdin and prints a JSON result on stdout.
type execTranslator struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type execResponse struct {
	TranslatedText string `json:"translated_text"`
}

func NewExecTranslator(command string) (Translator, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse translation command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("translation command is empty")
	}
	return &execTranslator{cmd: args}, nil
}

func (t *execTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	payload, err := json.Marshal(execRequest{Text: text, SourceLang: sourceLang, TargetLang: targetLang})
	if err != nil {
		return Result{}, stage.Internal(err)
	}

	command := exec.CommandContext(ctx, t.cmd[0], t.cmd[1:]...)
	command.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, stage.Unavailable(fmt.Errorf("translation command failed: %w: %s", err, stderr.String()))
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, stage.Internal(fmt.Errorf("decode translation response: %w", err))
	}
	return Result{TranslatedText: resp.TranslatedText, SourceLang: sourceLang, TargetLang: targetLang}, nil
}
