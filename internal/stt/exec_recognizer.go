package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/vaani-labs/vaani-core/internal/audio"
	"github.com/vaani-labs/vaani-core/internal/config"
	"github.com/vaani-labs/vaani-core/internal/stage"
)

// execRecognizer shells out to a local recognizer command (e.g. a
// whisper.cpp wrapper). A mutex serializes access to the model process.
type execRecognizer struct {
	cmd []string
	cfg config.STTConfig
	mu  sync.Mutex
}

type execResult struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

func NewExecRecognizer(cfg config.STTConfig) (Recognizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stt command is empty")
	}
	return &execRecognizer{cmd: args, cfg: cfg}, nil
}

func (r *execRecognizer) Transcribe(ctx context.Context, buf audio.Buffer) (Transcription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.CreateTemp(os.TempDir(), "vaani_stt_*.wav")
	if err != nil {
		return Transcription{}, stage.Internal(fmt.Errorf("temp file: %w", err))
	}
	name := file.Name()
	file.Close()
	defer os.Remove(name)

	if err := audio.WriteWAVFile(name, buf); err != nil {
		return Transcription{}, stage.Internal(err)
	}

	cmdArgs := append([]string{}, r.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", name)
	if r.cfg.ModelPath != "" {
		cmdArgs = append(cmdArgs, "--model", r.cfg.ModelPath)
	}
	if r.cfg.Language != "" {
		cmdArgs = append(cmdArgs, "--language", r.cfg.Language)
	}

	command := exec.CommandContext(ctx, r.cmd[0], cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return Transcription{}, ctx.Err()
		}
		return Transcription{}, stage.Unavailable(fmt.Errorf("stt command failed: %w: %s", err, stderr.String()))
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Transcription{}, stage.Internal(fmt.Errorf("decode stt response: %w", err))
	}
	return Transcription{
		Text:     strings.TrimSpace(resp.Text),
		Language: strings.ToLower(strings.TrimSpace(resp.Language)),
		Segments: resp.Segments,
	}, nil
}
