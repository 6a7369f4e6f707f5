package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/vaani-labs/vaani-core/internal/stage"
)

// execSynth shells out to a local synthesis command. The command receives
// the request as JSON on stdin and prints base64 WAV bytes on stdout.
type execSynth struct {
	cmd        []string
	voice      string
	sampleRate int
	channels   int
	mu         sync.Mutex
}

type execRequest struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Voice      string  `json:"voice,omitempty"`
	Speed      float64 `json:"speed"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
}

type execResponse struct {
	WAVBase64 string `json:"wav_base64"`
}

func NewExecSynth(command, voice string, sampleRate, channels int) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command is empty")
	}
	return &execSynth{cmd: args, voice: voice, sampleRate: sampleRate, channels: channels}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	voice := req.Voice
	if voice == "" {
		voice = e.voice
	}
	payload, err := json.Marshal(execRequest{
		Text:       req.Text,
		Language:   req.Language,
		Voice:      voice,
		Speed:      req.Speed,
		SampleRate: e.sampleRate,
		Channels:   e.channels,
	})
	if err != nil {
		return nil, stage.Internal(err)
	}

	command := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	command.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: tts command failed: %s", ErrUnavailable, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, stage.Internal(fmt.Errorf("decode tts response: %w", err))
	}
	wavBytes, err := base64.StdEncoding.DecodeString(resp.WAVBase64)
	if err != nil {
		return nil, stage.Internal(fmt.Errorf("decode tts audio: %w", err))
	}
	return wavBytes, nil
}
