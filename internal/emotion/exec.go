package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/vaani-labs/vaani-core/internal/audio"
	"github.com/vaani-labs/vaani-core/internal/stage"
)

// execAudioPredictor shells out to a classifier command. The command
// receives a WAV path and prints a JSON verdict on stdout. A mutex
// serializes access since local model runtimes are single-flight.
type execAudioPredictor struct {
	cmd       []string
	modelPath string
	mu        sync.Mutex
}

type execPrediction struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
}

func NewExecAudioPredictor(command, modelPath string) (AudioPredictor, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse audio emotion command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("audio emotion command is empty")
	}
	return &execAudioPredictor{cmd: args, modelPath: modelPath}, nil
}

func (p *execAudioPredictor) Predict(ctx context.Context, buf audio.Buffer) (Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	file, err := os.CreateTemp(os.TempDir(), "vaani_emotion_*.wav")
	if err != nil {
		return Prediction{}, stage.Internal(fmt.Errorf("temp file: %w", err))
	}
	name := file.Name()
	file.Close()
	defer os.Remove(name)

	if err := audio.WriteWAVFile(name, buf); err != nil {
		return Prediction{}, stage.Internal(err)
	}

	args := append([]string{}, p.cmd[1:]...)
	args = append(args, "--audio", name)
	if p.modelPath != "" {
		args = append(args, "--model", p.modelPath)
	}
	return runPredictionCommand(ctx, p.cmd[0], args)
}

// execTextPredictor shells out to a text classifier command.
type execTextPredictor struct {
	cmd []string
	mu  sync.Mutex
}

func NewExecTextPredictor(command string) (TextPredictor, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse text emotion command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("text emotion command is empty")
	}
	return &execTextPredictor{cmd: args}, nil
}

func (p *execTextPredictor) Predict(ctx context.Context, text string) (Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	args := append([]string{}, p.cmd[1:]...)
	args = append(args, "--text", text)
	return runPredictionCommand(ctx, p.cmd[0], args)
}

func runPredictionCommand(ctx context.Context, base string, args []string) (Prediction, error) {
	command := exec.CommandContext(ctx, base, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return Prediction{}, ctx.Err()
		}
		return Prediction{}, stage.Unavailable(fmt.Errorf("emotion command failed: %w: %s", err, stderr.String()))
	}

	var resp execPrediction
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Prediction{}, stage.Internal(fmt.Errorf("decode emotion response: %w", err))
	}

	scores := make(Distribution, len(Labels()))
	for raw, v := range resp.Scores {
		if label, ok := ParseLabel(raw); ok {
			scores[label] = v
		}
	}
	label, ok := ParseLabel(resp.Label)
	if !ok {
		label, _ = scores.Top()
	}
	return Prediction{Label: label, Confidence: resp.Confidence, Scores: scores.Normalize()}, nil
}
