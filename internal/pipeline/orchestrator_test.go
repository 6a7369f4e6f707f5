package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vaani-labs/vaani-core/internal/audio"
	"github.com/vaani-labs/vaani-core/internal/config"
	"github.com/vaani-labs/vaani-core/internal/dialect"
	"github.com/vaani-labs/vaani-core/internal/emotion"
	"github.com/vaani-labs/vaani-core/internal/models"
	"github.com/vaani-labs/vaani-core/internal/requestlog"
	"github.com/vaani-labs/vaani-core/internal/sessionstore"
	"github.com/vaani-labs/vaani-core/internal/stage"
	"github.com/vaani-labs/vaani-core/internal/stt"
	"github.com/vaani-labs/vaani-core/internal/translate"
	"github.com/vaani-labs/vaani-core/internal/tts"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Pipeline.TotalBudgetMS = 5000
	cfg.Pipeline.StageBudgetMS = 3000
	cfg.Pipeline.SoftStageBudgetMS = 1000
	return cfg
}

func newTestStore(t *testing.T) *sessionstore.Store {
	t.Helper()
	tmp := t.TempDir()
	s, err := sessionstore.Open(context.Background(), config.SessionConfig{
		Dir:       filepath.Join(tmp, "sessions"),
		IndexPath: filepath.Join(tmp, "sessions.db"),
	}, newLogger())
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fakeRecognizer struct {
	fn func(ctx context.Context, buf audio.Buffer) (stt.Transcription, error)
}

func (f *fakeRecognizer) Transcribe(ctx context.Context, buf audio.Buffer) (stt.Transcription, error) {
	return f.fn(ctx, buf)
}

func staticRecognizer(text, language string) *fakeRecognizer {
	return &fakeRecognizer{fn: func(context.Context, audio.Buffer) (stt.Transcription, error) {
		return stt.Transcription{Text: text, Language: language}, nil
	}}
}

type fakeAudioPredictor struct {
	pred emotion.Prediction
	err  error
}

func (f *fakeAudioPredictor) Predict(context.Context, audio.Buffer) (emotion.Prediction, error) {
	if f.err != nil {
		return emotion.Prediction{}, f.err
	}
	return f.pred, nil
}

type fakeTextPredictor struct {
	fn func(ctx context.Context, text string) (emotion.Prediction, error)
}

func (f *fakeTextPredictor) Predict(ctx context.Context, text string) (emotion.Prediction, error) {
	return f.fn(ctx, text)
}

type fakeDialectDetector struct {
	fn func(ctx context.Context, text, language string) (dialect.Verdict, error)
}

func (f *fakeDialectDetector) Detect(ctx context.Context, text, language string) (dialect.Verdict, error) {
	return f.fn(ctx, text, language)
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTranslator) Translate(_ context.Context, text, sourceLang, targetLang string) (translate.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return translate.Result{}, f.err
	}
	return translate.Result{
		TranslatedText: "[" + sourceLang + ">" + targetLang + "] " + text,
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
	}, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSynth struct {
	mu   sync.Mutex
	reqs []tts.Request
	err  error
}

func (f *fakeSynth) Synthesize(_ context.Context, req tts.Request) ([]byte, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []byte("RIFF fake wav"), nil
}

type blockedSynth struct{}

func (blockedSynth) Synthesize(ctx context.Context, _ tts.Request) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSynth) requests() []tts.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tts.Request, len(f.reqs))
	copy(out, f.reqs)
	return out
}

func neutralAudioPredictor() *fakeAudioPredictor {
	return &fakeAudioPredictor{pred: emotion.Prediction{
		Label:      emotion.Neutral,
		Confidence: 0.6,
		Scores:     emotion.Distribution{emotion.Neutral: 0.6, emotion.Happy: 0.1, emotion.Sad: 0.1, emotion.Angry: 0.1, emotion.Fearful: 0.1},
	}}
}

func newOrchestrator(t *testing.T, cfg config.Config, registry *models.Registry) *Orchestrator {
	t.Helper()
	o := New(cfg, registry, newTestStore(t), requestlog.NewNopSink(), newLogger())
	t.Cleanup(o.Close)
	return o
}

func silentBuffer(seconds int) audio.Buffer {
	return audio.Buffer{
		Samples:    make([]float32, 16000*seconds),
		SampleRate: 16000,
		Channels:   1,
	}
}

func speechBuffer() audio.Buffer {
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = 0.1
	}
	return audio.Buffer{Samples: samples, SampleRate: 16000, Channels: 1}
}

func TestProcessSilentInput(t *testing.T) {
	cfg := testConfig()
	failIfCalled := &fakeRecognizer{fn: func(context.Context, audio.Buffer) (stt.Transcription, error) {
		return stt.Transcription{}, errors.New("recognizer must not run for silence")
	}}
	translator := &fakeTranslator{}
	synth := &fakeSynth{}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(failIfCalled),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   translator,
		Synthesizer:  synth,
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: silentBuffer(2), TargetLang: "hi"})

	if res.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", res.Status, res.ErrorKind)
	}
	if res.Transcript != "" {
		t.Fatalf("expected empty transcript, got %q", res.Transcript)
	}
	if res.DetectedLanguage != stt.LanguageUnknown {
		t.Fatalf("expected unknown language, got %q", res.DetectedLanguage)
	}
	if res.Emotion.Label != emotion.Neutral || res.Emotion.Confidence != 1.0 {
		t.Fatalf("expected neutral/1.0 for silence, got %s/%v", res.Emotion.Label, res.Emotion.Confidence)
	}
	if res.Dialect.Label != dialect.Standard || res.Dialect.Confidence != 1.0 {
		t.Fatalf("expected standard/1.0 dialect, got %s/%v", res.Dialect.Label, res.Dialect.Confidence)
	}
	if res.TranslatedText != "" {
		t.Fatalf("expected empty translation, got %q", res.TranslatedText)
	}
	if translator.callCount() != 0 {
		t.Fatal("translator must not run for empty transcript")
	}
	reqs := synth.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected synthesis to always run, got %d calls", len(reqs))
	}
	if reqs[0].Text != "" || reqs[0].Speed != 1.00 {
		t.Fatalf("expected empty text at neutral speed, got %q at %v", reqs[0].Text, reqs[0].Speed)
	}
	if !strings.HasPrefix(res.OutputAudioRef, "file://") {
		t.Fatalf("expected persisted artifact reference, got %q", res.OutputAudioRef)
	}
}

func TestProcessIdentityTranslation(t *testing.T) {
	cfg := testConfig()
	translator := &fakeTranslator{}
	synth := &fakeSynth{}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("hello there", "en")),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   translator,
		Synthesizer:  synth,
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "en"})

	if res.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", res.Status, res.ErrorKind)
	}
	if res.TranslatedText != "hello there" {
		t.Fatalf("expected identity passthrough, got %q", res.TranslatedText)
	}
	if translator.callCount() != 0 {
		t.Fatal("translator must not run when source equals target")
	}
}

func TestProcessTTSUnavailableDegrades(t *testing.T) {
	cfg := testConfig()
	translator := &fakeTranslator{}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("hello there", "en")),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   translator,
		Synthesizer:  tts.NewUnavailableSynth(),
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "te"})

	if res.Status != StatusPartial {
		t.Fatalf("expected partial_success, got %s (%s)", res.Status, res.ErrorKind)
	}
	if !containsStage(res.DegradedStages, StageTTS) {
		t.Fatalf("expected tts degraded, got %v", res.DegradedStages)
	}
	if res.OutputAudioRef != "" {
		t.Fatalf("expected no artifact reference, got %q", res.OutputAudioRef)
	}
	if res.Transcript != "hello there" || res.TranslatedText == "" {
		t.Fatal("expected all non-audio fields populated despite tts degradation")
	}
	if translator.callCount() != 1 {
		t.Fatalf("expected exactly one translation call, got %d", translator.callCount())
	}
}

func TestProcessSTTTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.StageBudgetMS = 50
	blocked := &fakeRecognizer{fn: func(ctx context.Context, _ audio.Buffer) (stt.Transcription, error) {
		<-ctx.Done()
		return stt.Transcription{}, ctx.Err()
	}}
	translator := &fakeTranslator{}
	synth := &fakeSynth{}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(blocked),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   translator,
		Synthesizer:  synth,
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "te"})

	if res.Status != StatusFailed || res.ErrorKind != ErrKindTimeout {
		t.Fatalf("expected failed/timeout, got %s/%s", res.Status, res.ErrorKind)
	}
	if translator.callCount() != 0 || len(synth.requests()) != 0 {
		t.Fatal("no downstream stage may run after a fatal stt timeout")
	}
	if res.SessionID == "" {
		t.Fatal("failed results must still carry a session id")
	}
}

func TestProcessAudioEmotionDegrades(t *testing.T) {
	cfg := testConfig()
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("hello there", "en")),
		AudioEmotion: &fakeAudioPredictor{err: stage.Unavailable(errors.New("model crashed"))},
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   &fakeTranslator{},
		Synthesizer:  &fakeSynth{},
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "te"})

	if res.Status != StatusPartial {
		t.Fatalf("expected partial_success, got %s (%s)", res.Status, res.ErrorKind)
	}
	if !containsStage(res.DegradedStages, StageAudioEmotion) {
		t.Fatalf("expected audio_emotion degraded, got %v", res.DegradedStages)
	}
	if res.Emotion.Label != emotion.Neutral || res.Emotion.Confidence != 1.0 {
		t.Fatalf("expected neutral/1.0 fallback emotion, got %s/%v", res.Emotion.Label, res.Emotion.Confidence)
	}
}

func TestProcessDialectTimeoutDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.SoftStageBudgetMS = 50
	blocked := &fakeDialectDetector{fn: func(ctx context.Context, _, _ string) (dialect.Verdict, error) {
		<-ctx.Done()
		return dialect.Verdict{}, ctx.Err()
	}}
	synth := &fakeSynth{}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("hello there", "en")),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      blocked,
		Translator:   &fakeTranslator{},
		Synthesizer:  synth,
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "te"})

	if res.Status != StatusPartial {
		t.Fatalf("expected partial_success, got %s (%s)", res.Status, res.ErrorKind)
	}
	if !containsStage(res.DegradedStages, StageDialect) {
		t.Fatalf("expected dialect degraded, got %v", res.DegradedStages)
	}
	if res.Dialect.Label != dialect.Standard || res.Dialect.Confidence != 0 {
		t.Fatalf("expected standard/0 default verdict, got %s/%v", res.Dialect.Label, res.Dialect.Confidence)
	}
	if res.Transcript != "hello there" || res.TranslatedText == "" {
		t.Fatal("expected transcript and translation intact despite dialect degradation")
	}
	if len(synth.requests()) != 1 || !strings.HasPrefix(res.OutputAudioRef, "file://") {
		t.Fatal("expected synthesis and persistence to proceed despite dialect degradation")
	}
}

func TestProcessTTSTimeoutUsesSoftCap(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.SoftStageBudgetMS = 50
	blocked := &blockedSynth{}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("hello there", "en")),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   &fakeTranslator{},
		Synthesizer:  blocked,
	}
	o := newOrchestrator(t, cfg, registry)

	start := time.Now()
	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "te"})
	elapsed := time.Since(start)

	if res.Status != StatusPartial {
		t.Fatalf("expected partial_success, got %s (%s)", res.Status, res.ErrorKind)
	}
	if !containsStage(res.DegradedStages, StageTTS) {
		t.Fatalf("expected tts degraded, got %v", res.DegradedStages)
	}
	if elapsed >= time.Duration(cfg.Pipeline.StageBudgetMS)*time.Millisecond {
		t.Fatalf("expected synthesis cut off at the soft cap, took %v", elapsed)
	}
}

func TestProcessTextEmotionTimeoutDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.SoftStageBudgetMS = 50
	cfg.Emotion.TextLanguages = []string{"en"}
	blocked := &fakeTextPredictor{fn: func(ctx context.Context, _ string) (emotion.Prediction, error) {
		<-ctx.Done()
		return emotion.Prediction{}, ctx.Err()
	}}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("hello there", "en")),
		AudioEmotion: neutralAudioPredictor(),
		TextEmotion:  blocked,
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   &fakeTranslator{},
		Synthesizer:  &fakeSynth{},
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "te"})

	if res.Status != StatusPartial {
		t.Fatalf("expected partial_success, got %s (%s)", res.Status, res.ErrorKind)
	}
	if !containsStage(res.DegradedStages, StageTextEmotion) {
		t.Fatalf("expected text_emotion degraded, got %v", res.DegradedStages)
	}
	if res.Emotion.Label != emotion.Neutral {
		t.Fatalf("expected audio-only emotion verdict, got %s", res.Emotion.Label)
	}
}

func TestProcessTranslationFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	synth := &fakeSynth{}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("hello there", "en")),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   &fakeTranslator{err: stage.Unavailable(errors.New("endpoint down"))},
		Synthesizer:  synth,
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "te"})

	if res.Status != StatusFailed || res.ErrorKind != ErrKindTranslationUnavailable {
		t.Fatalf("expected failed/translation_unavailable, got %s/%s", res.Status, res.ErrorKind)
	}
	if len(synth.requests()) != 0 {
		t.Fatal("synthesis must not run after a fatal translation failure")
	}
	if res.Transcript != "hello there" {
		t.Fatal("expected transcript preserved on the failed result")
	}
}

func TestProcessHappyEmotionDrivesProsody(t *testing.T) {
	cfg := testConfig()
	happy := &fakeAudioPredictor{pred: emotion.Prediction{
		Label:      emotion.Happy,
		Confidence: 0.7,
		Scores:     emotion.Distribution{emotion.Neutral: 0.1, emotion.Happy: 0.7, emotion.Sad: 0.1, emotion.Angry: 0.05, emotion.Fearful: 0.05},
	}}
	translator := &fakeTranslator{}
	synth := &fakeSynth{}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("what a wonderful day", "en")),
		AudioEmotion: happy,
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   translator,
		Synthesizer:  synth,
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "te"})

	if res.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", res.Status, res.ErrorKind)
	}
	if res.Emotion.Label != emotion.Happy {
		t.Fatalf("expected happy, got %s", res.Emotion.Label)
	}
	if res.TranslatedText != "[en>te] what a wonderful day" {
		t.Fatalf("unexpected translation: %q", res.TranslatedText)
	}
	reqs := synth.requests()
	if len(reqs) != 1 || reqs[0].Speed != 1.05 {
		t.Fatalf("expected happy prosody speed 1.05, got %+v", reqs)
	}
	if res.Dialect.Label != dialect.Standard {
		t.Fatalf("expected standard dialect for non-telugu input, got %s", res.Dialect.Label)
	}
}

func TestProcessTargetEmotionOverride(t *testing.T) {
	cfg := testConfig()
	synth := &fakeSynth{}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("hello there", "en")),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   &fakeTranslator{},
		Synthesizer:  synth,
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{
		Audio:         speechBuffer(),
		TargetLang:    "te",
		TargetEmotion: emotion.Sad,
	})

	if res.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", res.Status, res.ErrorKind)
	}
	if res.TargetEmotion != emotion.Sad {
		t.Fatalf("expected sad override, got %s", res.TargetEmotion)
	}
	reqs := synth.requests()
	if len(reqs) != 1 || reqs[0].Speed != 0.92 {
		t.Fatalf("expected sad prosody speed 0.92, got %+v", reqs)
	}
	if res.Emotion.Label != emotion.Neutral {
		t.Fatal("override must not alter the detected emotion verdict")
	}
}

func TestProcessUnsupportedLanguageFallsBack(t *testing.T) {
	cfg := testConfig()
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("bonjour tout le monde", "fr")),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   &fakeTranslator{},
		Synthesizer:  &fakeSynth{},
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "te"})

	if res.DetectedLanguage != "en" {
		t.Fatalf("expected fallback language en, got %q", res.DetectedLanguage)
	}
}

func TestProcessBudgetExceededBeforeTranslation(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.TotalBudgetMS = 60
	cfg.Pipeline.StageBudgetMS = 50
	cfg.Pipeline.SoftStageBudgetMS = 40
	slow := &fakeRecognizer{fn: func(context.Context, audio.Buffer) (stt.Transcription, error) {
		time.Sleep(100 * time.Millisecond)
		return stt.Transcription{Text: "hola", Language: "en"}, nil
	}}
	translator := &fakeTranslator{}
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(slow),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   translator,
		Synthesizer:  &fakeSynth{},
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: speechBuffer(), TargetLang: "te"})

	if res.Status != StatusFailed || res.ErrorKind != ErrKindBudgetExceeded {
		t.Fatalf("expected failed/budget_exceeded, got %s/%s", res.Status, res.ErrorKind)
	}
	if translator.callCount() != 0 {
		t.Fatal("translation must not start once the total budget is spent")
	}
}

func TestProcessInvalidAudio(t *testing.T) {
	cfg := testConfig()
	registry := &models.Registry{
		Recognizer:   stt.SilenceAware(staticRecognizer("x", "en")),
		AudioEmotion: neutralAudioPredictor(),
		Dialect:      dialect.NewClassifier(cfg.Dialect),
		Translator:   &fakeTranslator{},
		Synthesizer:  &fakeSynth{},
	}
	o := newOrchestrator(t, cfg, registry)

	res := o.Process(context.Background(), Request{Audio: audio.Buffer{}, TargetLang: "te"})

	if res.Status != StatusFailed || res.ErrorKind != ErrKindInvalidAudio {
		t.Fatalf("expected failed/invalid_audio, got %s/%s", res.Status, res.ErrorKind)
	}
}

func TestProsodySpeeds(t *testing.T) {
	cases := map[emotion.Label]float64{
		emotion.Happy:   1.05,
		emotion.Sad:     0.92,
		emotion.Angry:   1.10,
		emotion.Fearful: 1.05,
		emotion.Neutral: 1.00,
	}
	for label, want := range cases {
		if got := prosodySpeed(label); got != want {
			t.Fatalf("expected %v for %s, got %v", want, label, got)
		}
	}
}

func containsStage(stages []string, name string) bool {
	for _, s := range stages {
		if s == name {
			return true
		}
	}
	return false
}
