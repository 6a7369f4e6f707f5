package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vaani-labs/vaani-core/internal/audio"
	"github.com/vaani-labs/vaani-core/internal/config"
	"github.com/vaani-labs/vaani-core/internal/dialect"
	"github.com/vaani-labs/vaani-core/internal/emotion"
	"github.com/vaani-labs/vaani-core/internal/models"
	"github.com/vaani-labs/vaani-core/internal/requestlog"
	"github.com/vaani-labs/vaani-core/internal/sessionstore"
	"github.com/vaani-labs/vaani-core/internal/stage"
	"github.com/vaani-labs/vaani-core/internal/stt"
	"github.com/vaani-labs/vaani-core/internal/tts"
)

// Orchestrator drives the stage graph for one utterance at a time per
// request: preprocess, then STT and audio emotion concurrently, then
// dialect and optional text emotion concurrently, then fusion, translation
// and synthesis. It owns the timeout budgets and the fallback policy; it
// holds no shared mutable state between requests.
type Orchestrator struct {
	cfg       config.PipelineConfig
	textLangs []string
	pre       *audio.Preprocessor
	models    *models.Registry
	store     *sessionstore.Store
	fuser     *emotion.Fuser
	sink      requestlog.Sink
	log       *slog.Logger
	tracer    trace.Tracer

	requests     metric.Int64Counter
	stageLatency metric.Float64Histogram

	wg sync.WaitGroup
}

func New(cfg config.Config, registry *models.Registry, store *sessionstore.Store, sink requestlog.Sink, log *slog.Logger) *Orchestrator {
	p := cfg.Pipeline
	o := &Orchestrator{
		cfg:       p,
		textLangs: cfg.Emotion.TextLanguages,
		pre:       audio.NewPreprocessor(audio.TargetSampleRate, p.SilenceRMS),
		models:    registry,
		store:     store,
		fuser:     emotion.NewFuser(p.AudioWeight, p.TextWeight, p.TextMinConfidence),
		sink:      sink,
		log:       log.With(slog.String("component", "pipeline")),
		tracer:    otel.Tracer("github.com/vaani-labs/vaani-core/pipeline"),
	}

	meter := otel.Meter("github.com/vaani-labs/vaani-core/pipeline")
	var err error
	o.requests, err = meter.Int64Counter("pipeline.requests",
		metric.WithDescription("Completed pipeline requests by status"))
	if err != nil {
		o.log.Warn("failed to create request counter", slog.String("error", err.Error()))
	}
	o.stageLatency, err = meter.Float64Histogram("pipeline.stage.duration_ms",
		metric.WithDescription("Per-stage latency in milliseconds"))
	if err != nil {
		o.log.Warn("failed to create stage histogram", slog.String("error", err.Error()))
	}

	return o
}

// Close waits for in-flight report writes to drain.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

// Process runs the complete pipeline for one request and always returns a
// structured result.
func (o *Orchestrator) Process(ctx context.Context, req Request) Result {
	start := time.Now()
	totalBudget := time.Duration(o.cfg.TotalBudgetMS) * time.Millisecond

	ctx, cancel := context.WithTimeout(ctx, totalBudget)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "pipeline.process")
	defer span.End()

	res := Result{
		SessionID:      o.store.Allocate(),
		TargetLang:     o.normalizeTarget(req.TargetLang),
		StageLatencyMS: make(map[string]int64),
	}
	span.SetAttributes(attribute.String("session_id", res.SessionID))

	log := o.log.With(slog.String("session_id", res.SessionID))

	// Preprocessing.
	log.Debug("state transition", slog.String("state", string(StatePreprocessing)))
	preOut := stage.Invoke(ctx, o.hardBudget(start, totalBudget), func(context.Context) (audio.Buffer, error) {
		return o.pre.Normalize(req.Audio)
	})
	o.recordStage(ctx, &res, StagePreprocess, preOut.Elapsed)
	if !preOut.OK() {
		log.Warn("preprocessing rejected input", slogError(preOut.Err))
		return o.finish(span, res, StatusFailed, ErrKindInvalidAudio, start)
	}
	buf := preOut.Value

	// Transcribing and analyzing audio emotion, in parallel. For silent
	// input the recognizer short-circuits and fusion is bypassed entirely,
	// so the emotion model is not invoked at all.
	log.Debug("state transition", slog.String("state", string(StateTranscribing)))
	if kind, ok := o.checkBudget(start, totalBudget); !ok {
		return o.finish(span, res, StatusFailed, kind, start)
	}

	var (
		sttOut     stage.Outcome[stt.Transcription]
		audioOut   stage.Outcome[emotion.Prediction]
		audioPred  emotion.Prediction
		runEmotion = !buf.Silent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sttOut = stage.Invoke(gctx, o.hardBudget(start, totalBudget), func(c context.Context) (stt.Transcription, error) {
			return o.models.Recognizer.Transcribe(c, buf)
		})
		return nil
	})
	if runEmotion {
		g.Go(func() error {
			audioOut = stage.Invoke(gctx, o.hardBudget(start, totalBudget), func(c context.Context) (emotion.Prediction, error) {
				return o.models.AudioEmotion.Predict(c, buf)
			})
			return nil
		})
	}
	_ = g.Wait()

	o.recordStage(ctx, &res, StageSTT, sttOut.Elapsed)
	if !sttOut.OK() {
		if sttOut.TimedOut() {
			log.Warn("stt timed out")
			return o.finish(span, res, StatusFailed, ErrKindTimeout, start)
		}
		log.Warn("stt failed", slogError(sttOut.Err))
		return o.finish(span, res, StatusFailed, ErrKindModelUnavailable, start)
	}

	res.Transcript = sttOut.Value.Text
	res.DetectedLanguage = o.normalizeLanguage(sttOut.Value.Language, res.Transcript)

	if runEmotion {
		o.recordStage(ctx, &res, StageAudioEmotion, audioOut.Elapsed)
		if audioOut.OK() {
			audioPred = audioOut.Value
		} else {
			// Audio emotion is a soft stage: degrade to a neutral
			// distribution and keep going.
			log.Warn("audio emotion degraded", slogError(audioOut.Err))
			res.DegradedStages = append(res.DegradedStages, StageAudioEmotion)
			audioPred = emotion.Prediction{
				Label:  emotion.Neutral,
				Scores: emotion.Distribution{emotion.Neutral: 1.0},
			}
		}
	}

	// Enriching: dialect and optional text emotion, in parallel. Both are
	// soft-timeout stages.
	log.Debug("state transition", slog.String("state", string(StateEnriching)))
	var (
		dialectOut stage.Outcome[dialect.Verdict]
		textOut    stage.Outcome[emotion.Prediction]
		runText    = o.wantTextEmotion(buf, res)
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		dialectOut = stage.Invoke(gctx, o.softBudget(start, totalBudget), func(c context.Context) (dialect.Verdict, error) {
			return o.models.Dialect.Detect(c, res.Transcript, res.DetectedLanguage)
		})
		return nil
	})
	if runText {
		g.Go(func() error {
			textOut = stage.Invoke(gctx, o.softBudget(start, totalBudget), func(c context.Context) (emotion.Prediction, error) {
				return o.models.TextEmotion.Predict(c, res.Transcript)
			})
			return nil
		})
	}
	_ = g.Wait()

	o.recordStage(ctx, &res, StageDialect, dialectOut.Elapsed)
	if dialectOut.OK() {
		res.Dialect = dialectOut.Value
	} else {
		log.Warn("dialect degraded", slogError(dialectOut.Err))
		res.DegradedStages = append(res.DegradedStages, StageDialect)
		res.Dialect = dialect.DefaultVerdict()
	}

	var textPred *emotion.Prediction
	if runText {
		o.recordStage(ctx, &res, StageTextEmotion, textOut.Elapsed)
		if textOut.OK() {
			pred := textOut.Value
			textPred = &pred
		} else {
			log.Warn("text emotion degraded", slogError(textOut.Err))
			res.DegradedStages = append(res.DegradedStages, StageTextEmotion)
		}
	}

	// Fusing: a pure function, always succeeds. Silent input is decided
	// here and nowhere else.
	log.Debug("state transition", slog.String("state", string(StateFusing)))
	if buf.Silent {
		res.Emotion = o.fuser.Silence()
	} else {
		res.Emotion = o.fuser.Fuse(audioPred, textPred)
	}

	res.TargetEmotion = res.Emotion.Label
	if req.TargetEmotion != "" {
		res.TargetEmotion = req.TargetEmotion
	}

	// Translating: mandatory; failure or timeout is fatal. Identity and
	// empty-transcript requests never invoke the model.
	log.Debug("state transition", slog.String("state", string(StateTranslating)))
	switch {
	case strings.TrimSpace(res.Transcript) == "":
		res.TranslatedText = ""
	case res.DetectedLanguage == res.TargetLang:
		res.TranslatedText = res.Transcript
	default:
		if kind, ok := o.checkBudget(start, totalBudget); !ok {
			return o.finish(span, res, StatusFailed, kind, start)
		}
		trOut := stage.Invoke(ctx, o.hardBudget(start, totalBudget), func(c context.Context) (string, error) {
			r, err := o.models.Translator.Translate(c, res.Transcript, res.DetectedLanguage, res.TargetLang)
			if err != nil {
				return "", err
			}
			return r.TranslatedText, nil
		})
		o.recordStage(ctx, &res, StageTranslation, trOut.Elapsed)
		if !trOut.OK() {
			log.Warn("translation failed", slogError(trOut.Err))
			return o.finish(span, res, StatusFailed, ErrKindTranslationUnavailable, start)
		}
		res.TranslatedText = trOut.Value
	}

	// Synthesizing: the one optional stage. Unavailability or timeout
	// degrades to a result without audio.
	log.Debug("state transition", slog.String("state", string(StateSynthesizing)))
	speed := prosodySpeed(res.TargetEmotion)
	synthOut := stage.Invoke(ctx, o.softBudget(start, totalBudget), func(c context.Context) ([]byte, error) {
		return o.models.Synthesizer.Synthesize(c, tts.Request{
			Text:     res.TranslatedText,
			Language: res.TargetLang,
			Speed:    speed,
		})
	})
	o.recordStage(ctx, &res, StageTTS, synthOut.Elapsed)

	// Finalizing.
	log.Debug("state transition", slog.String("state", string(StateFinalizing)))
	if synthOut.OK() {
		persistStart := time.Now()
		ref, err := o.store.Persist(context.WithoutCancel(ctx), res.SessionID, synthOut.Value)
		o.recordStage(ctx, &res, StagePersist, time.Since(persistStart))
		if err != nil {
			log.Warn("failed to persist output audio", slogError(err))
			res.DegradedStages = append(res.DegradedStages, StagePersist)
		} else {
			res.OutputAudioRef = ref
		}
	} else {
		log.Warn("synthesis degraded", slogError(synthOut.Err))
		res.DegradedStages = append(res.DegradedStages, StageTTS)
	}

	if len(res.DegradedStages) > 0 {
		return o.finish(span, res, StatusPartial, ErrKindNone, start)
	}
	return o.finish(span, res, StatusCompleted, ErrKindNone, start)
}

func (o *Orchestrator) wantTextEmotion(buf audio.Buffer, res Result) bool {
	if o.models.TextEmotion == nil || buf.Silent {
		return false
	}
	if strings.TrimSpace(res.Transcript) == "" {
		return false
	}
	return contains(o.textLangs, res.DetectedLanguage)
}

// normalizeLanguage lowercases the detected code and maps anything outside
// the supported set to the fallback language, except when there is no
// transcript to interpret at all.
func (o *Orchestrator) normalizeLanguage(lang, transcript string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if strings.TrimSpace(transcript) == "" {
		if lang == "" {
			return stt.LanguageUnknown
		}
		return lang
	}
	if !contains(o.cfg.SupportedLanguages, lang) {
		return o.cfg.FallbackLanguage
	}
	return lang
}

func (o *Orchestrator) normalizeTarget(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return o.cfg.FallbackLanguage
	}
	return lang
}

// checkBudget pre-emptively aborts before starting a mandatory stage that
// the remaining total budget cannot accommodate.
func (o *Orchestrator) checkBudget(start time.Time, total time.Duration) (ErrorKind, bool) {
	if time.Since(start) >= total {
		return ErrKindBudgetExceeded, false
	}
	return ErrKindNone, true
}

func (o *Orchestrator) hardBudget(start time.Time, total time.Duration) time.Duration {
	return minDuration(time.Duration(o.cfg.StageBudgetMS)*time.Millisecond, total-time.Since(start))
}

func (o *Orchestrator) softBudget(start time.Time, total time.Duration) time.Duration {
	return minDuration(time.Duration(o.cfg.SoftStageBudgetMS)*time.Millisecond, total-time.Since(start))
}

func (o *Orchestrator) recordStage(ctx context.Context, res *Result, name string, elapsed time.Duration) {
	ms := elapsed.Milliseconds()
	res.StageLatencyMS[name] = ms
	if o.stageLatency != nil {
		o.stageLatency.Record(ctx, float64(ms), metric.WithAttributes(attribute.String("stage", name)))
	}
}

func (o *Orchestrator) finish(span trace.Span, res Result, status Status, kind ErrorKind, start time.Time) Result {
	res.Status = status
	res.ErrorKind = kind
	totalMS := time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.String("status", string(status)),
		attribute.String("error_kind", string(kind)),
		attribute.Int64("total_ms", totalMS),
	)
	if o.requests != nil {
		o.requests.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", string(status))))
	}

	o.report(res, totalMS)
	return res
}

// report writes the per-request record off the response path.
func (o *Orchestrator) report(res Result, totalMS int64) {
	rec := requestlog.Record{
		SessionID:        res.SessionID,
		Status:           string(res.Status),
		ErrorKind:        string(res.ErrorKind),
		DetectedLanguage: res.DetectedLanguage,
		Emotion:          string(res.Emotion.Label),
		Dialect:          string(res.Dialect.Label),
		TargetLang:       res.TargetLang,
		StageLatencyMS:   res.StageLatencyMS,
		DegradedStages:   res.DegradedStages,
		TotalMS:          totalMS,
		CreatedAt:        time.Now().UTC(),
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.sink.Write(ctx, rec); err != nil {
			o.log.Warn("failed to write request record",
				slog.String("session_id", rec.SessionID), slogError(err))
		}
	}()
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
