package pipeline

import (
	"github.com/vaani-labs/vaani-core/internal/audio"
	"github.com/vaani-labs/vaani-core/internal/dialect"
	"github.com/vaani-labs/vaani-core/internal/emotion"
)

// Status is the terminal state of one pipeline run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial_success"
	StatusFailed    Status = "failed"
)

// ErrorKind classifies fatal pipeline failures.
type ErrorKind string

const (
	ErrKindNone                   ErrorKind = ""
	ErrKindInvalidAudio           ErrorKind = "invalid_audio"
	ErrKindModelUnavailable       ErrorKind = "model_unavailable"
	ErrKindTimeout                ErrorKind = "timeout"
	ErrKindBudgetExceeded         ErrorKind = "budget_exceeded"
	ErrKindTranslationUnavailable ErrorKind = "translation_unavailable"
)

// State names the orchestrator's position in the stage graph, for logs and
// traces.
type State string

const (
	StatePreprocessing State = "preprocessing"
	StateTranscribing  State = "transcribing"
	StateEnriching     State = "enriching_text"
	StateFusing        State = "fusing"
	StateTranslating   State = "translating"
	StateSynthesizing  State = "synthesizing"
	StateFinalizing    State = "finalizing"
)

// Stage names used in latency and degradation reporting.
const (
	StagePreprocess   = "preprocess"
	StageSTT          = "stt"
	StageAudioEmotion = "audio_emotion"
	StageDialect      = "dialect"
	StageTextEmotion  = "text_emotion"
	StageTranslation  = "translation"
	StageTTS          = "tts"
	StagePersist      = "persist"
)

// Request is one pipeline invocation. TargetEmotion overrides the fused
// emotion for synthesis when set.
type Request struct {
	Audio         audio.Buffer
	TargetLang    string
	TargetEmotion emotion.Label
}

// Result is the aggregate returned to the caller. It is created fresh per
// request and always populated, even on fatal failure: SessionID and the
// latencies of completed stages stay available for diagnosability.
type Result struct {
	SessionID        string
	Transcript       string
	DetectedLanguage string
	Emotion          emotion.Fused
	Dialect          dialect.Verdict
	TranslatedText   string
	TargetLang       string
	TargetEmotion    emotion.Label
	OutputAudioRef   string
	StageLatencyMS   map[string]int64
	DegradedStages   []string
	Status           Status
	ErrorKind        ErrorKind
}
