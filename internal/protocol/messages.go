package protocol

import "time"

// PipelineRequest asks the runtime to run one speech-to-speech pass over a
// complete utterance. WAV carries the encoded input audio.
type PipelineRequest struct {
	RequestID     string    `json:"request_id"`
	WAV           []byte    `json:"wav"`
	TargetLang    string    `json:"target_lang"`
	TargetEmotion string    `json:"target_emotion,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// PipelineResponse is the structured result returned to the requester. The
// synthesized audio itself stays in the session store; OutputAudioRef points
// at it.
type PipelineResponse struct {
	SessionID         string           `json:"session_id"`
	Status            string           `json:"status"`
	ErrorKind         string           `json:"error_kind,omitempty"`
	Transcript        string           `json:"transcript"`
	DetectedLanguage  string           `json:"detected_language"`
	Emotion           string           `json:"emotion"`
	EmotionConfidence float64          `json:"emotion_confidence"`
	Dialect           string           `json:"dialect"`
	DialectConfidence float64          `json:"dialect_confidence"`
	TranslatedText    string           `json:"translated_text"`
	TargetLang        string           `json:"target_lang"`
	TargetEmotion     string           `json:"target_emotion"`
	OutputAudioRef    string           `json:"output_audio_ref,omitempty"`
	StageLatencyMS    map[string]int64 `json:"stage_latency_ms"`
	DegradedStages    []string         `json:"degraded_stages,omitempty"`
	Timestamp         time.Time        `json:"timestamp"`
}

// PipelineReport is the fire-and-forget per-request record broadcast for
// logging and metrics consumers.
type PipelineReport struct {
	SessionID      string           `json:"session_id"`
	Status         string           `json:"status"`
	ErrorKind      string           `json:"error_kind,omitempty"`
	StageLatencyMS map[string]int64 `json:"stage_latency_ms"`
	DegradedStages []string         `json:"degraded_stages,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

const (
	SubjectPipelineRequest = "pipeline.request"
	SubjectPipelineReport  = "pipeline.report"
)
