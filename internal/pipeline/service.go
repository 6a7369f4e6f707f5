package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vaani-labs/vaani-core/internal/audio"
	"github.com/vaani-labs/vaani-core/internal/bus"
	"github.com/vaani-labs/vaani-core/internal/emotion"
	"github.com/vaani-labs/vaani-core/internal/protocol"
)

// Service exposes the orchestrator over the message bus. Each request
// message carries one complete WAV utterance; the reply is the structured
// pipeline result.
type Service struct {
	bus    *bus.Client
	orch   *Orchestrator
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	sub    *nats.Subscription
	wg     sync.WaitGroup
	ready  bool
}

func NewService(parent context.Context, busClient *bus.Client, orch *Orchestrator, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:    busClient,
		orch:   orch,
		log:    log.With(slog.String("component", "pipeline-service")),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectPipelineRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.ready
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.PipelineRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.log.Warn("failed to decode pipeline request", slogError(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		buf, err := audio.DecodeWAV(req.WAV)
		if err != nil {
			s.log.Warn("failed to decode request audio",
				slog.String("request_id", req.RequestID), slogError(err))
			buf = audio.Buffer{}
		}

		var targetEmotion emotion.Label
		if req.TargetEmotion != "" {
			if label, ok := emotion.ParseLabel(req.TargetEmotion); ok {
				targetEmotion = label
			} else {
				s.log.Warn("ignoring unknown target emotion",
					slog.String("request_id", req.RequestID),
					slog.String("target_emotion", req.TargetEmotion))
			}
		}

		result := s.orch.Process(s.ctx, Request{
			Audio:         buf,
			TargetLang:    req.TargetLang,
			TargetEmotion: targetEmotion,
		})

		if msg.Reply == "" {
			return
		}
		data, err := json.Marshal(toResponse(result))
		if err != nil {
			s.log.Warn("failed to marshal pipeline response", slogError(err))
			return
		}
		if err := msg.Respond(data); err != nil {
			s.log.Warn("failed to respond to pipeline request", slogError(err))
		}
	}()
}

func toResponse(res Result) protocol.PipelineResponse {
	return protocol.PipelineResponse{
		SessionID:         res.SessionID,
		Status:            string(res.Status),
		ErrorKind:         string(res.ErrorKind),
		Transcript:        res.Transcript,
		DetectedLanguage:  res.DetectedLanguage,
		Emotion:           string(res.Emotion.Label),
		EmotionConfidence: res.Emotion.Confidence,
		Dialect:           string(res.Dialect.Label),
		DialectConfidence: res.Dialect.Confidence,
		TranslatedText:    res.TranslatedText,
		TargetLang:        res.TargetLang,
		TargetEmotion:     string(res.TargetEmotion),
		OutputAudioRef:    res.OutputAudioRef,
		StageLatencyMS:    res.StageLatencyMS,
		DegradedStages:    res.DegradedStages,
		Timestamp:         time.Now().UTC(),
	}
}
