package requestlog

import (
	"context"
	"encoding/json"

	"github.com/vaani-labs/vaani-core/internal/bus"
	"github.com/vaani-labs/vaani-core/internal/protocol"
)

// busSink broadcasts per-request reports on the message bus for downstream
// logging and metrics consumers.
type busSink struct {
	bus *bus.Client
}

func NewBusSink(client *bus.Client) Sink {
	return &busSink{bus: client}
}

func (b *busSink) Write(_ context.Context, rec Record) error {
	report := protocol.PipelineReport{
		SessionID:      rec.SessionID,
		Status:         rec.Status,
		ErrorKind:      rec.ErrorKind,
		StageLatencyMS: rec.StageLatencyMS,
		DegradedStages: rec.DegradedStages,
		Timestamp:      rec.CreatedAt,
	}
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return b.bus.Conn().Publish(protocol.SubjectPipelineReport, data)
}
