package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"parking-status-backend/internal/metrics"
	"parking-status-backend/internal/occupancy"
	"parking-status-backend/internal/telemetry"
)

// Applier is the part of the occupancy engine the pipeline drives.
type Applier interface {
	Apply(ctx context.Context, ev telemetry.Event) (occupancy.Result, error)
}

// Pipeline turns raw messages into engine events: topic, then payload, then
// transition. Every failure is logged and counted; nothing is returned to
// the transport.
type Pipeline struct {
	normalizer *telemetry.Normalizer
	engine     Applier
	log        *zap.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(n *telemetry.Normalizer, engine Applier, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{normalizer: n, engine: engine, log: log.Named("ingest")}
}

// Handler adapts the pipeline to a Subscriber.
func (p *Pipeline) Handler(ctx context.Context) Handler {
	return func(topic string, payload []byte, receivedAt time.Time) {
		p.HandleMessage(ctx, topic, payload, receivedAt)
	}
}

// HandleMessage processes one message and returns its outcome label.
func (p *Pipeline) HandleMessage(ctx context.Context, topic string, payload []byte, receivedAt time.Time) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Recovered from panic while handling message",
				zap.String("topic", topic), zap.ByteString("payload", payload), zap.Any("panic", r))
			outcome = metrics.OutcomePanic
		}
		metrics.MessagesReceived.WithLabelValues(outcome).Inc()
	}()

	spotID, kind, err := telemetry.ParseTopic(topic)
	if err != nil {
		p.log.Debug("Dropping message on unrecognized topic", zap.String("topic", topic))
		return metrics.OutcomeUnknownTopic
	}

	ev, err := p.normalizer.Normalize(spotID, kind, payload, receivedAt)
	if errors.Is(err, telemetry.ErrNoVerdict) {
		p.log.Debug("Message carries no verdict", zap.String("topic", topic), zap.ByteString("payload", payload))
		return metrics.OutcomeNoVerdict
	}
	if err != nil {
		p.log.Warn("Dropping malformed message", zap.String("topic", topic), zap.ByteString("payload", payload), zap.Error(err))
		return metrics.OutcomeMalformed
	}

	result, err := p.engine.Apply(ctx, ev)
	if err != nil {
		p.log.Error("Failed to apply event", zap.Int64("spot", ev.SpotID), zap.Bool("occupied", ev.Occupied), zap.Error(err))
		return metrics.OutcomeFailed
	}

	p.log.Debug("Event applied", zap.Int64("spot", ev.SpotID), zap.Bool("occupied", ev.Occupied), zap.Stringer("result", result))
	return metrics.OutcomeApplied
}
