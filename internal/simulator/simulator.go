// Package simulator drives demo occupancy changes through the ingestion
// pipeline when no sensors are attached.
package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"parking-status-backend/config"
	"parking-status-backend/internal/parse"
)

// Sink consumes synthetic messages; the ingestion pipeline satisfies it.
type Sink interface {
	HandleMessage(ctx context.Context, topic string, payload []byte, receivedAt time.Time) string
}

// Service randomly parks and removes virtual cars on the configured spots.
type Service struct {
	cfg  config.SimulatorConfig
	sink Sink
	log  *zap.Logger

	// Injectable for tests.
	random func() float64
	now    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	present map[int64]bool
}

// NewService creates a stopped simulator.
func NewService(cfg config.SimulatorConfig, sink Sink, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:     cfg,
		sink:    sink,
		log:     log.Named("simulator"),
		random:  rand.Float64,
		now:     time.Now,
		present: make(map[int64]bool),
	}
}

// Start launches the simulation loop. It reports false if already running.
func (s *Service) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.Run(runCtx)
	return true
}

// Stop ends the simulation loop without waiting for it. It reports false if
// the simulator was not running.
func (s *Service) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// Running reports whether the loop is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Run steps the simulation until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("Starting simulator", zap.Int64s("spots", s.cfg.Spots))

	timer := time.NewTimer(s.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Simulator shutting down")
			return
		case <-timer.C:
			s.Step(ctx)
			timer.Reset(s.nextInterval())
		}
	}
}

// Step flips each spot's virtual car with the configured probability and
// reports the new state as a plain status message.
func (s *Service) Step(ctx context.Context) {
	for _, id := range s.cfg.Spots {
		if s.random() >= s.cfg.FlipProbability {
			continue
		}

		s.mu.Lock()
		present := !s.present[id]
		s.present[id] = present
		s.mu.Unlock()

		payload := "livre"
		if present {
			payload = "ocupada"
		}
		topic := "vaga/" + parse.SpotName(id) + "/status"
		outcome := s.sink.HandleMessage(ctx, topic, []byte(payload), s.now())
		s.log.Debug("Simulated reading", zap.String("topic", topic), zap.String("payload", payload), zap.String("outcome", outcome))
	}
}

func (s *Service) nextInterval() time.Duration {
	lo, hi := s.cfg.MinInterval(), s.cfg.MaxInterval()
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.random()*float64(hi-lo))
}
