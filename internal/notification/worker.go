package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"parking-status-backend/internal/metrics"
)

// Channel delivers a notice over one medium.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notice) error
}

// DeliveryError reports a failed delivery on one channel.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size     int
	jobs     chan Notice
	channels []Channel
	log      *zap.Logger
}

// NewWorkerPool creates a new worker pool with a queue of queueSize notices.
func NewWorkerPool(size, queueSize int, log *zap.Logger, channels ...Channel) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = size
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		size:     size,
		jobs:     make(chan Notice, queueSize),
		channels: channels,
		log:      log.Named("notify"),
	}
}

// Channels lists the names of the enabled channels.
func (wp *WorkerPool) Channels() []string {
	names := make([]string, 0, len(wp.channels))
	for _, ch := range wp.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("Worker started", zap.Int("worker", id))
	for {
		select {
		case n := <-wp.jobs:
			wp.log.Debug("Worker processing notice", zap.Int("worker", id), zap.Int64("spot", n.SpotID))
			wp.deliver(ctx, n)
		case <-ctx.Done():
			wp.log.Debug("Worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a notice without blocking. It reports false when the
// queue is full and the notice was dropped.
func (wp *WorkerPool) Dispatch(n Notice) bool {
	select {
	case wp.jobs <- n:
		return true
	default:
		metrics.NotificationsDropped.Inc()
		wp.log.Warn("Notification queue full, dropping notice", zap.Int64("spot", n.SpotID))
		return false
	}
}

// deliver fans a notice out to every channel. Failures are logged and
// swallowed so that one channel cannot hold back another.
func (wp *WorkerPool) deliver(ctx context.Context, n Notice) {
	for _, ch := range wp.channels {
		if err := ch.Send(ctx, n); err != nil {
			metrics.NotificationsSent.WithLabelValues(ch.Name(), "error").Inc()
			derr := &DeliveryError{Channel: ch.Name(), Err: err}
			wp.log.Warn("Notification not delivered", zap.Int64("spot", n.SpotID), zap.Error(derr))
			continue
		}
		metrics.NotificationsSent.WithLabelValues(ch.Name(), "ok").Inc()
	}
}
