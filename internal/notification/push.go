package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"parking-status-backend/internal/model"
	"parking-status-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// PushSender notifies every browser subscribed to the freed spot.
type PushSender struct {
	subs    store.SubscriptionStore
	options *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewPushSender creates a web push channel signing with the given VAPID options.
func NewPushSender(subs store.SubscriptionStore, options *webpush.Options, log *zap.Logger) *PushSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &PushSender{
		subs:    subs,
		options: options,
		sender:  &WebPushSender{}, // Use the real sender by default
		log:     log.Named("push"),
	}
}

// Name implements Channel.
func (p *PushSender) Name() string {
	return "push"
}

// PushMessage is the text shown in the browser notification.
func PushMessage(n Notice) string {
	return fmt.Sprintf("Vaga %s está livre!", n.SpotName)
}

// Send implements Channel. Subscriptions the push service reports as gone
// are deleted.
func (p *PushSender) Send(ctx context.Context, n Notice) error {
	subscriptions, err := p.subs.SubscriptionsForSpot(ctx, n.SpotID)
	if err != nil {
		return fmt.Errorf("failed to load subscriptions for spot %d: %w", n.SpotID, err)
	}
	if len(subscriptions) == 0 {
		return nil
	}

	p.log.Debug("Sending push notifications", zap.Int("count", len(subscriptions)), zap.Int64("spot", n.SpotID))

	payload := []byte(PushMessage(n))
	var errs []error
	for _, sub := range subscriptions {
		if err := p.sendOne(ctx, sub, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *PushSender) sendOne(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, p.options)
	if err != nil {
		return fmt.Errorf("push to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		p.log.Info("Subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := p.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil && !errors.Is(err, store.ErrSubscriptionNotFound) {
			return fmt.Errorf("failed to delete expired subscription %s: %w", sub.Endpoint, err)
		}
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("push to %s: unexpected status %d", sub.Endpoint, resp.StatusCode)
	}
	return nil
}
