package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"parking-status-backend/config"
)

const (
	reconnectInterval = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// PahoSubscriber subscribes to sensor topics on an MQTT broker.
type PahoSubscriber struct {
	cfg config.MQTTConfig
	log *zap.Logger

	mu     sync.Mutex
	client paho.Client
}

// NewPahoSubscriber creates a subscriber for the configured broker. Nothing
// is dialed until Start.
func NewPahoSubscriber(cfg config.MQTTConfig, log *zap.Logger) *PahoSubscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &PahoSubscriber{cfg: cfg, log: log.Named("mqtt")}
}

// Start implements Subscriber. Subscriptions are (re)issued on every
// successful connect so they survive reconnects.
func (s *PahoSubscriber) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return errors.New("mqtt subscriber already started")
	}

	filters := make(map[string]byte, len(s.cfg.Topics))
	for _, t := range s.cfg.Topics {
		filters[t] = byte(s.cfg.QoS)
	}

	onMessage := func(_ paho.Client, m paho.Message) {
		h(m.Topic(), m.Payload(), time.Now())
	}

	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnectInterval).
		SetOrderMatters(true).
		SetOnConnectHandler(func(c paho.Client) {
			s.log.Info("Connected to broker", zap.String("broker", s.cfg.Broker))
			token := c.SubscribeMultiple(filters, onMessage)
			if !token.WaitTimeout(s.cfg.ConnectTimeout) {
				s.log.Warn("Subscribe timed out", zap.Strings("topics", s.cfg.Topics))
				return
			}
			if err := token.Error(); err != nil {
				s.log.Error("Subscribe failed", zap.Error(err))
				return
			}
			s.log.Info("Subscribed", zap.Strings("topics", s.cfg.Topics))
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.log.Warn("Connection to broker lost", zap.Error(err))
		}).
		SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
			s.log.Info("Reconnecting to broker")
		})
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username).SetPassword(s.cfg.Password)
	}

	client := paho.NewClient(opts)
	s.client = client

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	token := client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		// ConnectRetry keeps dialing in the background.
		s.log.Warn("Broker not reachable yet, retrying in background", zap.String("broker", s.cfg.Broker))
		return nil
	}
	if err := token.Error(); err != nil {
		s.log.Warn("Initial connect failed, retrying in background", zap.Error(err))
	}
	return nil
}

// Stop implements Subscriber.
func (s *PahoSubscriber) Stop() {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return
	}
	client.Disconnect(disconnectQuiesce)
}

// IsConnected implements Subscriber.
func (s *PahoSubscriber) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.IsConnectionOpen()
}
