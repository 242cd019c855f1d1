package gateway

import (
	"context"
	"net/url"
	"strings"
	"time"

	"bluecast/pkg/gateway/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// EventStream consumes the gateway's live websocket feed. It carries the same
// {type,data} envelopes as the webhook callback, so both feed one handler.
type EventStream struct {
	wsURL          string
	handler        types.EventHandler
	logger         *logrus.Logger
	reconnectDelay time.Duration
	maxDelay       time.Duration
	stopCh         chan struct{}
}

func NewEventStream(baseURL, password string, handler types.EventHandler, logger *logrus.Logger) *EventStream {
	return &EventStream{
		wsURL:          streamURL(baseURL, password),
		handler:        handler,
		logger:         logger,
		reconnectDelay: time.Second,
		maxDelay:       30 * time.Second,
		stopCh:         make(chan struct{}),
	}
}

// Start runs the read loop until the context is cancelled or Stop is called.
// Connection failures reconnect with exponential delay; events are applied
// best-effort and handler errors only log.
func (s *EventStream) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *EventStream) Stop() {
	close(s.stopCh)
}

func (s *EventStream) run(ctx context.Context) {
	delay := s.reconnectDelay

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).WithField("delay", delay.String()).Warn("Gateway event stream disconnected, reconnecting")

			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > s.maxDelay {
				delay = s.maxDelay
			}
			continue
		}

		delay = s.reconnectDelay
	}
}

func (s *EventStream) consume(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.logger.Info("Connected to gateway event stream")

	for {
		select {
		case <-s.stopCh:
			return nil
		default:
		}

		var event types.Event
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			return err
		}

		if err := s.handler.Apply(ctx, event); err != nil {
			s.logger.WithError(err).WithField("event", event.Type).Error("Failed to apply gateway stream event")
		}
	}
}

func streamURL(baseURL, password string) string {
	wsBase := baseURL
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(baseURL, "http://")
	}
	return strings.TrimRight(wsBase, "/") + "/api/v1/ws?password=" + url.QueryEscape(password)
}
