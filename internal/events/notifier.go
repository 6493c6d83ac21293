package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/sharehold/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Notifier broadcasts committed events to subscribers outside the process.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Event) error { return nil }

// NewNoopNotifier returns a Notifier that drops every event.
func NewNoopNotifier() Notifier { return noopNotifier{} }

// NATSNotifier publishes events on <prefix>.<event type>.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSNotifier(conn *nats.Conn, prefix string) *NATSNotifier {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "tenant.events"
	}
	return &NATSNotifier{conn: conn, prefix: prefix}
}

func (n *NATSNotifier) Subject(eventType string) string {
	return n.prefix + "." + eventType
}

func (n *NATSNotifier) Notify(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(n.Subject(evt.Type))
	msg.Data = data
	msg.Header.Set("Correlation-Id", evt.CorrelationID)
	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

// NewNotifier connects to NATS when configured and falls back to a noop notifier.
func NewNotifier(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Notifier, error) {
	url := strings.TrimSpace(cfg.NATS.URL)
	if url == "" {
		log.Info("nats url not configured, tenant events stay in the outbox")
		return NewNoopNotifier(), nil
	}

	conn, err := nats.Connect(url,
		nats.Name(cfg.AppName),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return conn.Drain()
		},
	})

	return NewNATSNotifier(conn, cfg.NATS.SubjectPrefix), nil
}
