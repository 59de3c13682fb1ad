package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event describes one store mutation for other service instances. Origin
// identifies the publishing hub so it can skip its own events.
type Event struct {
	Origin         string    `json:"origin"`
	Action         string    `json:"action"`
	UserID         uint      `json:"user_id"`
	NotificationID string    `json:"notification_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// EventSource delivers the events published by every instance.
type EventSource interface {
	Subscribe(handler func(Event)) (unsubscribe func() error, err error)
}

// NATSPublisher publishes events on "<prefix>.<user id>" and subscribes to
// the events of all users.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

func NewNATSPublisher(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("cmobile"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}, nil
}

func (p *NATSPublisher) Subject(userID uint) string {
	return p.prefix + "." + strconv.FormatUint(uint64(userID), 10)
}

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.nc.Publish(p.Subject(ev.UserID), data)
}

func (p *NATSPublisher) Subscribe(handler func(Event)) (func() error, error) {
	sub, err := p.nc.Subscribe(p.prefix+".*", func(m *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			p.logger.Warn("undecodable notification event", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s.*: %w", p.prefix, err)
	}
	return sub.Unsubscribe, nil
}

func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
