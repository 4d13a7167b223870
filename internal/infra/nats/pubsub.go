// Package nats carries battle channel messages over NATS core subjects.
// Delivery is at-most-once, which is all the score channel needs.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"quiz-battle/internal/app"
	"quiz-battle/internal/domain"
)

// Connect dials url with reconnect handling logged through zerolog.
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("quiz-battle"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// PubSub implements app.Transport on a NATS connection. Channel names are
// used as subjects unchanged.
type PubSub struct {
	nc *nats.Conn
}

func NewPubSub(nc *nats.Conn) *PubSub {
	return &PubSub{nc: nc}
}

func (p *PubSub) Subscribe(ctx context.Context, channel string) (app.Subscription, error) {
	s := &subscription{
		nc:       p.nc,
		subject:  channel,
		messages: make(chan domain.ChannelMessage, 64),
	}
	sub, err := p.nc.Subscribe(channel, s.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	// Make sure the server registered interest before anything is published.
	if err := p.nc.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	s.sub = sub
	return s, nil
}

type subscription struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	subject  string
	messages chan domain.ChannelMessage

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Publish(ctx context.Context, msg domain.ChannelMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.subject, raw)
}

func (s *subscription) Messages() <-chan domain.ChannelMessage { return s.messages }

func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.messages)
	s.mu.Unlock()
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}

func (s *subscription) handle(m *nats.Msg) {
	var msg domain.ChannelMessage
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		log.Warn().Err(err).Str("subject", m.Subject).Msg("dropping malformed realtime message")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.messages <- msg:
	default:
	}
}
