package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quiz-battle/internal/app"
	"quiz-battle/internal/domain"
)

// PubSub carries battle channel messages over Redis PUBLISH/SUBSCRIBE, so the
// two participants may run in different processes.
type PubSub struct {
	client *redis.Client
}

func NewPubSub(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

func (p *PubSub) Subscribe(ctx context.Context, channel string) (app.Subscription, error) {
	ps := p.client.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so early publishes are not missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	sub := &subscription{
		client:   p.client,
		ps:       ps,
		channel:  channel,
		messages: make(chan domain.ChannelMessage, 64),
	}
	go sub.forward()
	return sub, nil
}

type subscription struct {
	client   *redis.Client
	ps       *redis.PubSub
	channel  string
	messages chan domain.ChannelMessage
	once     sync.Once
}

func (s *subscription) Publish(ctx context.Context, msg domain.ChannelMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, raw).Err()
}

func (s *subscription) Messages() <-chan domain.ChannelMessage { return s.messages }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}

func (s *subscription) forward() {
	defer close(s.messages)
	for m := range s.ps.Channel() {
		var msg domain.ChannelMessage
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			log.Warn().Err(err).Str("channel", s.channel).Msg("dropping malformed realtime message")
			continue
		}
		select {
		case s.messages <- msg:
		default:
		}
	}
}
