package memory

import (
	"context"
	"errors"
	"sync"

	"quiz-battle/internal/app"
	"quiz-battle/internal/domain"
)

const subscriberBuffer = 64

var errSubscriptionClosed = errors.New("subscription closed")

// Hub is an in-process pub/sub transport. Delivery is best effort: a
// subscriber whose buffer is full misses the message, as on a real broker.
type Hub struct {
	mu       sync.Mutex
	channels map[string]map[*hubSubscription]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*hubSubscription]struct{})}
}

// Subscribe attaches to channel.
func (h *Hub) Subscribe(_ context.Context, channel string) (app.Subscription, error) {
	sub := &hubSubscription{
		hub:      h,
		channel:  channel,
		messages: make(chan domain.ChannelMessage, subscriberBuffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*hubSubscription]struct{})
		h.channels[channel] = subs
	}
	subs[sub] = struct{}{}
	return sub, nil
}

// Subscribers counts live subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channel])
}

func (h *Hub) publish(channel string, msg domain.ChannelMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.channels[channel] {
		select {
		case sub.messages <- msg:
		default:
		}
	}
}

func (h *Hub) remove(sub *hubSubscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.channels[sub.channel]
	if _, ok := subs[sub]; !ok {
		return false
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.channels, sub.channel)
	}
	close(sub.messages)
	return true
}

type hubSubscription struct {
	hub      *Hub
	channel  string
	messages chan domain.ChannelMessage
}

func (s *hubSubscription) Publish(ctx context.Context, msg domain.ChannelMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.hub.mu.Lock()
	_, live := s.hub.channels[s.channel][s]
	s.hub.mu.Unlock()
	if !live {
		return errSubscriptionClosed
	}
	s.hub.publish(s.channel, msg)
	return nil
}

func (s *hubSubscription) Messages() <-chan domain.ChannelMessage { return s.messages }

func (s *hubSubscription) Close() error {
	s.hub.remove(s)
	return nil
}
