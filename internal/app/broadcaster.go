package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"quiz-battle/internal/domain"
)

const (
	outboxSize     = 32
	publishTimeout = 2 * time.Second
)

// Broadcaster is a best-effort score side channel between the two
// participants of one battle. Nothing it delivers is used for settlement,
// so it never retries or acknowledges: lost, duplicated or reordered
// messages only affect how live the opponent's displayed score looks.
type Broadcaster struct {
	transport Transport
	selfID    string

	mu         sync.Mutex
	sub        Subscription
	battleID   string
	outbox     chan domain.ChannelMessage
	onScore    func(domain.ScoreUpdate)
	onFinished func(domain.ScoreUpdate)
	onReady    func(domain.ScoreUpdate)
	flushed    chan struct{}
	dispatched chan struct{}
}

// NewBroadcaster returns a broadcaster publishing as selfID. A nil transport
// yields a broadcaster whose Connect always fails.
func NewBroadcaster(transport Transport, selfID string) *Broadcaster {
	return &Broadcaster{transport: transport, selfID: selfID}
}

// OnScoreUpdate registers the handler for opponent score messages.
func (b *Broadcaster) OnScoreUpdate(fn func(domain.ScoreUpdate)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onScore = fn
}

// OnFinished registers the handler for the opponent's finish signal.
func (b *Broadcaster) OnFinished(fn func(domain.ScoreUpdate)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFinished = fn
}

// OnReady registers the handler for the opponent's ready announcement.
func (b *Broadcaster) OnReady(fn func(domain.ScoreUpdate)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReady = fn
}

// Connect subscribes to the battle channel. The error is informational: the
// battle stays playable and settleable without the channel.
func (b *Broadcaster) Connect(ctx context.Context, battleID string) error {
	if b.transport == nil {
		return domain.ErrRealtimeUnavailable
	}
	b.mu.Lock()
	if b.sub != nil {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	sub, err := b.transport.Subscribe(ctx, domain.ChannelName(battleID))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRealtimeUnavailable, err)
	}

	b.mu.Lock()
	b.sub = sub
	b.battleID = battleID
	b.outbox = make(chan domain.ChannelMessage, outboxSize)
	b.flushed = make(chan struct{})
	b.dispatched = make(chan struct{})
	outbox, flushed, dispatched := b.outbox, b.flushed, b.dispatched
	b.mu.Unlock()

	go b.publishLoop(sub, outbox, flushed)
	go b.dispatchLoop(sub, dispatched)
	return nil
}

// BroadcastReady announces this participant and its corpus fingerprint.
func (b *Broadcaster) BroadcastReady(u domain.ScoreUpdate) {
	b.enqueue(domain.EventReady, u)
}

// BroadcastScore publishes the local running score.
func (b *Broadcaster) BroadcastScore(u domain.ScoreUpdate) {
	b.enqueue(domain.EventScore, u)
}

// BroadcastFinished publishes the local final score and time.
func (b *Broadcaster) BroadcastFinished(u domain.ScoreUpdate) {
	b.enqueue(domain.EventFinished, u)
}

// Disconnect flushes queued messages and unsubscribes. Safe to call more than once.
func (b *Broadcaster) Disconnect() {
	b.mu.Lock()
	sub, outbox := b.sub, b.outbox
	flushed, dispatched := b.flushed, b.dispatched
	b.sub, b.outbox = nil, nil
	b.mu.Unlock()
	if sub == nil {
		return
	}
	close(outbox)
	<-flushed
	if err := sub.Close(); err != nil {
		log.Debug().Err(err).Str("battle_id", b.battleID).Msg("realtime unsubscribe failed")
	}
	<-dispatched
}

func (b *Broadcaster) enqueue(event domain.ChannelEvent, u domain.ScoreUpdate) {
	u.UserID = b.selfID
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outbox == nil {
		return
	}
	select {
	case b.outbox <- domain.ChannelMessage{Event: event, Payload: u}:
	default:
		log.Warn().Str("battle_id", b.battleID).Str("event", string(event)).Msg("realtime outbox full, dropping message")
	}
}

func (b *Broadcaster) publishLoop(sub Subscription, outbox <-chan domain.ChannelMessage, flushed chan<- struct{}) {
	defer close(flushed)
	for msg := range outbox {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := sub.Publish(ctx, msg); err != nil {
			log.Warn().Err(err).Str("battle_id", b.battleID).Str("event", string(msg.Event)).Msg("realtime publish failed")
		}
		cancel()
	}
}

func (b *Broadcaster) dispatchLoop(sub Subscription, dispatched chan<- struct{}) {
	defer close(dispatched)
	for msg := range sub.Messages() {
		if msg.Payload.UserID == b.selfID {
			continue
		}
		b.mu.Lock()
		var handler func(domain.ScoreUpdate)
		switch msg.Event {
		case domain.EventScore:
			handler = b.onScore
		case domain.EventFinished:
			handler = b.onFinished
		case domain.EventReady:
			handler = b.onReady
		}
		b.mu.Unlock()
		if handler != nil {
			handler(msg.Payload)
		}
	}
}
