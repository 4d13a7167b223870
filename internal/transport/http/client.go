package http

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quiz-battle/internal/app"
	"quiz-battle/internal/domain"
)

// Client implements app.Transport by dialing a Relay. Each subscription is
// its own websocket connection.
type Client struct {
	relayURL string
	userID   string
	dialer   *websocket.Dialer
}

// NewClient targets a relay endpoint such as ws://host:8080/ws.
func NewClient(relayURL, userID string) *Client {
	return &Client{
		relayURL: relayURL,
		userID:   userID,
		dialer:   &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
	}
}

func (c *Client) Subscribe(ctx context.Context, channel string) (app.Subscription, error) {
	battleID, ok := domain.BattleIDFromChannel(channel)
	if !ok {
		return nil, fmt.Errorf("not a battle channel: %q", channel)
	}
	u, err := url.Parse(c.relayURL)
	if err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	q := u.Query()
	q.Set("battleId", battleID)
	q.Set("userId", c.userID)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	s := &clientSubscription{
		conn:     conn,
		battleID: battleID,
		messages: make(chan domain.ChannelMessage, 64),
	}
	go s.read()
	return s, nil
}

type clientSubscription struct {
	conn     *websocket.Conn
	battleID string
	messages chan domain.ChannelMessage

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *clientSubscription) Publish(ctx context.Context, msg domain.ChannelMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteJSON(frame{ChannelMessage: msg})
}

func (s *clientSubscription) Messages() <-chan domain.ChannelMessage { return s.messages }

func (s *clientSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *clientSubscription) read() {
	defer close(s.messages)
	for {
		var in frame
		if err := s.conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Event == eventError {
			log.Warn().Str("battle_id", s.battleID).Str("message", in.Message).Msg("relay rejected message")
			continue
		}
		select {
		case s.messages <- in.ChannelMessage:
		default:
		}
	}
}
