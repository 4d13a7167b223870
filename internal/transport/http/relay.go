package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quiz-battle/internal/app"
	"quiz-battle/internal/domain"
)

const (
	relaySendBuffer   = 16
	relayPublishLimit = 2 * time.Second
)

// eventError marks a relay notice rather than a channel message.
const eventError domain.ChannelEvent = "error"

// frame is what travels over the socket in both directions: a channel
// message, or an error notice from the relay.
type frame struct {
	domain.ChannelMessage
	Message string `json:"message,omitempty"`
}

// Relay bridges websocket clients onto battle channels of a Transport so
// clients without direct broker access can still exchange score messages.
type Relay struct {
	transport app.Transport
	upgrader  websocket.Upgrader
}

func NewRelay(transport app.Transport) *Relay {
	return &Relay{
		transport: transport,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS attaches one participant to a battle channel. Every inbound
// message is republished with the connection's userId, so a client cannot
// speak for its opponent.
func (h *Relay) ServeWS(w http.ResponseWriter, r *http.Request) {
	battleID := r.URL.Query().Get("battleId")
	userID := r.URL.Query().Get("userId")
	if battleID == "" || userID == "" {
		http.Error(w, "missing battleId or userId", http.StatusBadRequest)
		return
	}

	// Subscribe before upgrading so the client can publish as soon as the
	// handshake completes.
	sub, err := h.transport.Subscribe(r.Context(), domain.ChannelName(battleID))
	if err != nil {
		log.Warn().Err(err).Str("battle_id", battleID).Msg("relay subscribe failed")
		http.Error(w, "realtime channel unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("battle_id", battleID).Str("user_id", userID).Logger()
	logger.Debug().Msg("relay client attached")

	send := make(chan frame, relaySendBuffer)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	forwardDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(forwardDone)
		for {
			select {
			case msg, ok := <-sub.Messages():
				if !ok {
					return
				}
				select {
				case send <- frame{ChannelMessage: msg}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

read:
	for {
		var in frame
		if err := conn.ReadJSON(&in); err != nil {
			break
		}
		switch in.Event {
		case domain.EventReady, domain.EventScore, domain.EventFinished:
			msg := in.ChannelMessage
			msg.Payload.UserID = userID
			if err := h.publish(r.Context(), sub, msg); err != nil {
				logger.Warn().Err(err).Str("event", string(msg.Event)).Msg("relay publish failed")
			}
		default:
			select {
			case send <- frame{ChannelMessage: domain.ChannelMessage{Event: eventError}, Message: "unsupported event"}:
			case <-writerDone:
				break read
			}
		}
	}

	close(closeSignals)
	<-forwardDone
	close(send)
	<-writerDone
	logger.Debug().Msg("relay client detached")
}

func (h *Relay) publish(ctx context.Context, sub app.Subscription, msg domain.ChannelMessage) error {
	ctx, cancel := context.WithTimeout(ctx, relayPublishLimit)
	defer cancel()
	return sub.Publish(ctx, msg)
}
