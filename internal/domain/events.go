package domain

import "strings"

// ChannelEvent names a message kind on the realtime battle channel.
type ChannelEvent string

const (
	EventReady    ChannelEvent = "ready"
	EventScore    ChannelEvent = "score"
	EventFinished ChannelEvent = "finished"
)

// ScoreUpdate is the payload carried by every channel message.
type ScoreUpdate struct {
	UserID        string `json:"userId"`
	Score         int    `json:"score"`
	TimeMs        int64  `json:"timeMs"`
	QuestionIndex int    `json:"questionIndex"`
	CorpusVersion string `json:"corpusVersion,omitempty"`
}

// ChannelMessage is the JSON envelope published on a battle channel.
type ChannelMessage struct {
	Event   ChannelEvent `json:"event"`
	Payload ScoreUpdate  `json:"payload"`
}

// ChannelName scopes a pub/sub channel to one battle.
func ChannelName(battleID string) string {
	return "quiz-battle-" + battleID
}

// BattleIDFromChannel reverses ChannelName.
func BattleIDFromChannel(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, "quiz-battle-")
	return id, ok && id != ""
}
