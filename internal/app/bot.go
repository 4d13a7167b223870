package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-battle/internal/domain"
)

// Difficulty selects an AI opponent profile.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// BotProfile bounds how often and how fast a bot answers.
type BotProfile struct {
	MinAccuracy float64
	MaxAccuracy float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

var botProfiles = map[Difficulty]BotProfile{
	DifficultyEasy:   {MinAccuracy: 0.3, MaxAccuracy: 0.5, MinDelay: 3 * time.Second, MaxDelay: 7 * time.Second},
	DifficultyMedium: {MinAccuracy: 0.5, MaxAccuracy: 0.7, MinDelay: 2 * time.Second, MaxDelay: 5 * time.Second},
	DifficultyHard:   {MinAccuracy: 0.7, MaxAccuracy: 0.9, MinDelay: 1 * time.Second, MaxDelay: 3 * time.Second},
}

// ProfileFor returns the profile for a difficulty name.
func ProfileFor(d Difficulty) (BotProfile, error) {
	p, ok := botProfiles[Difficulty(strings.ToLower(string(d)))]
	if !ok {
		return BotProfile{}, fmt.Errorf("unknown bot difficulty %q", d)
	}
	return p, nil
}

// Bot is an AI Player. Its accuracy is drawn once per battle from the
// profile range; each answer lands after a random think time.
type Bot struct {
	clock    clockwork.Clock
	profile  BotProfile
	accuracy float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBot returns a bot seeded for reproducible play.
func NewBot(profile BotProfile, clock clockwork.Clock, seed int64) *Bot {
	rng := rand.New(rand.NewSource(seed))
	accuracy := profile.MinAccuracy + rng.Float64()*(profile.MaxAccuracy-profile.MinAccuracy)
	return &Bot{clock: clock, profile: profile, accuracy: accuracy, rng: rng}
}

// Accuracy is the chance the bot answers any one question correctly.
func (b *Bot) Accuracy() float64 { return b.accuracy }

// Present schedules the bot's answer.
func (b *Bot) Present(ctx context.Context, p Prompt, submit func(domain.Answer)) {
	b.mu.Lock()
	correct := b.rng.Float64() < b.accuracy
	delay := b.profile.MinDelay
	if span := b.profile.MaxDelay - b.profile.MinDelay; span > 0 {
		delay += time.Duration(b.rng.Int63n(int64(span) + 1))
	}
	b.mu.Unlock()

	answer := domain.IncorrectAnswer(p.Question)
	if correct {
		answer = domain.CorrectAnswer(p.Question)
	}
	b.clock.AfterFunc(delay, func() {
		if ctx.Err() == nil {
			submit(answer)
		}
	})
}
