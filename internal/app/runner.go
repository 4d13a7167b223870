package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-battle/internal/domain"
)

// Prompt is a question as presented to a player.
type Prompt struct {
	Index    int
	Total    int
	Question domain.Question
	Limit    time.Duration
}

// Player answers displayed questions. Present must not block: it hands the
// prompt to the UI (or a bot) and calls submit later. Only the first submit
// for a question is scored.
type Player interface {
	Present(ctx context.Context, p Prompt, submit func(domain.Answer))
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, p Prompt, submit func(domain.Answer))

func (f PlayerFunc) Present(ctx context.Context, p Prompt, submit func(domain.Answer)) {
	f(ctx, p, submit)
}

// RoundObserver receives question loop updates for rendering.
type RoundObserver interface {
	OnQuestion(p Prompt)
	OnTick(index int, remaining time.Duration)
	OnResolved(res Resolution, score int)
}

// RoundTiming configures the question loop clock.
type RoundTiming struct {
	TimeLimits map[domain.Kind]time.Duration
	// Tick is the countdown refresh interval; zero disables ticks.
	Tick time.Duration
	// Pause is the feedback delay between questions.
	Pause time.Duration
}

// LimitFor returns the answer window for kind.
func (t RoundTiming) LimitFor(kind domain.Kind) time.Duration {
	if d, ok := t.TimeLimits[kind]; ok && d > 0 {
		return d
	}
	return domain.DefaultTimeLimit(kind)
}

// roundRunner owns a Round and serializes every event affecting it (answers,
// deadline timers, ticks) through one goroutine.
type roundRunner struct {
	clock     clockwork.Clock
	timing    RoundTiming
	player    Player
	observer  RoundObserver
	events    chan RoundEvent
	round     Round
	onResolve func(Round, Resolution)
}

func newRoundRunner(clock clockwork.Clock, timing RoundTiming, questions []domain.Question, player Player, observer RoundObserver) *roundRunner {
	return &roundRunner{
		clock:    clock,
		timing:   timing,
		player:   player,
		observer: observer,
		events:   make(chan RoundEvent, 8),
		round:    NewRound(questions),
	}
}

// run plays every question and returns the finished round. A cancelled
// context stops the loop and clears every pending timer.
func (r *roundRunner) run(ctx context.Context) (Round, error) {
	done := make(chan struct{})
	defer close(done)

	for {
		limit := time.Duration(0)
		if r.round.Index < r.round.Total() {
			limit = r.timing.LimitFor(r.round.Questions[r.round.Index].Kind())
		}
		r.round, _, _ = r.round.Apply(ShowEvent{At: r.clock.Now(), Limit: limit})
		if r.round.Phase == RoundFinished {
			return r.round, nil
		}

		if err := r.play(ctx, done); err != nil {
			return r.round, err
		}
		if err := r.pause(ctx); err != nil {
			return r.round, err
		}
	}
}

func (r *roundRunner) play(ctx context.Context, done <-chan struct{}) error {
	index := r.round.Index
	q := r.round.Questions[index]

	deadline := r.clock.NewTimer(r.round.Limit)
	defer deadline.Stop()
	var (
		ticker clockwork.Ticker
		ticks  <-chan time.Time
	)
	if r.timing.Tick > 0 {
		ticker = r.clock.NewTicker(r.timing.Tick)
		defer ticker.Stop()
		ticks = ticker.Chan()
	}

	prompt := Prompt{Index: index, Total: r.round.Total(), Question: q, Limit: r.round.Limit}
	r.observer.OnQuestion(prompt)
	r.player.Present(ctx, prompt, func(a domain.Answer) {
		select {
		case r.events <- AnswerEvent{Index: index, At: r.clock.Now(), Answer: a}:
		case <-done:
		}
	})

	for {
		var ev RoundEvent
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev = <-r.events:
		case at := <-deadline.Chan():
			ev = TimeoutEvent{Index: index, At: at}
		case <-ticks:
			r.observer.OnTick(index, r.round.Remaining(r.clock.Now()))
			continue
		}

		next, res, err := r.round.Apply(ev)
		if err != nil {
			log.Warn().Err(err).Str("question", q.QuestionID()).Msg("answer evaluation failed, scored as incorrect")
		}
		r.round = next
		if res == nil {
			continue
		}
		deadline.Stop()
		if ticker != nil {
			ticker.Stop()
		}
		if r.onResolve != nil {
			r.onResolve(r.round, *res)
		}
		r.observer.OnResolved(*res, r.round.Score)
		return nil
	}
}

// pause holds the feedback screen. Late answers for the resolved question are
// drained and ignored by Round.Apply.
func (r *roundRunner) pause(ctx context.Context) error {
	if r.timing.Pause <= 0 {
		return nil
	}
	wait := r.clock.NewTimer(r.timing.Pause)
	defer wait.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.events:
			r.round, _, _ = r.round.Apply(ev)
		case <-wait.Chan():
			return nil
		}
	}
}
