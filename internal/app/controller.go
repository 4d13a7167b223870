package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-battle/internal/corpus"
	"quiz-battle/internal/domain"
	"quiz-battle/internal/shard"
)

// Config tunes the battle lifecycle.
type Config struct {
	Questions      int
	PerKindCap     int
	CorpusVersion  string
	Countdown      time.Duration
	Timing         RoundTiming
	PollInterval   time.Duration
	WaitCeiling    time.Duration
	SubmitAttempts int
	SubmitBackoff  time.Duration
	InviteTTL      time.Duration
}

// DefaultConfig returns the production battle settings.
func DefaultConfig() Config {
	return Config{
		Questions:     shard.DefaultQuestions,
		PerKindCap:    shard.DefaultPerKindCap,
		CorpusVersion: corpus.DefaultVersion,
		Countdown:     3 * time.Second,
		Timing: RoundTiming{
			Tick:  100 * time.Millisecond,
			Pause: 800 * time.Millisecond,
		},
		PollInterval:   3 * time.Second,
		WaitCeiling:    5 * time.Minute,
		SubmitAttempts: 3,
		SubmitBackoff:  500 * time.Millisecond,
		InviteTTL:      5 * time.Minute,
	}
}

// View renders lifecycle progress. Calls arrive from the controller's
// goroutine except OnOpponent, which arrives from the session watcher.
type View interface {
	RoundObserver
	OnPhase(p Phase)
	OnCountdown(remaining time.Duration)
	OnOpponent(s Snapshot)
	OnResult(r Result)
}

// NopView ignores every update.
type NopView struct{}

func (NopView) OnQuestion(Prompt)          {}
func (NopView) OnTick(int, time.Duration)  {}
func (NopView) OnResolved(Resolution, int) {}
func (NopView) OnPhase(Phase)              {}
func (NopView) OnCountdown(time.Duration)  {}
func (NopView) OnOpponent(Snapshot)        {}
func (NopView) OnResult(Result)            {}

// Controller drives one participant through invite, play and settlement.
type Controller struct {
	gateway   Gateway
	corpora   CorpusRepository
	sessions  SessionRegistry
	transport Transport
	clock     clockwork.Clock
	cfg       Config
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the wall clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithTransport enables the realtime score channel.
func WithTransport(t Transport) Option {
	return func(c *Controller) { c.transport = t }
}

// NewController wires a controller. Without WithTransport battles run on
// polling alone.
func NewController(gateway Gateway, corpora CorpusRepository, sessions SessionRegistry, opts ...Option) *Controller {
	c := &Controller{
		gateway:  gateway,
		corpora:  corpora,
		sessions: sessions,
		clock:    clockwork.NewRealClock(),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg = c.cfg.withDefaults()
	return c
}

// withDefaults replaces settings that cannot drive a battle with the
// production values. A zero countdown or tick is valid and kept.
func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.Questions <= 0 {
		cfg.Questions = def.Questions
	}
	if cfg.PerKindCap <= 0 {
		cfg.PerKindCap = def.PerKindCap
	}
	if cfg.CorpusVersion == "" {
		cfg.CorpusVersion = def.CorpusVersion
	}
	if cfg.Countdown < 0 {
		cfg.Countdown = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.WaitCeiling <= 0 {
		cfg.WaitCeiling = def.WaitCeiling
	}
	if cfg.SubmitAttempts <= 0 {
		cfg.SubmitAttempts = 1
	}
	if cfg.SubmitBackoff <= 0 {
		cfg.SubmitBackoff = def.SubmitBackoff
	}
	return cfg
}

// DrawFingerprint identifies the question set a battle draws: the corpus
// content and the shard options. Clients that disagree on it may play
// different questions.
func DrawFingerprint(corpusFingerprint string, opts shard.Options) string {
	return fmt.Sprintf("%s/q%d/c%d", corpusFingerprint, opts.Questions, opts.PerKindCap)
}

// CreateBattle invites opponentID. The remote store debits the challenger's
// wager atomically with creation; on error nothing was created.
func (c *Controller) CreateBattle(ctx context.Context, challengerID, opponentID string, coinBet int) (domain.Battle, error) {
	if coinBet < 0 || challengerID == "" || opponentID == "" || challengerID == opponentID {
		return domain.Battle{}, domain.ErrInvalidWager
	}
	seed := uuid.NewString()
	battle, err := c.gateway.CreateBattle(ctx, challengerID, opponentID, coinBet, seed)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("create battle: %w", err)
	}
	log.Info().Str("battle_id", battle.ID).Str("user_id", challengerID).Str("opponent_id", opponentID).
		Int("coin_bet", coinBet).Msg("battle created")
	return battle, nil
}

// JoinBattle accepts an invite. The opponent's wager is debited remotely; the
// challenger's wager is never refunded from here.
func (c *Controller) JoinBattle(ctx context.Context, battleID, userID string) (domain.Battle, error) {
	battle, err := c.gateway.JoinBattle(ctx, battleID, userID)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("join battle %s: %w", battleID, err)
	}
	log.Info().Str("battle_id", battleID).Str("user_id", userID).Msg("battle joined")
	return battle, nil
}

// PendingChallenges lists invites addressed to userID that are still inside the invite window.
func (c *Controller) PendingChallenges(ctx context.Context, userID string) ([]domain.Battle, error) {
	return c.gateway.PendingChallenges(ctx, userID, c.clock.Now().Add(-c.cfg.InviteTTL))
}

// CheckStatus reads the authoritative record and reconciles it for selfID.
// It is the way back into a battle after ErrOpponentTimeout or
// ErrSettlementUnconfirmed.
func (c *Controller) CheckStatus(ctx context.Context, battleID, selfID string) (Result, error) {
	s, err := c.gateway.BattleStatus(ctx, battleID)
	if err != nil {
		return Result{}, fmt.Errorf("battle status %s: %w", battleID, err)
	}
	return c.reconcile(s, selfID)
}

// Play runs the full lifecycle for selfID: countdown, question loop,
// submission and reconciliation. A cancelled context abandons the session
// and tears down every timer and subscription; the remote record is left as is.
//
// Expired and completed battles are rejected with ErrBattleNotActive, as is a
// pending battle for the opponent, who has not joined yet.
//
// When the opponent does not finish within the wait ceiling, Play returns a
// pending Result with ErrOpponentTimeout. When the submission cannot be
// confirmed it returns a pending Result with ErrSettlementUnconfirmed.
func (c *Controller) Play(ctx context.Context, battle domain.Battle, selfID string, player Player, view View) (Result, error) {
	if view == nil {
		view = NopView{}
	}
	if !battle.IsParticipant(selfID) {
		return Result{}, fmt.Errorf("play battle %s: %w", battle.ID, domain.ErrNotParticipant)
	}
	switch {
	case battle.Status == domain.BattleStatusExpired,
		battle.Status == domain.BattleStatusCompleted,
		battle.Status == domain.BattleStatusPending && selfID == battle.OpponentID:
		return Result{}, fmt.Errorf("play battle %s (%s): %w", battle.ID, battle.Status, domain.ErrBattleNotActive)
	}
	if err := c.sessions.Acquire(ctx, selfID, battle.ID); err != nil {
		return Result{}, fmt.Errorf("play battle %s: %w", battle.ID, err)
	}
	defer c.sessions.Release(context.WithoutCancel(ctx), selfID, battle.ID)

	set, err := c.corpora.GetCorpus(ctx, c.cfg.CorpusVersion)
	if err != nil {
		return Result{}, fmt.Errorf("load corpus %s: %w", c.cfg.CorpusVersion, err)
	}
	opts := shard.Options{Questions: c.cfg.Questions, PerKindCap: c.cfg.PerKindCap}
	draw := shard.ForBattle(battle.ID, set.Questions, opts)
	if len(draw.Questions) == 0 {
		return Result{}, domain.ErrEmptyCorpus
	}
	logger := log.With().Str("battle_id", battle.ID).Str("user_id", selfID).Logger()
	if draw.Relaxed {
		logger.Info().Interface("kinds", draw.Kinds()).Msg("kind cap relaxed to fill battle")
	}

	sess := newSession(battle, selfID, draw.Questions, c.clock.Now)
	defer sess.close()
	stopWatch := watchOpponent(sess, view)
	defer stopWatch()

	fingerprint := DrawFingerprint(set.Fingerprint(), opts)
	opponentDone := make(chan struct{}, 1)
	bc := NewBroadcaster(c.transport, selfID)
	bc.OnReady(func(u domain.ScoreUpdate) {
		if u.CorpusVersion != "" && u.CorpusVersion != fingerprint {
			logger.Warn().Str("local", fingerprint).Str("remote", u.CorpusVersion).
				Msg("opponent draws from a different corpus or shard settings, question sets may diverge")
		}
	})
	bc.OnScoreUpdate(func(u domain.ScoreUpdate) {
		sess.applyOpponent(u, false)
	})
	bc.OnFinished(func(u domain.ScoreUpdate) {
		if sess.applyOpponent(u, true) {
			select {
			case opponentDone <- struct{}{}:
			default:
			}
		}
	})
	if err := bc.Connect(ctx, battle.ID); err != nil {
		logger.Warn().Err(err).Msg("realtime channel unavailable, relying on status polling")
	}
	defer bc.Disconnect()
	bc.BroadcastReady(domain.ScoreUpdate{CorpusVersion: fingerprint})

	result, err := c.play(ctx, battle, selfID, sess, bc, player, view, opponentDone)
	if err != nil && ctx.Err() != nil {
		c.setPhase(sess, view, PhaseAbandoned)
		logger.Info().Msg("battle session abandoned")
	}
	return result, err
}

func (c *Controller) play(ctx context.Context, battle domain.Battle, selfID string, sess *Session, bc *Broadcaster,
	player Player, view View, opponentDone <-chan struct{}) (Result, error) {
	c.setPhase(sess, view, PhaseCountdown)
	if err := c.countdown(ctx, view); err != nil {
		return Result{}, err
	}

	c.setPhase(sess, view, PhaseInProgress)
	runner := newRoundRunner(c.clock, c.cfg.Timing, sess.Questions(), player, view)
	runner.onResolve = func(r Round, _ Resolution) {
		sess.applyRound(r)
		bc.BroadcastScore(domain.ScoreUpdate{Score: r.Score, TimeMs: r.TotalTime.Milliseconds(), QuestionIndex: r.Index})
	}
	round, err := runner.run(ctx)
	if err != nil {
		return Result{}, err
	}

	c.setPhase(sess, view, PhaseLocallyFinished)
	timeMs := round.TotalTime.Milliseconds()
	settlement, err := c.submit(ctx, battle.ID, selfID, round.Score, timeMs)
	if err != nil {
		return Result{
			BattleID:   battle.ID,
			SelfID:     selfID,
			OpponentID: battle.OpponentOf(selfID),
			Outcome:    OutcomePending,
			SelfScore:  round.Score,
			SelfTimeMs: timeMs,
			CoinBet:    battle.CoinBet,
			Headline:   "Result not confirmed, check battle status",
		}, err
	}
	// The opponent polls on this signal, so it goes out once the score is recorded.
	bc.BroadcastFinished(domain.ScoreUpdate{Score: round.Score, TimeMs: timeMs, QuestionIndex: round.Total()})

	if !settlement.Finished {
		c.setPhase(sess, view, PhaseWaiting)
		settlement, err = c.waitForOpponent(ctx, settlement, opponentDone)
		if err != nil {
			pending, _ := Reconcile(settlement, selfID)
			return pending, err
		}
	}

	c.setPhase(sess, view, PhaseSettled)
	result, err := c.reconcile(settlement, selfID)
	if err != nil {
		return Result{}, err
	}
	view.OnResult(result)
	c.setPhase(sess, view, PhaseResultsShown)
	return result, nil
}

func (c *Controller) setPhase(sess *Session, view View, p Phase) {
	sess.setPhase(p)
	view.OnPhase(p)
}

func (c *Controller) countdown(ctx context.Context, view View) error {
	left := c.cfg.Countdown
	for left > 0 {
		view.OnCountdown(left)
		step := min(time.Second, left)
		if err := sleep(ctx, c.clock, step); err != nil {
			return err
		}
		left -= step
	}
	view.OnCountdown(0)
	return nil
}

// submit retries the idempotent submit RPC a bounded number of times.
func (c *Controller) submit(ctx context.Context, battleID, userID string, score int, timeMs int64) (domain.Settlement, error) {
	var (
		out      domain.Settlement
		attempts int
	)
	op := func() error {
		attempts++
		s, err := c.gateway.SubmitResult(ctx, battleID, userID, score, timeMs)
		if err != nil {
			if terminalSubmitError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = s
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.SubmitBackoff
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Clock = c.clock
	policy.Reset()
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.SubmitAttempts-1)), ctx)

	notify := func(err error, next time.Duration) {
		log.Warn().Err(err).Str("battle_id", battleID).Str("user_id", userID).
			Int("attempt", attempts).Dur("retry_in", next).Msg("submit result failed, retrying")
	}
	if err := backoff.RetryNotifyWithTimer(op, b, notify, &clockTimer{clock: c.clock}); err != nil {
		switch {
		case terminalSubmitError(err):
			return domain.Settlement{}, fmt.Errorf("submit result for battle %s: %w", battleID, err)
		case ctx.Err() != nil:
			return domain.Settlement{}, ctx.Err()
		}
		log.Error().Err(err).Str("battle_id", battleID).Str("user_id", userID).
			Int("attempts", attempts).Msg("submit result unconfirmed")
		return domain.Settlement{}, fmt.Errorf("%w: battle %s after %d attempts: %v",
			domain.ErrSettlementUnconfirmed, battleID, attempts, err)
	}
	return out, nil
}

func terminalSubmitError(err error) bool {
	return errors.Is(err, domain.ErrBattleNotFound) ||
		errors.Is(err, domain.ErrNotParticipant) ||
		errors.Is(err, domain.ErrBattleNotActive) ||
		errors.Is(err, domain.ErrInvalidResult)
}

// waitForOpponent reconciles completion from both the realtime finish signal
// and a status poll, until the record is completed or the ceiling elapses.
// The realtime signal only triggers an early poll.
func (c *Controller) waitForOpponent(ctx context.Context, last domain.Settlement, opponentDone <-chan struct{}) (domain.Settlement, error) {
	poll := c.clock.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()
	ceiling := c.clock.NewTimer(c.cfg.WaitCeiling)
	defer ceiling.Stop()

	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ceiling.Chan():
			log.Warn().Str("battle_id", last.BattleID).Dur("ceiling", c.cfg.WaitCeiling).Msg("stopped waiting for opponent")
			return last, fmt.Errorf("battle %s: %w", last.BattleID, domain.ErrOpponentTimeout)
		case <-opponentDone:
		case <-poll.Chan():
		}

		s, err := c.gateway.BattleStatus(ctx, last.BattleID)
		if err != nil {
			log.Warn().Err(err).Str("battle_id", last.BattleID).Msg("battle status poll failed")
			continue
		}
		last = s
		if s.Finished {
			return s, nil
		}
	}
}

func (c *Controller) reconcile(s domain.Settlement, selfID string) (Result, error) {
	result, err := Reconcile(s, selfID)
	if errors.Is(err, domain.ErrSettlementMismatch) {
		log.Error().Err(err).Str("battle_id", s.BattleID).Str("user_id", selfID).Msg("remote winner disagrees with scores")
		return result, nil
	}
	return result, err
}

// watchOpponent forwards opponent changes in the session mirror to view
// until the returned stop is called. stop drains what is already queued.
func watchOpponent(sess *Session, view View) func() {
	snaps, cancel := sess.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		last, ok := <-snaps
		if !ok {
			return
		}
		for snap := range snaps {
			if snap.OpponentIndex == last.OpponentIndex &&
				snap.OpponentScore == last.OpponentScore &&
				snap.OpponentFinished == last.OpponentFinished {
				continue
			}
			last = snap
			view.OnOpponent(snap)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	t := clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

// clockTimer drives backoff waits from a clockwork clock.
type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.Chan()
}
