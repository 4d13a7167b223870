package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-battle/internal/domain"
)

type recordingObserver struct {
	mu       sync.Mutex
	prompts  []Prompt
	ticks    []time.Duration
	resolved chan Resolution
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{resolved: make(chan Resolution, 32)}
}

func (o *recordingObserver) OnQuestion(p Prompt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompts = append(o.prompts, p)
}

func (o *recordingObserver) OnTick(_ int, remaining time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks = append(o.ticks, remaining)
}

func (o *recordingObserver) OnResolved(res Resolution, _ int) { o.resolved <- res }

func waitResolved(t *testing.T, o *recordingObserver) Resolution {
	t.Helper()
	select {
	case res := <-o.resolved:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("question not resolved")
	}
	return Resolution{}
}

func TestRunnerTimesOutUnansweredQuestion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := clockwork.NewFakeClock()
	qs := sampleQuestions()[:2]
	obs := newRecordingObserver()
	idle := PlayerFunc(func(context.Context, Prompt, func(domain.Answer)) {})
	runner := newRoundRunner(clock, RoundTiming{TimeLimits: map[domain.Kind]time.Duration{domain.KindTrueFalse: 8 * time.Second}}, qs, idle, obs)

	type outcome struct {
		round Round
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := runner.run(ctx)
		done <- outcome{r, err}
	}()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for deadline timer: %v", err)
	}
	clock.Advance(7 * time.Second)
	select {
	case res := <-obs.resolved:
		t.Fatalf("resolved before the limit: %+v", res)
	default:
	}
	clock.Advance(time.Second)

	res := waitResolved(t, obs)
	if res.Index != 0 || res.Correct || !res.TimedOut || res.Elapsed != 8*time.Second {
		t.Fatalf("unexpected timeout resolution %+v", res)
	}

	// fill-blank falls back to its default limit
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for second deadline: %v", err)
	}
	clock.Advance(domain.DefaultTimeLimit(domain.KindFillBlank))
	if res := waitResolved(t, obs); res.Index != 1 || !res.TimedOut {
		t.Fatalf("unexpected second resolution %+v", res)
	}

	out := <-done
	if out.err != nil {
		t.Fatalf("run: %v", out.err)
	}
	if out.round.Phase != RoundFinished || out.round.Score != 0 || out.round.Index != 2 {
		t.Fatalf("unexpected final round %+v", out.round)
	}
	if want := 8*time.Second + domain.DefaultTimeLimit(domain.KindFillBlank); out.round.TotalTime != want {
		t.Fatalf("total time %s, want %s", out.round.TotalTime, want)
	}
	if len(obs.prompts) != 2 || obs.prompts[0].Limit != 8*time.Second || obs.prompts[1].Total != 2 {
		t.Fatalf("unexpected prompts %+v", obs.prompts)
	}
}

func TestRunnerTicksAndAcceptsFirstAnswer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := clockwork.NewFakeClock()
	qs := sampleQuestions()[:1]
	obs := newRecordingObserver()
	submits := make(chan func(domain.Answer), 1)
	player := PlayerFunc(func(_ context.Context, _ Prompt, submit func(domain.Answer)) { submits <- submit })
	timing := RoundTiming{
		TimeLimits: map[domain.Kind]time.Duration{domain.KindTrueFalse: time.Second},
		Tick:       250 * time.Millisecond,
		Pause:      time.Second,
	}
	runner := newRoundRunner(clock, timing, qs, player, obs)
	resolved := make(chan Round, 1)
	runner.onResolve = func(r Round, _ Resolution) { resolved <- r }

	done := make(chan error, 1)
	go func() {
		_, err := runner.run(ctx)
		done <- err
	}()

	submit := <-submits
	if err := clock.BlockUntilContext(ctx, 2); err != nil {
		t.Fatalf("waiting for deadline and ticker: %v", err)
	}
	clock.Advance(250 * time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for {
		obs.mu.Lock()
		n := len(obs.ticks)
		obs.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	obs.mu.Lock()
	if len(obs.ticks) == 0 || obs.ticks[0] != 750*time.Millisecond {
		t.Fatalf("expected a tick with 750ms left, got %v", obs.ticks)
	}
	obs.mu.Unlock()

	submit(domain.TrueFalseAnswer(true))
	submit(domain.TrueFalseAnswer(false))
	r := <-resolved
	if r.Score != 1 || r.TotalTime != 250*time.Millisecond {
		t.Fatalf("expected first answer scored once, got score=%d time=%s", r.Score, r.TotalTime)
	}
	if res := waitResolved(t, obs); !res.Correct {
		t.Fatalf("expected correct resolution")
	}

	// feedback pause holds the loop until it elapses
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for pause timer: %v", err)
	}
	select {
	case err := <-done:
		t.Fatalf("run returned during pause: %v", err)
	default:
	}
	clock.Advance(time.Second)
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := clockwork.NewFakeClock()
	runner := newRoundRunner(clock, RoundTiming{}, sampleQuestions(), PlayerFunc(func(context.Context, Prompt, func(domain.Answer)) {}), newRecordingObserver())

	done := make(chan error, 1)
	go func() {
		_, err := runner.run(ctx)
		done <- err
	}()
	if err := clock.BlockUntilContext(context.Background(), 1); err != nil {
		t.Fatalf("block: %v", err)
	}
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop")
	}
}
