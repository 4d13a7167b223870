package app

import (
	"time"

	"quiz-battle/internal/domain"
)

// RoundPhase is the per-question state.
type RoundPhase int

const (
	RoundIdle RoundPhase = iota
	RoundDisplaying
	RoundAnswered
	RoundFinished
)

func (p RoundPhase) String() string {
	switch p {
	case RoundIdle:
		return "idle"
	case RoundDisplaying:
		return "displaying"
	case RoundAnswered:
		return "answered"
	case RoundFinished:
		return "finished"
	}
	return "unknown"
}

// RoundEvent drives Round.Apply.
type RoundEvent interface {
	roundEvent()
}

// ShowEvent dequeues the next question, or finishes the round when none remain.
type ShowEvent struct {
	At    time.Time
	Limit time.Duration
}

// AnswerEvent is an explicit answer for the question at Index.
type AnswerEvent struct {
	Index  int
	At     time.Time
	Answer domain.Answer
}

// TimeoutEvent fires when the countdown for the question at Index reaches zero.
type TimeoutEvent struct {
	Index int
	At    time.Time
}

func (ShowEvent) roundEvent()    {}
func (AnswerEvent) roundEvent()  {}
func (TimeoutEvent) roundEvent() {}

// Resolution records how one question was scored.
type Resolution struct {
	Index      int
	QuestionID string
	Kind       domain.Kind
	Correct    bool
	TimedOut   bool
	Elapsed    time.Duration
}

// Round is the local question loop state. It is a value: Apply returns the
// next state and never mutates the receiver.
//
// Invariants: 0 <= Score <= Index <= len(Questions); TotalTime never decreases;
// at most one Resolution per question.
type Round struct {
	Questions []domain.Question
	Index     int
	Score     int
	TotalTime time.Duration
	Phase     RoundPhase
	Answered  bool
	StartedAt time.Time
	Limit     time.Duration
	Last      *Resolution
}

// NewRound returns an idle round over questions.
func NewRound(questions []domain.Question) Round {
	return Round{Questions: questions}
}

// Total is the number of questions in the round.
func (r Round) Total() int { return len(r.Questions) }

// Current returns the question on display.
func (r Round) Current() (domain.Question, bool) {
	if r.Phase != RoundDisplaying || r.Index >= len(r.Questions) {
		return nil, false
	}
	return r.Questions[r.Index], true
}

// Deadline is when the displayed question times out.
func (r Round) Deadline() time.Time { return r.StartedAt.Add(r.Limit) }

// Remaining returns the time left on the displayed question, floored at zero.
func (r Round) Remaining(now time.Time) time.Duration {
	if r.Phase != RoundDisplaying {
		return 0
	}
	if left := r.Deadline().Sub(now); left > 0 {
		return left
	}
	return 0
}

// Apply transitions the round. Events that do not apply to the current state
// (a second answer, a timeout for an already answered question, a show while
// displaying) return the round unchanged with a nil resolution. An evaluation
// error still resolves the question as incorrect and is returned alongside.
func (r Round) Apply(ev RoundEvent) (Round, *Resolution, error) {
	switch ev := ev.(type) {
	case ShowEvent:
		if r.Phase != RoundIdle && r.Phase != RoundAnswered {
			return r, nil, nil
		}
		if r.Index >= len(r.Questions) {
			r.Phase = RoundFinished
			return r, nil, nil
		}
		r.Phase = RoundDisplaying
		r.Answered = false
		r.StartedAt = ev.At
		r.Limit = ev.Limit
		return r, nil, nil

	case AnswerEvent:
		if !r.accepts(ev.Index) {
			return r, nil, nil
		}
		correct, err := domain.Evaluate(r.Questions[r.Index], ev.Answer)
		next, res := r.resolve(ev.At, correct, ev.Answer.TimedOut)
		return next, res, err

	case TimeoutEvent:
		if !r.accepts(ev.Index) {
			return r, nil, nil
		}
		next, res := r.resolve(ev.At, false, true)
		return next, res, nil
	}
	return r, nil, nil
}

func (r Round) accepts(index int) bool {
	return r.Phase == RoundDisplaying && !r.Answered && index == r.Index
}

func (r Round) resolve(at time.Time, correct, timedOut bool) (Round, *Resolution) {
	elapsed := at.Sub(r.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	q := r.Questions[r.Index]
	res := &Resolution{
		Index:      r.Index,
		QuestionID: q.QuestionID(),
		Kind:       q.Kind(),
		Correct:    correct,
		TimedOut:   timedOut,
		Elapsed:    elapsed,
	}

	r.Answered = true
	if correct {
		r.Score++
	}
	r.TotalTime += elapsed
	r.Index++
	r.Phase = RoundAnswered
	r.Last = res
	return r, res
}
