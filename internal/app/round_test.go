package app

import (
	"testing"
	"time"

	"quiz-battle/internal/domain"
)

func sampleQuestions() []domain.Question {
	return []domain.Question{
		domain.TrueFalse{ID: "tf-1", Statement: "Water boils at 100C at sea level", Answer: true},
		domain.FillBlank{ID: "fb-1", Sentence: "Paris is the capital of ___", Options: []string{"France", "Spain"}, Answer: "France"},
		domain.Scenario{ID: "sc-1", Scenario: "You see smoke.", Question: "What first?", Options: []domain.Option{
			{Text: "Ignore it"}, {Text: "Raise the alarm", Correct: true},
		}},
	}
}

func show(t *testing.T, r Round, at time.Time) Round {
	t.Helper()
	next, res, err := r.Apply(ShowEvent{At: at, Limit: 8 * time.Second})
	if err != nil || res != nil {
		t.Fatalf("show: res=%v err=%v", res, err)
	}
	return next
}

func TestRoundAnswerAndTimeoutSameTick(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	r := show(t, NewRound(sampleQuestions()), start)
	at := start.Add(8 * time.Second)

	r, res, err := r.Apply(AnswerEvent{Index: 0, At: at, Answer: domain.TrueFalseAnswer(true)})
	if err != nil || res == nil || !res.Correct {
		t.Fatalf("expected correct resolution, got %+v err=%v", res, err)
	}
	r2, res2, err := r.Apply(TimeoutEvent{Index: 0, At: at})
	if err != nil || res2 != nil {
		t.Fatalf("timeout after answer must be ignored, got %+v err=%v", res2, err)
	}
	if r2.Score != 1 || r2.TotalTime != 8*time.Second || r2.Index != 1 {
		t.Fatalf("expected single resolution, got score=%d time=%s index=%d", r2.Score, r2.TotalTime, r2.Index)
	}

	// the reverse order
	r = show(t, NewRound(sampleQuestions()), start)
	r, res, _ = r.Apply(TimeoutEvent{Index: 0, At: at})
	if res == nil || res.Correct || !res.TimedOut {
		t.Fatalf("expected timed out resolution, got %+v", res)
	}
	r, res, _ = r.Apply(AnswerEvent{Index: 0, At: at, Answer: domain.TrueFalseAnswer(true)})
	if res != nil {
		t.Fatalf("answer after timeout must be ignored")
	}
	if r.Score != 0 || r.TotalTime != 8*time.Second {
		t.Fatalf("expected score 0 and one elapsed window, got %d %s", r.Score, r.TotalTime)
	}
}

func TestRoundStaleEventsIgnored(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	r := NewRound(sampleQuestions())

	if _, res, _ := r.Apply(AnswerEvent{Index: 0, At: start}); res != nil {
		t.Fatalf("answer while idle must be ignored")
	}
	r = show(t, r, start)
	if next, _, _ := r.Apply(ShowEvent{At: start.Add(time.Second)}); next.StartedAt != start {
		t.Fatalf("show while displaying must not restart the question")
	}
	if _, res, _ := r.Apply(AnswerEvent{Index: 1, At: start}); res != nil {
		t.Fatalf("answer for another index must be ignored")
	}
}

func TestRoundScoreMonotonicAndFinishes(t *testing.T) {
	qs := sampleQuestions()
	start := time.Unix(1_700_000_000, 0)
	r := NewRound(qs)
	answers := []domain.Answer{
		domain.TrueFalseAnswer(false),
		domain.FillBlankAnswer("France"),
		domain.ScenarioAnswer(1),
	}

	prevScore, prevTime := 0, time.Duration(0)
	at := start
	for i, a := range answers {
		r = show(t, r, at)
		if q, ok := r.Current(); !ok || q.QuestionID() != qs[i].QuestionID() {
			t.Fatalf("expected question %d on display", i)
		}
		at = at.Add(time.Duration(i+1) * time.Second)
		if got := r.Remaining(at); got != 8*time.Second-time.Duration(i+1)*time.Second {
			t.Fatalf("remaining %s", got)
		}
		var res *Resolution
		r, res, _ = r.Apply(AnswerEvent{Index: i, At: at, Answer: a})
		if res == nil {
			t.Fatalf("question %d not resolved", i)
		}
		if r.Score < prevScore || r.Score > r.Index || r.TotalTime < prevTime {
			t.Fatalf("invariant broken at %d: score=%d index=%d time=%s", i, r.Score, r.Index, r.TotalTime)
		}
		prevScore, prevTime = r.Score, r.TotalTime
	}

	r, _, _ = r.Apply(ShowEvent{At: at})
	if r.Phase != RoundFinished {
		t.Fatalf("expected finished, got %s", r.Phase)
	}
	if r.Score != 2 || r.TotalTime != 6*time.Second {
		t.Fatalf("expected score 2 in 6s, got %d in %s", r.Score, r.TotalTime)
	}
}

func TestRoundEvaluationErrorScoresIncorrect(t *testing.T) {
	r := show(t, NewRound([]domain.Question{unknownQuestion{}}), time.Unix(0, 0))
	r, res, err := r.Apply(AnswerEvent{Index: 0, At: time.Unix(1, 0)})
	if err == nil {
		t.Fatalf("expected evaluation error")
	}
	if res == nil || res.Correct || r.Index != 1 {
		t.Fatalf("expected incorrect resolution, got %+v", res)
	}
}

// unknownQuestion embeds a real variant to satisfy the sealed interface while
// presenting a type the evaluator has no case for.
type unknownQuestion struct{ domain.TrueFalse }
