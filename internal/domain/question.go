package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies a question variant. It doubles as the fairness category
// used when sharding a corpus.
type Kind string

const (
	KindTrueFalse     Kind = "swipe_true_false"
	KindFillBlank     Kind = "fill_blank"
	KindTapAll        Kind = "tap_all"
	KindMatchPairs    Kind = "match_pairs"
	KindOrderSequence Kind = "order_sequence"
	KindScenario      Kind = "scenario_story"
)

// Kinds lists every supported variant in a stable order.
var Kinds = []Kind{KindTrueFalse, KindFillBlank, KindTapAll, KindMatchPairs, KindOrderSequence, KindScenario}

// DefaultTimeLimit returns the answer window for a kind. Multi-step kinds get more time.
func DefaultTimeLimit(k Kind) time.Duration {
	switch k {
	case KindTrueFalse:
		return 8 * time.Second
	case KindFillBlank:
		return 10 * time.Second
	case KindScenario:
		return 12 * time.Second
	case KindTapAll:
		return 15 * time.Second
	case KindMatchPairs, KindOrderSequence:
		return 18 * time.Second
	}
	return 10 * time.Second
}

// Question is the closed set of drawable question variants. Implementations
// are immutable once loaded.
type Question interface {
	QuestionID() string
	Kind() Kind
	Prompt() string
	question()
}

// Option is a selectable answer with its correctness flag.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Pair links a left-hand term to its right-hand match.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// TrueFalse is a single statement judged fact or myth.
type TrueFalse struct {
	ID          string `json:"id"`
	Statement   string `json:"question"`
	Answer      bool   `json:"answer"`
	Explanation string `json:"explanation,omitempty"`
}

// FillBlank asks for the missing word in a sentence.
type FillBlank struct {
	ID       string   `json:"id"`
	Sentence string   `json:"sentence"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// TapAll is a multi-select question; every correct option must be chosen.
type TapAll struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []Option `json:"options"`
}

// MatchPairs asks the player to connect each left term to its right term.
type MatchPairs struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Pairs []Pair `json:"pairs"`
}

// OrderSequence asks for Items to be arranged as CorrectOrder.
type OrderSequence struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Items        []string `json:"items"`
	CorrectOrder []int    `json:"correctOrder"`
}

// Scenario is a story followed by a single-choice question.
type Scenario struct {
	ID          string   `json:"id"`
	Scenario    string   `json:"scenario"`
	Question    string   `json:"question"`
	Options     []Option `json:"options"`
	Explanation string   `json:"explanation,omitempty"`
}

func (q TrueFalse) QuestionID() string     { return q.ID }
func (q FillBlank) QuestionID() string     { return q.ID }
func (q TapAll) QuestionID() string        { return q.ID }
func (q MatchPairs) QuestionID() string    { return q.ID }
func (q OrderSequence) QuestionID() string { return q.ID }
func (q Scenario) QuestionID() string      { return q.ID }

func (TrueFalse) Kind() Kind     { return KindTrueFalse }
func (FillBlank) Kind() Kind     { return KindFillBlank }
func (TapAll) Kind() Kind        { return KindTapAll }
func (MatchPairs) Kind() Kind    { return KindMatchPairs }
func (OrderSequence) Kind() Kind { return KindOrderSequence }
func (Scenario) Kind() Kind      { return KindScenario }

func (q TrueFalse) Prompt() string     { return q.Statement }
func (q FillBlank) Prompt() string     { return q.Sentence }
func (q TapAll) Prompt() string        { return q.Question }
func (q OrderSequence) Prompt() string { return q.Question }
func (q Scenario) Prompt() string      { return q.Scenario + " " + q.Question }

func (q MatchPairs) Prompt() string {
	if q.Title != "" {
		return q.Title
	}
	return "Match the pairs"
}

func (TrueFalse) question()     {}
func (FillBlank) question()     {}
func (TapAll) question()        {}
func (MatchPairs) question()    {}
func (OrderSequence) question() {}
func (Scenario) question()      {}

// Answer is a player's response. Only the field for the question's kind is read;
// a TimedOut answer is always incorrect.
type Answer struct {
	Choice   bool              `json:"choice,omitempty"`
	Text     string            `json:"text,omitempty"`
	Selected []int             `json:"selected,omitempty"`
	Order    []int             `json:"order,omitempty"`
	Pairs    map[string]string `json:"pairs,omitempty"`
	Option   int               `json:"option,omitempty"`
	TimedOut bool              `json:"timedOut,omitempty"`
}

func TrueFalseAnswer(choice bool) Answer          { return Answer{Choice: choice} }
func FillBlankAnswer(text string) Answer          { return Answer{Text: text} }
func TapAllAnswer(selected ...int) Answer         { return Answer{Selected: selected} }
func OrderAnswer(order ...int) Answer             { return Answer{Order: order} }
func MatchAnswer(pairs map[string]string) Answer { return Answer{Pairs: pairs} }
func ScenarioAnswer(option int) Answer            { return Answer{Option: option} }

// TimeoutAnswer is recorded when the countdown expires.
func TimeoutAnswer() Answer { return Answer{TimedOut: true} }

// Evaluate applies the question's own correctness rule to an answer.
func Evaluate(q Question, a Answer) (bool, error) {
	if a.TimedOut {
		if _, err := kindOf(q); err != nil {
			return false, err
		}
		return false, nil
	}
	switch q := q.(type) {
	case TrueFalse:
		return a.Choice == q.Answer, nil
	case FillBlank:
		return a.Text == q.Answer, nil
	case TapAll:
		return sameIndexSet(a.Selected, correctIndexes(q.Options)), nil
	case MatchPairs:
		if len(a.Pairs) != len(q.Pairs) {
			return false, nil
		}
		for _, p := range q.Pairs {
			if a.Pairs[p.Left] != p.Right {
				return false, nil
			}
		}
		return true, nil
	case OrderSequence:
		return sameSequence(a.Order, q.CorrectOrder), nil
	case Scenario:
		return a.Option >= 0 && a.Option < len(q.Options) && q.Options[a.Option].Correct, nil
	}
	return false, fmt.Errorf("%w: %T", ErrUnknownQuestionKind, q)
}

// CorrectAnswer builds an answer Evaluate accepts for q.
func CorrectAnswer(q Question) Answer {
	switch q := q.(type) {
	case TrueFalse:
		return TrueFalseAnswer(q.Answer)
	case FillBlank:
		return FillBlankAnswer(q.Answer)
	case TapAll:
		return TapAllAnswer(correctIndexes(q.Options)...)
	case MatchPairs:
		pairs := make(map[string]string, len(q.Pairs))
		for _, p := range q.Pairs {
			pairs[p.Left] = p.Right
		}
		return MatchAnswer(pairs)
	case OrderSequence:
		return OrderAnswer(append([]int(nil), q.CorrectOrder...)...)
	case Scenario:
		for i, o := range q.Options {
			if o.Correct {
				return ScenarioAnswer(i)
			}
		}
	}
	return TimeoutAnswer()
}

// IncorrectAnswer builds a plausible answer Evaluate rejects for q.
func IncorrectAnswer(q Question) Answer {
	switch q := q.(type) {
	case TrueFalse:
		return TrueFalseAnswer(!q.Answer)
	case FillBlank:
		for _, o := range q.Options {
			if o != q.Answer {
				return FillBlankAnswer(o)
			}
		}
	case TapAll:
		if len(correctIndexes(q.Options)) > 0 {
			return TapAllAnswer()
		}
		if len(q.Options) > 0 {
			return TapAllAnswer(0)
		}
	case OrderSequence:
		if len(q.CorrectOrder) > 1 {
			reversed := make([]int, len(q.CorrectOrder))
			for i, v := range q.CorrectOrder {
				reversed[len(reversed)-1-i] = v
			}
			return OrderAnswer(reversed...)
		}
	case Scenario:
		for i, o := range q.Options {
			if !o.Correct {
				return ScenarioAnswer(i)
			}
		}
	}
	return TimeoutAnswer()
}

func kindOf(q Question) (Kind, error) {
	switch q.(type) {
	case TrueFalse, FillBlank, TapAll, MatchPairs, OrderSequence, Scenario:
		return q.Kind(), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnknownQuestionKind, q)
}

func correctIndexes(options []Option) []int {
	var out []int
	for i, o := range options {
		if o.Correct {
			out = append(out, i)
		}
	}
	return out
}

func sameIndexSet(got, want []int) bool {
	seen := make(map[int]struct{}, len(got))
	for _, i := range got {
		seen[i] = struct{}{}
	}
	if len(seen) != len(want) {
		return false
	}
	for _, i := range want {
		if _, ok := seen[i]; !ok {
			return false
		}
	}
	return true
}

func sameSequence(got, want []int) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// EncodeQuestion renders q as a JSON object carrying its "type" tag.
func EncodeQuestion(q Question) ([]byte, error) {
	switch q := q.(type) {
	case TrueFalse:
		type alias TrueFalse
		return json.Marshal(struct {
			Type Kind `json:"type"`
			alias
		}{KindTrueFalse, alias(q)})
	case FillBlank:
		type alias FillBlank
		return json.Marshal(struct {
			Type Kind `json:"type"`
			alias
		}{KindFillBlank, alias(q)})
	case TapAll:
		type alias TapAll
		return json.Marshal(struct {
			Type Kind `json:"type"`
			alias
		}{KindTapAll, alias(q)})
	case MatchPairs:
		type alias MatchPairs
		return json.Marshal(struct {
			Type Kind `json:"type"`
			alias
		}{KindMatchPairs, alias(q)})
	case OrderSequence:
		type alias OrderSequence
		return json.Marshal(struct {
			Type Kind `json:"type"`
			alias
		}{KindOrderSequence, alias(q)})
	case Scenario:
		type alias Scenario
		return json.Marshal(struct {
			Type Kind `json:"type"`
			alias
		}{KindScenario, alias(q)})
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownQuestionKind, q)
}

// DecodeQuestion parses a tagged JSON object produced by EncodeQuestion.
// Lesson content of type "connect_concepts" is read as match pairs.
func DecodeQuestion(raw []byte) (Question, error) {
	var head struct {
		Type     Kind `json:"type"`
		Concepts []struct {
			Term       string `json:"term"`
			Definition string `json:"definition"`
		} `json:"concepts"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}

	var (
		q   Question
		err error
	)
	switch head.Type {
	case KindTrueFalse:
		var v TrueFalse
		err = json.Unmarshal(raw, &v)
		q = v
	case KindFillBlank:
		var v FillBlank
		err = json.Unmarshal(raw, &v)
		q = v
	case KindTapAll:
		var v TapAll
		err = json.Unmarshal(raw, &v)
		q = v
	case KindMatchPairs:
		var v MatchPairs
		err = json.Unmarshal(raw, &v)
		q = v
	case "connect_concepts":
		var v MatchPairs
		err = json.Unmarshal(raw, &v)
		for _, c := range head.Concepts {
			v.Pairs = append(v.Pairs, Pair{Left: c.Term, Right: c.Definition})
		}
		q = v
	case KindOrderSequence:
		var v OrderSequence
		err = json.Unmarshal(raw, &v)
		q = v
	case KindScenario:
		var v Scenario
		err = json.Unmarshal(raw, &v)
		q = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestionKind, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s question: %w", head.Type, err)
	}
	return q, nil
}
