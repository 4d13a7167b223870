package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"quiz-battle/internal/app"
)

// consoleView renders one participant's battle as text lines. Callbacks
// arrive from the question loop and the realtime dispatcher concurrently.
type consoleView struct {
	app.NopView

	mu   sync.Mutex
	out  io.Writer
	name string
}

func newConsoleView(out io.Writer, name string) *consoleView {
	return &consoleView{out: out, name: name}
}

func (v *consoleView) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "[%s] "+format+"\n", append([]any{v.name}, args...)...)
}

func (v *consoleView) OnPhase(p app.Phase) {
	log.Debug().Str("user_id", v.name).Str("phase", string(p)).Msg("phase changed")
}

func (v *consoleView) OnCountdown(remaining time.Duration) {
	v.printf("starting in %s", remaining)
}

func (v *consoleView) OnQuestion(p app.Prompt) {
	v.printf("Q%d/%d %s (%s): %s", p.Index+1, p.Total, p.Question.Kind(), p.Limit, p.Question.Prompt())
}

func (v *consoleView) OnResolved(res app.Resolution, score int) {
	verdict := "wrong"
	switch {
	case res.TimedOut:
		verdict = "time's up"
	case res.Correct:
		verdict = "correct"
	}
	v.printf("  %s in %s, score %d", verdict, res.Elapsed.Round(time.Millisecond), score)
}

func (v *consoleView) OnOpponent(s app.Snapshot) {
	if s.OpponentFinished {
		v.printf("  opponent finished with %d", s.OpponentScore)
		return
	}
	v.printf("  opponent at %d", s.OpponentScore)
}

func (v *consoleView) OnResult(r app.Result) {
	v.printf("%s (%d vs %d)", r.Headline, r.SelfScore, r.OpponentScore)
}
