package shard

import "quiz-battle/internal/domain"

const (
	// DefaultQuestions is the battle length.
	DefaultQuestions = 15
	// DefaultPerKindCap bounds how many questions one kind may contribute.
	DefaultPerKindCap = 3
)

// Options tunes selection. Zero values fall back to the defaults.
type Options struct {
	Questions  int
	PerKindCap int
}

// Result is an ordered question draw.
type Result struct {
	Questions []domain.Question
	// Relaxed reports that the capped pass could not fill every slot and the
	// uncapped pass added at least one question.
	Relaxed bool
}

// Kinds returns a histogram of the drawn question kinds.
func (r Result) Kinds() map[domain.Kind]int {
	out := make(map[domain.Kind]int)
	for _, q := range r.Questions {
		out[q.Kind()]++
	}
	return out
}

// ForBattle derives the question set for battleID. Every client holding the same
// corpus computes the same ordered result.
func ForBattle(battleID string, corpus []domain.Question, opts Options) Result {
	return Draw(NewMulberry32(HashSeed(battleID)), corpus, opts)
}

// Draw shuffles a copy of corpus with src and selects questions greedily,
// honouring the per-kind cap before falling back to shuffle order. A corpus
// smaller than the requested size is returned whole.
func Draw(src Source, corpus []domain.Question, opts Options) Result {
	n := opts.Questions
	if n <= 0 {
		n = DefaultQuestions
	}
	limit := opts.PerKindCap
	if limit <= 0 {
		limit = DefaultPerKindCap
	}

	shuffled := Shuffle(src, corpus)
	selected := make([]bool, len(shuffled))
	counts := make(map[domain.Kind]int)
	out := make([]domain.Question, 0, min(n, len(shuffled)))

	for i, q := range shuffled {
		if len(out) == n {
			break
		}
		if counts[q.Kind()] >= limit {
			continue
		}
		counts[q.Kind()]++
		selected[i] = true
		out = append(out, q)
	}

	relaxed := false
	for i, q := range shuffled {
		if len(out) == n {
			break
		}
		if selected[i] {
			continue
		}
		selected[i] = true
		out = append(out, q)
		relaxed = true
	}

	return Result{Questions: out, Relaxed: relaxed}
}

// Shuffle returns a Fisher–Yates permutation of items driven by src. The input is not modified.
func Shuffle[T any](src Source, items []T) []T {
	out := append([]T(nil), items...)
	for i := len(out) - 1; i > 0; i-- {
		j := int(src.Float64() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
