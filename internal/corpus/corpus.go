// Package corpus holds the versioned question set every client shards from.
package corpus

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"quiz-battle/internal/domain"
)

//go:embed questions.json
var embedded []byte

// DefaultVersion names the corpus compiled into the binary.
const DefaultVersion = "lessons-v1"

// Corpus is an immutable, versioned list of questions.
type Corpus struct {
	Version   string
	Questions []domain.Question
}

type document struct {
	Version   string            `json:"version"`
	Questions []json.RawMessage `json:"questions"`
}

// Default returns the embedded lesson corpus.
func Default() (Corpus, error) {
	return Parse(embedded)
}

// Parse decodes a corpus document.
func Parse(data []byte) (Corpus, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Corpus{}, fmt.Errorf("parse corpus: %w", err)
	}
	c := Corpus{Version: doc.Version, Questions: make([]domain.Question, 0, len(doc.Questions))}
	seen := make(map[string]struct{}, len(doc.Questions))
	for i, raw := range doc.Questions {
		q, err := domain.DecodeQuestion(raw)
		if err != nil {
			return Corpus{}, fmt.Errorf("corpus %s question %d: %w", doc.Version, i, err)
		}
		if _, dup := seen[q.QuestionID()]; dup {
			return Corpus{}, fmt.Errorf("corpus %s: duplicate question id %q", doc.Version, q.QuestionID())
		}
		seen[q.QuestionID()] = struct{}{}
		c.Questions = append(c.Questions, q)
	}
	if len(c.Questions) == 0 {
		return Corpus{}, domain.ErrEmptyCorpus
	}
	return c, nil
}

// Marshal encodes the corpus in the format Parse reads.
func (c Corpus) Marshal() ([]byte, error) {
	doc := document{Version: c.Version, Questions: make([]json.RawMessage, 0, len(c.Questions))}
	for _, q := range c.Questions {
		raw, err := domain.EncodeQuestion(q)
		if err != nil {
			return nil, err
		}
		doc.Questions = append(doc.Questions, raw)
	}
	return json.Marshal(doc)
}

// Fingerprint identifies the exact question content. Two clients only derive
// the same battle questions when their fingerprints agree.
func (c Corpus) Fingerprint() string {
	raw, err := c.Marshal()
	if err != nil {
		return c.Version
	}
	sum := sha256.Sum256(raw)
	return c.Version + "@" + hex.EncodeToString(sum[:6])
}

// Kinds counts questions per kind.
func (c Corpus) Kinds() map[domain.Kind]int {
	out := make(map[domain.Kind]int)
	for _, q := range c.Questions {
		out[q.Kind()]++
	}
	return out
}
