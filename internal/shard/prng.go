package shard

import "unicode/utf16"

// Source yields uniformly distributed floats in [0, 1). Shuffles take a Source
// so tests can substitute a fixed sequence.
type Source interface {
	Float64() float64
}

// HashSeed folds s into a non-negative 32-bit seed with the classic
// hash*31 + code-unit string hash over UTF-16 code units.
func HashSeed(s string) uint32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	if h < 0 {
		return uint32(-int64(h))
	}
	return uint32(h)
}

// Mulberry32 is a 32-bit PRNG whose output sequence is fully determined by its seed.
type Mulberry32 struct {
	state uint32
}

// NewMulberry32 returns a generator seeded with seed.
func NewMulberry32(seed uint32) *Mulberry32 {
	return &Mulberry32{state: seed}
}

// Uint32 advances the generator and returns the next raw output.
func (m *Mulberry32) Uint32() uint32 {
	m.state += 0x6D2B79F5
	t := (m.state ^ (m.state >> 15)) * (1 | m.state)
	t = (t + (t^(t>>7))*(61|t)) ^ t
	return t ^ (t >> 14)
}

// Float64 implements Source.
func (m *Mulberry32) Float64() float64 {
	return float64(m.Uint32()) / 4294967296.0
}

// Sequence replays a fixed list of values, wrapping around when exhausted.
type Sequence struct {
	values []float64
	next   int
}

// NewSequence returns a Source that yields values in order.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

// Float64 implements Source.
func (s *Sequence) Float64() float64 {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}
