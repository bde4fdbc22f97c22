// Package generator produces random task payloads for demos and tests.
//
// The engine never calls into this package. Callers use it to build
// CREATE_TASK commands, the way the original app's "add task" button did.
package generator

import (
	"math/rand/v2"
	"strings"

	"github.com/roach88/synth/internal/model"
)

// Default bounds: priority in [1,4), sequence length in [6,13).
const (
	DefaultMinLength = 6
	DefaultMaxLength = 13
)

// Payload is the user-supplied part of a task.
type Payload struct {
	Priority model.Priority
	Sequence string
}

// Generator draws payloads from a random source.
//
// Thread-safety: a Generator is NOT safe for concurrent use; the
// underlying rand.Rand is not.
type Generator struct {
	rng       *rand.Rand
	minLength int
	maxLength int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLengthRange sets the sequence length bounds [minInclusive, maxExclusive).
func WithLengthRange(minInclusive, maxExclusive int) Option {
	return func(g *Generator) {
		g.minLength = minInclusive
		g.maxLength = maxExclusive
	}
}

// New returns a generator seeded from the runtime's entropy.
func New(opts ...Option) *Generator {
	return NewWithSource(rand.NewPCG(rand.Uint64(), rand.Uint64()), opts...)
}

// NewSeeded returns a reproducible generator.
func NewSeeded(seed uint64, opts ...Option) *Generator {
	return NewWithSource(rand.NewPCG(seed, seed), opts...)
}

// NewWithSource returns a generator drawing from src.
func NewWithSource(src rand.Source, opts ...Option) *Generator {
	g := &Generator{
		rng:       rand.New(src),
		minLength: DefaultMinLength,
		maxLength: DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.minLength < 1 {
		g.minLength = 1
	}
	if g.maxLength <= g.minLength {
		g.maxLength = g.minLength + 1
	}
	return g
}

// Next returns a random payload.
func (g *Generator) Next() Payload {
	return Payload{
		Priority: g.Priority(),
		Sequence: g.Sequence(),
	}
}

// Priority returns a priority in [Low, Critical].
func (g *Generator) Priority() model.Priority {
	return model.Priority(g.intInRange(int(model.PriorityLow), int(model.PriorityCritical)+1))
}

// Sequence returns a random nucleotide string within the length bounds.
func (g *Generator) Sequence() string {
	n := g.intInRange(g.minLength, g.maxLength)
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(model.Nucleotides[g.rng.IntN(len(model.Nucleotides))])
	}
	return b.String()
}

func (g *Generator) intInRange(minInclusive, maxExclusive int) int {
	return minInclusive + g.rng.IntN(maxExclusive-minInclusive)
}
