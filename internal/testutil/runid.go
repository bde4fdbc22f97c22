package testutil

import "time"

// Epoch is the virtual start time of every deterministic run.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultRunID is used when a scenario does not name its run.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator generates the same run id every time.
//
// The same scenario with the same FixedRunIDGenerator produces
// byte-identical journals.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a fixed run id generator.
// If id is empty, Generate() returns DefaultRunID.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
//
// Implements journal.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
