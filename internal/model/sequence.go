package model

import (
	"errors"
	"fmt"
	"strings"
)

// Nucleotides is the alphabet a sequence is drawn from.
const Nucleotides = "ATGC"

var (
	ErrInvalidPriority   = errors.New("priority must be 1, 2 or 3")
	ErrEmptySequence     = errors.New("sequence must not be empty")
	ErrInvalidNucleotide = errors.New("sequence contains a symbol outside " + Nucleotides)
	ErrInvalidTransition = errors.New("invalid status transition")
)

// NormalizeSequence upper-cases s and strips surrounding whitespace.
func NormalizeSequence(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateSequence checks s is non-empty and uses only Nucleotides.
// s is expected to be normalized.
func ValidateSequence(s string) error {
	if s == "" {
		return ErrEmptySequence
	}
	for i, r := range s {
		if !strings.ContainsRune(Nucleotides, r) {
			return fmt.Errorf("%w: %q at offset %d", ErrInvalidNucleotide, r, i)
		}
	}
	return nil
}

// ValidatePayload checks the user-supplied part of a task.
func ValidatePayload(p Priority, sequence string) error {
	if !p.Valid() {
		return fmt.Errorf("%w: got %d", ErrInvalidPriority, int(p))
	}
	return ValidateSequence(sequence)
}
