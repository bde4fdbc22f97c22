// Package model defines the task types shared by the synthesizer engine,
// the journal and the CLI.
//
// This package contains type definitions and validation only. Every other
// internal package may import model; model imports nothing internal.
//
// Key design constraints:
//   - Status-specific fields live on the status variant, never on Task itself,
//     so an ElementsLeft on a pending task cannot be expressed
//   - Length is always derived from the sequence
//   - All JSON tags use snake_case
package model
