package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenTrace renders the text stored in a scenario's golden file.
func GoldenTrace(scenarioName string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", scenarioName)
	if err := WriteTrace(&buf, result.Trace); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GoldenPath returns the golden file for a scenario file: scenarios in
// <dir>/scenarios/x.yaml pair with <dir>/golden/x.golden.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(filepath.Dir(scenarioFile)), "golden", name+".golden")
}

// CompareGolden reports whether result matches the golden file at path.
// A missing golden file is reported through os.ErrNotExist.
func CompareGolden(path, scenarioName string, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	got, err := GoldenTrace(scenarioName, result)
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}

// UpdateGolden writes the golden file for result.
func UpdateGolden(path, scenarioName string, result *Result) error {
	data, err := GoldenTrace(scenarioName, result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := GoldenTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
