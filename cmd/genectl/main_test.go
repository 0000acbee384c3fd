package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func countPrefix(out, prefix string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func TestRunStopsAfterEmissions(t *testing.T) {
	out, err := runCLI(t, "run", "--pop", "10", "--emit-every", "1", "--emissions", "3", "--seed", "5")
	require.NoError(t, err)
	assert.Equal(t, 3, countPrefix(out, "generation="))
	assert.Contains(t, out, "reason=emissions")
	assert.Contains(t, out, "snapshots=3")
}

func TestRunStopsAtGoal(t *testing.T) {
	out, err := runCLI(t, "run", "--pop", "10", "--emit-every", "1", "--goal", "0", "--seed", "5")
	require.NoError(t, err)
	assert.Equal(t, 1, countPrefix(out, "generation="))
	assert.Contains(t, out, "reason=goal")
}

func TestRunFinishesAtMaxGenerations(t *testing.T) {
	out, err := runCLI(t, "run", "--pop", "10", "--emit-every", "5", "--max-gens", "20", "--seed", "5", "--json")
	require.NoError(t, err)

	var lines []snapshotLine
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var line snapshotLine
		require.NoError(t, dec.Decode(&line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 4)
	for i, line := range lines {
		assert.Equal(t, i*5, line.Generation)
		assert.Len(t, line.Genes, 10)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	_, err := runCLI(t, "run", "--pop", "2", "--keep", "0.1")
	require.Error(t, err)

	_, err = runCLI(t, "run", "--scorer", "nope")
	require.Error(t, err)

	_, err = runCLI(t, "run", "--log-level", "loud")
	require.Error(t, err)
}

func TestRunsAndHistoryWithSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gene.db")
	config := writeConfig(t, `{"scorer": "target", "target": "abc", "population_size": 20, "emit_result_every": 2, "seed": 9}`)

	_, err := runCLI(t, "run", "--store", "sqlite", "--db-path", dbPath, "--config", config, "--max-gens", "10")
	require.NoError(t, err)

	out, err := runCLI(t, "runs", "--store", "sqlite", "--db-path", dbPath)
	require.NoError(t, err)
	assert.Equal(t, 1, countPrefix(out, "run_id="))
	assert.Contains(t, out, "scorer=target")
	assert.Contains(t, out, "status=stopped")
	assert.Contains(t, out, "length=3")
	assert.Contains(t, out, "snapshots=5")

	out, err = runCLI(t, "history", "--store", "sqlite", "--db-path", dbPath, "--latest", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "snapshots=2")
	assert.Equal(t, 2, countPrefix(out, "generation="))
	assert.Contains(t, out, "generation=8 ")
}

func TestHistoryRequiresRunSelection(t *testing.T) {
	_, err := runCLI(t, "history")
	require.Error(t, err)

	_, err = runCLI(t, "history", "--run-id", "x", "--latest")
	require.Error(t, err)

	_, err = runCLI(t, "history", "--latest")
	require.Error(t, err)
}

func TestRunsWithEmptyStore(t *testing.T) {
	out, err := runCLI(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "no runs found")
}

func TestScorersListsBuiltins(t *testing.T) {
	out, err := runCLI(t, "scorers")
	require.NoError(t, err)
	assert.Equal(t, "alternating\nsum\ntarget\n", out)
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCLI(t)
	require.Error(t, err)

	_, err = runCLI(t, "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: genectl")
}

func TestRunsAndHistoryReportUnopenableStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing", "gene.db")

	_, err := runCLI(t, "runs", "--store", "sqlite", "--db-path", dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init store")

	_, err = runCLI(t, "history", "--store", "sqlite", "--db-path", dbPath, "--run-id", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init store")
}
