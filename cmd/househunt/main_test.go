package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "househunt version "+version+"\n", out)

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version"`)
}

func TestRunCmdWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.csv")
	summaryPath := filepath.Join(dir, "runs.csv")
	dbPath := filepath.Join(dir, "db", "runs.db")

	out, err := execute(t, "run", "--seed", "5", "--log-level", "warn",
		"--trace", tracePath, "--summary", summaryPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "seed 5:")
	assert.Contains(t, out, "stored as run ")

	trace := readLines(t, tracePath)
	assert.True(t, strings.HasPrefix(trace[0], "N,Q,S,"), trace[0])
	assert.Greater(t, len(trace), 1)

	summary := readLines(t, summaryPath)
	require.Len(t, summary, 2)
	assert.True(t, strings.HasPrefix(summary[0], "Seed,ColonySize,"))
	assert.True(t, strings.HasPrefix(summary[1], "5,100,10,"))

	// A second run appends without repeating the header.
	_, err = execute(t, "run", "--seed", "6", "--log-level", "warn", "--summary", summaryPath, "--db", dbPath)
	require.NoError(t, err)
	summary = readLines(t, summaryPath)
	require.Len(t, summary, 3)
	assert.True(t, strings.HasPrefix(summary[2], "6,"))

	out, err = execute(t, "history", "--db", dbPath, "--log-level", "warn")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
}

func TestRunCmdReadsConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "exp.yaml")
	yaml := `colony:
  size: 30
  num_scouts: 6
run:
  seed: 9
  max_ticks: 300
logging:
  level: error
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0644))

	summaryPath := filepath.Join(dir, "runs.csv")
	_, err := execute(t, "run", "--config", cfgPath, "--summary", summaryPath)
	require.NoError(t, err)
	summary := readLines(t, summaryPath)
	require.Len(t, summary, 2)
	assert.True(t, strings.HasPrefix(summary[1], "9,30,6,"), summary[1])
}

func TestBatchCmd(t *testing.T) {
	dir := t.TempDir()
	summaryPath := filepath.Join(dir, "batch.csv")
	out, err := execute(t, "batch", "--runs", "3", "--parallel", "2", "--random-sites", "3",
		"--seed", "100", "--summary", summaryPath, "--log-level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "Ran 3 of 3")

	summary := readLines(t, summaryPath)
	require.Len(t, summary, 4)
	assert.Contains(t, summary[0], "Nest4QuorumSize")
}

func TestHistoryEmpty(t *testing.T) {
	out, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	assert.Equal(t, "No runs stored.\n", out)
}

func TestBadFlags(t *testing.T) {
	_, err := execute(t, "run", "--log-level", "loud")
	assert.Error(t, err)

	_, err = execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "batch", "--runs", "0")
	assert.Error(t, err)

	_, err = execute(t, "history", "--limit", "0")
	assert.Error(t, err)
}
