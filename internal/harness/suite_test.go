package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuite_Testdata(t *testing.T) {
	result, err := RunSuite("testdata/scenarios")
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 3, result.Passed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Failures)
}

func TestRunSuite_RecordsFailures(t *testing.T) {
	dir := t.TempDir()

	broken := "name: broken\n"
	failing := `
name: failing
description: expects a commit that never happens
documents:
  - ref: ChatMessage.m1
    kind: message
flow:
  - op: clear
    document: ChatMessage.m1
assertions:
  - type: commit_count
    document: ChatMessage.m1
    count: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_broken.yaml"), []byte(broken), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_failing.yml"), []byte(failing), 0o644))

	result, err := RunSuite(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalScenarios)
	assert.Zero(t, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)

	assert.Empty(t, result.Failures[0].Scenario)
	assert.Contains(t, result.Failures[0].Errors[0], "failed to load scenario")

	assert.Equal(t, "failing", result.Failures[1].Scenario)
	assert.Contains(t, result.Failures[1].Errors[0], "commit_count")
}

func TestFindScenarios_Errors(t *testing.T) {
	_, err := FindScenarios(filepath.Join(t.TempDir(), "missing"))
	var dirErr *ScenarioDirError
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "not found", dirErr.Reason)

	empty := t.TempDir()
	_, err = FindScenarios(empty)
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "no scenario files", dirErr.Reason)

	file := filepath.Join(empty, "x.yaml")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = FindScenarios(file)
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "not a directory", dirErr.Reason)
}
