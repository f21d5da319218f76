package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/savetray/internal/config"
)

const validConfig = `
self: gm
coordinator: gm
peers:
  gm: http://127.0.0.1:7420
  player-1: http://127.0.0.1:7421
`

func TestValidateConfig_Valid(t *testing.T) {
	path := writeConfig(t, validConfig)

	out, err := execute(t, "validate-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Config valid")
	assert.Contains(t, out, "self: gm  coordinator: gm  peers: 2")
}

func TestValidateConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, validConfig)

	out, err := execute(t, "--format", "json", "validate-config", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Config)
	assert.Equal(t, "8s", resp.Data.Config.Timeout)
}

func TestValidateConfig_CrossFieldErrors(t *testing.T) {
	path := writeConfig(t, "self: gm\ncoordinator: ghost\ntimeout: -1s\npeers:\n  gm: http://127.0.0.1:7420\n")

	out, err := execute(t, "validate-config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, config.ErrCodeTimeout)
	assert.Contains(t, out, config.ErrCodeCoordinator)
	assert.Contains(t, err.Error(), "2 error(s)")
}

func TestValidateConfig_SchemaErrorJSON(t *testing.T) {
	path := writeConfig(t, "self: gm\npeers:\n  gm: ftp://nope\n")

	out, err := execute(t, "--format", "json", "validate-config", path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, config.ErrCodeSchema, resp.Error.Code)
}

func TestValidateConfig_UnknownKey(t *testing.T) {
	path := writeConfig(t, "self: gm\nselff: gm\n")

	out, err := execute(t, "validate-config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, config.ErrCodeParse)
}

func TestValidateConfig_MissingFile(t *testing.T) {
	out, err := execute(t, "validate-config", filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}
