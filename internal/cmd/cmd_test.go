package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/repolens/internal/config"
	"github.com/namelens/repolens/internal/core"
	"github.com/namelens/repolens/internal/core/engine"
	"github.com/namelens/repolens/internal/output"
)

const fetchResponse = `{"data": {
  "repository": {
    "id": "R_kgDOB",
    "name": "cobra",
    "owner": {"login": "spf13"},
    "stargazerCount": 38000,
    "forkCount": 2800,
    "primaryLanguage": {"name": "Go"},
    "licenseInfo": {"name": "Apache License 2.0"},
    "isArchived": false,
    "isDisabled": false,
    "isFork": false,
    "url": "https://github.com/spf13/cobra",
    "repositoryTopics": {"nodes": [{"topic": {"name": "cli"}}]}
  },
  "rateLimit": {"limit": 5000, "cost": 1, "remaining": 4999, "resetAt": "2025-03-01T13:00:00Z"}
}}`

// isolateConfig keeps config discovery away from the developer's own files.
func isolateConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv(config.TokenFallbackEnv, "")
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestFetchCommandPrintsProject(t *testing.T) {
	isolateConfig(t)

	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fetchResponse))
	}))
	defer srv.Close()

	t.Setenv("REPOLENS_GITHUB_API_URL", srv.URL)
	t.Setenv("REPOLENS_GITHUB_TOKENS", "tok-1")

	out, err := executeRoot(t, "fetch", "spf13/cobra", "--output-format", "json", "--load=false")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", auth)

	var projects []core.Project
	require.NoError(t, json.Unmarshal([]byte(out), &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "R_kgDOB", projects[0].ID)
	assert.Equal(t, []string{"cli"}, projects[0].Topics)
}

func TestFetchCommandRejectsBadReference(t *testing.T) {
	isolateConfig(t)
	t.Setenv("REPOLENS_GITHUB_TOKENS", "tok-1")

	_, err := executeRoot(t, "fetch", "not-a-reference", "--load=false")
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	isolateConfig(t)
	SetVersionInfo("1.4.0", "abc1234", "2025-03-01")

	out, err := executeRoot(t, "version", "--extended=false")
	require.NoError(t, err)
	assert.Equal(t, "repolens 1.4.0\n", out)
}

func TestConfigShowRedactsTokens(t *testing.T) {
	isolateConfig(t)
	t.Setenv("REPOLENS_GITHUB_TOKENS", "secret-a,secret-b")

	out, err := executeRoot(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "secret-a")
	assert.Contains(t, out, "api_url: https://api.github.com/graphql")
}

func TestRedactSettings(t *testing.T) {
	settings := map[string]any{
		"github": map[string]any{
			"tokens":  []any{"a", "b"},
			"api_url": "https://api.github.com/graphql",
		},
		"store": map[string]any{
			"auth_token": "turso-secret",
			"url":        "",
		},
	}

	redactedSettings := redactSettings(settings)

	github := redactedSettings["github"].(map[string]any)
	assert.Equal(t, []string{redacted, redacted}, github["tokens"])
	assert.Equal(t, "https://api.github.com/graphql", github["api_url"])
	store := redactedSettings["store"].(map[string]any)
	assert.Equal(t, redacted, store["auth_token"])
	assert.Equal(t, "", store["url"])

	assert.Equal(t, []any{"a", "b"}, settings["github"].(map[string]any)["tokens"])
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(fmt.Errorf("%w: bad", errInvalidConfig)))
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(&engine.ConfigurationError{Reason: "no tokens"}))
	assert.Equal(t, foundry.ExitFileNotFound, ExitCodeFor(fmt.Errorf("read repositories: %w", os.ErrNotExist)))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(fmt.Errorf("%w: locked", errStoreUnavailable)))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(&engine.RetriesExhaustedError{Attempts: 4, Err: errors.New("x")}))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(errors.New("other")))
}

func TestApplyExtractFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "extract"}
	cmd.Flags().Int("workers", 0, "")
	cmd.Flags().Int("batch-size", 0, "")
	cmd.Flags().Duration("refresh-after", 0, "")
	cmd.Flags().String("failure-log", "", "")
	cmd.Flags().Bool("metrics", false, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--workers", "4", "--refresh-after", "24h", "--metrics"}))

	extract, metricsCfg := applyExtractFlags(cmd,
		config.ExtractConfig{Workers: 1, BatchSize: 50, FailureLog: "failed.log"},
		config.MetricsConfig{Port: 9090})

	assert.Equal(t, 4, extract.Workers)
	assert.Equal(t, 50, extract.BatchSize)
	assert.Equal(t, 24*time.Hour, extract.RefreshAfter)
	assert.Equal(t, "failed.log", extract.FailureLog)
	assert.True(t, metricsCfg.Enabled)
	assert.Equal(t, 9090, metricsCfg.Port)
}

func TestWriteQuotaResetResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeQuotaResetResult(output.FormatTable, &buf, 3))
	assert.Equal(t, "Deleted 3 quota snapshot(s)\n", buf.String())

	buf.Reset()
	require.NoError(t, writeQuotaResetResult(output.FormatJSON, &buf, 2))
	assert.True(t, strings.Contains(buf.String(), `"deleted": 2`))
}
