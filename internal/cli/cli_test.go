package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/umami-report/internal/config"
)

// isolate clears every variable the config layer reads and returns an empty
// env file so the host environment cannot leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range []string{
		config.EnvUmamiAPIURL, config.EnvUmamiWebsiteID, config.EnvUmamiAPIToken,
		config.EnvUmamiAPIKey, config.EnvUmamiUser, config.EnvUmamiPassword,
		config.EnvUmamiStartAt, config.EnvUmamiEndAt, config.EnvUmamiTimeout,
		config.EnvUmamiConcurrency, config.EnvTelegramBotToken, config.EnvTelegramChatID,
		config.EnvTelegramAPIURL, config.EnvReportTimezone, config.EnvReportTitle,
		config.EnvPushgatewayURL, config.EnvLogLevel, config.EnvLogFormat,
	} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "empty.env")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return path
}

func newUmamiServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer static-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/websites/blog/stats":
			_, _ = w.Write([]byte(`{"pageviews":2500,"visitors":900,"visits":1000,"bounces":400,"totaltime":60000}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCmd_MissingConfiguration(t *testing.T) {
	envFile := isolate(t)

	_, _, err := execute(t, "--env-file", envFile)
	require.Error(t, err)

	var missing *config.MissingError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Vars, config.EnvUmamiAPIURL)
	assert.Contains(t, missing.Vars, config.EnvTelegramBotToken)
}

func TestRootCmd_InvalidFormat(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCmd_InvalidWebsitesFlag(t *testing.T) {
	envFile := isolate(t)

	_, _, err := execute(t, "--env-file", envFile, "--websites", "a,a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--websites")
}

func TestRootCmd_DryRunText(t *testing.T) {
	envFile := isolate(t)
	server := newUmamiServer(t)
	t.Setenv(config.EnvUmamiAPIToken, "static-token")
	t.Setenv(config.EnvLogLevel, "error")

	stdout, _, err := execute(t,
		"--env-file", envFile,
		"--api-url", server.URL,
		"--websites", "blog:My Blog,gone:Old Site",
		"--timezone", "UTC",
		"--title", "Daily",
		"--dry-run",
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "--- Message 1/1 ---\n📊 Daily\n")
	assert.Contains(t, stdout, "My Blog\n👁️ Views: 2,500")
	assert.Contains(t, stdout, "Old Site\n⚠️ Failed to fetch data")
	assert.Contains(t, stdout, "Report printed (dry run): 1/2 websites, 2,500 views, 900 visitors\n")
}

func TestRootCmd_DryRunJSON(t *testing.T) {
	envFile := isolate(t)
	server := newUmamiServer(t)
	t.Setenv(config.EnvUmamiAPIToken, "static-token")
	t.Setenv(config.EnvLogLevel, "error")

	stdout, stderr, err := execute(t,
		"--env-file", envFile,
		"--api-url", server.URL,
		"--websites", "blog",
		"--dry-run",
		"--format", "json",
	)
	require.NoError(t, err)
	assert.Contains(t, stderr, "--- Message 1/1 ---", "digest goes to stderr when stdout carries JSON")

	var got OutputResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 0, got.Failed)
	assert.True(t, got.Delivered)
	assert.True(t, got.DryRun)
	assert.Equal(t, "token", string(got.AuthMethod))
	require.Len(t, got.Sites, 1)
	assert.Equal(t, "blog", got.Sites[0].Label)
	assert.Equal(t, int64(2500), got.Totals.Pageviews)
	assert.NotEmpty(t, got.RunID)
}

func TestRootCmd_AllSitesFailed(t *testing.T) {
	envFile := isolate(t)
	server := newUmamiServer(t)
	t.Setenv(config.EnvUmamiAPIToken, "static-token")
	t.Setenv(config.EnvLogLevel, "error")

	stdout, _, err := execute(t,
		"--env-file", envFile,
		"--api-url", server.URL,
		"--websites", "gone",
		"--dry-run",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every website")
	assert.Contains(t, stdout, "⚠️ Failed to fetch data", "digest is still produced")
	assert.Contains(t, stdout, "Report printed (dry run): 0/1 websites")
}

func TestRun_ExitCodes(t *testing.T) {
	envFile := isolate(t)

	var stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--env-file", envFile})
	cmd.SetOut(&bytes.Buffer{})

	code := run(context.Background(), cmd, &stderr)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr.String(), "Error: missing required environment variables")
	assert.Contains(t, stderr.String(), "umami-report --help")

	envFile = isolate(t)
	server := newUmamiServer(t)
	t.Setenv(config.EnvUmamiAPIToken, "static-token")
	t.Setenv(config.EnvLogLevel, "error")

	cmd = NewRootCmd()
	cmd.SetArgs([]string{"--env-file", envFile, "--api-url", server.URL, "--websites", "blog", "--dry-run"})
	cmd.SetOut(&bytes.Buffer{})
	assert.Equal(t, ExitSuccess, run(context.Background(), cmd, &stderr))
}
