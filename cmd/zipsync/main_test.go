package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/zipsync/internal/adapters/driven/auth"
	"github.com/custodia-labs/zipsync/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, config.LogConfig{Level: "info", Format: "json"})

	l.Debug("hidden")
	l.Info("source saved", "source_id", "k20260301093000125")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "source saved", line["msg"])
	assert.Equal(t, "k20260301093000125", line["source_id"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, config.LogConfig{Level: "debug", Format: "text"})

	l.Debug("visible", "prefix", "3")
	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "prefix=3")
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"worker", "sync", "report", "enqueue", "migrate", "token"} {
		assert.True(t, names[want], want)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("ZIPSYNC_HTTP_JWT_SECRET", "a-test-secret-of-some-length")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--subject", "ops", "--ttl", "1h"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	token := bytes.TrimSpace(out.Bytes())
	claims, err := auth.NewAdapter("a-test-secret-of-some-length").ParseToken(string(token))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, int64(3600), claims.ExpiresAt-claims.IssuedAt)
}
