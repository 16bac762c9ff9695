// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/molecula/z2folio/logger"
	"github.com/molecula/z2folio/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "z2folio.json")
	conf := `{
		"okapi": {"url": "http://folio.example.com", "tenant": "diku"},
		"login": {"username": "u", "password": "p"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(conf), 0o644))
	return path
}

func TestRunValidatesConfig(t *testing.T) {
	cmd := server.NewCommand(server.Config{
		ConfigPath: filepath.Join(t.TempDir(), "missing.json"),
	})
	err := cmd.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating configuration")
}

func TestRunWithoutBind(t *testing.T) {
	cmd := server.NewCommand(server.Config{ConfigPath: writeConfig(t)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestAdminEndpoint(t *testing.T) {
	cmd := server.NewCommand(server.Config{
		Bind:       "127.0.0.1:0",
		ConfigPath: writeConfig(t),
	}, server.OptCommandLogger(logger.NewLogfLogger(t)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.Run(ctx) }()

	addr := waitForAddr(t, cmd)
	base := "http://" + addr

	t.Run("Health", func(t *testing.T) {
		body := getJSON(t, base+"/health")
		assert.Equal(t, "ok", body["status"])
	})
	t.Run("Version", func(t *testing.T) {
		body := getJSON(t, base+"/version")
		assert.NotEmpty(t, body["version"])
	})
	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(base + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "z2folio_sessions_total")
		assert.Contains(t, string(raw), "go_goroutines")
	})
	t.Run("MethodNotAllowed", func(t *testing.T) {
		resp, err := http.Post(base+"/health", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewGateway(t *testing.T) {
	cmd := server.NewCommand(server.Config{ConfigPath: writeConfig(t)})
	g := cmd.NewGateway()
	require.NotNil(t, g)
	defer g.Close()

	// Distinct associations get distinct gateways.
	g2 := cmd.NewGateway()
	defer g2.Close()
	assert.NotSame(t, g, g2)
}

func getJSON(t *testing.T, url string) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func waitForAddr(t *testing.T, cmd *server.Command) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if addr := cmd.Addr(); addr != "" {
			return addr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("admin endpoint never came up")
	return ""
}
