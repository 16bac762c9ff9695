// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/molecula/z2folio/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(`{
		"okapi": {
			"url": "https://folio-api.example.com",
			"tenant": "diku"
		},
		"login": {"username": "z-user", "password": "hush"},
		"indexMap": {"4": "title", "1": "author"},
		"queryFilter": "source=marc",
		"chunkSize": 5,
		"timeout": 12
	}`))
	require.NoError(t, err)

	assert.Equal(t, "https://folio-api.example.com", cfg.Okapi.URL)
	assert.Equal(t, "diku", cfg.Okapi.Tenant)
	assert.Equal(t, "z-user", cfg.Login.Username)
	assert.Equal(t, "title", cfg.IndexMap["4"])
	assert.Equal(t, "source=marc", cfg.QueryFilter)
	assert.Equal(t, 5, cfg.ChunkSize())
	assert.Equal(t, 12, cfg.TimeoutSeconds())
}

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`{"okapi": {"url": "http://x", "tenant": "t"}}`))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultChunkSize, cfg.ChunkSize())
	assert.Equal(t, config.DefaultTimeoutSeconds, cfg.TimeoutSeconds())
	assert.Equal(t, "http://x", cfg.QueryURL())
	assert.Nil(t, cfg.OmitSortModifiers("title"))
}

func TestParseBadJSON(t *testing.T) {
	_, err := config.Parse([]byte(`{"okapi":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding config json")
}

func TestParseNegativeChunk(t *testing.T) {
	_, err := config.Parse([]byte(`{"okapi": {"url": "http://x", "tenant": "t"}, "chunkSize": -1}`))
	require.Error(t, err)
}

func TestQueryURL(t *testing.T) {
	cfg, err := config.Parse([]byte(`{"okapi": {
		"url": "http://okapi",
		"queryUrl": "http://query",
		"tenant": "t"
	}}`))
	require.NoError(t, err)
	assert.Equal(t, "http://query", cfg.QueryURL())
}

func TestExpand(t *testing.T) {
	t.Setenv("Z2F_TEST_HOST", "folio.example.com")
	os.Unsetenv("Z2F_TEST_MISSING")

	tests := []struct {
		name string
		in   string
		out  string
		err  string
	}{
		{name: "NoPlaceholder", in: "plain", out: "plain"},
		{name: "Set", in: "https://${Z2F_TEST_HOST}/okapi", out: "https://folio.example.com/okapi"},
		{name: "SetBeatsDefault", in: "${Z2F_TEST_HOST-other}", out: "folio.example.com"},
		{name: "UnsetWithDefault", in: "${Z2F_TEST_MISSING-diku}", out: "diku"},
		{name: "DefaultWithDash", in: "${Z2F_TEST_MISSING-a-b-c}", out: "a-b-c"},
		{name: "Multiple", in: "${Z2F_TEST_HOST}:${Z2F_TEST_MISSING-9130}", out: "folio.example.com:9130"},
		{name: "UnsetNoDefault", in: "${Z2F_TEST_MISSING}", err: "Z2F_TEST_MISSING is not set"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := config.Expand(test.in)
			if test.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.out, out)
		})
	}
}

func TestSubstitution(t *testing.T) {
	t.Setenv("Z2F_TEST_TENANT", "diku")
	t.Setenv("Z2F_TEST_PASS", "hush")

	cfg, err := config.Parse([]byte(`{
		"okapi": {"url": "http://x", "tenant": "${Z2F_TEST_TENANT}"},
		"login": {"username": "u", "password": "${Z2F_TEST_PASS}"},
		"indexMap": {"4": "${Z2F_TEST_INDEX-title}"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "diku", cfg.Okapi.Tenant)
	assert.Equal(t, "hush", cfg.Login.Password)
	assert.Equal(t, "title", cfg.IndexMap["4"])
}

func TestSubstitutionUnset(t *testing.T) {
	os.Unsetenv("Z2F_TEST_NOPE")
	_, err := config.Parse([]byte(`{"okapi": {"url": "http://x", "tenant": "${Z2F_TEST_NOPE}"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Z2F_TEST_NOPE")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "z2folio.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"okapi": {"url": "http://x", "tenant": "t"}}`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "t", cfg.Okapi.Tenant)

	_, err = config.Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestRedacted(t *testing.T) {
	cfg, err := config.Parse([]byte(`{
		"okapi": {"url": "http://x", "tenant": "t"},
		"login": {"username": "u", "password": "hush"}
	}`))
	require.NoError(t, err)

	red := cfg.Redacted()
	assert.Equal(t, "********", red.Login.Password)
	assert.Equal(t, "u", red.Login.Username)
	// The original is untouched.
	assert.Equal(t, "hush", cfg.Login.Password)
}
