// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package config loads the gateway configuration file. The file is
// JSON; every string value may contain ${NAME} or ${NAME-DEFAULT}
// placeholders which are resolved against the process environment at
// load time. Each session init reloads a fresh snapshot, so edits to
// the file take effect without a restart.
package config

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the number of records fetched from the back end
// per request when the file does not set chunkSize.
const DefaultChunkSize = 10

// DefaultTimeoutSeconds bounds each back-end HTTP call.
const DefaultTimeoutSeconds = 30

// Okapi identifies the back-end service and tenant.
type Okapi struct {
	URL      string `json:"url"`
	QueryURL string `json:"queryUrl,omitempty"`
	Tenant   string `json:"tenant"`
}

// Login carries the default back-end credentials. Either field may be
// overridden by credentials presented on session init.
type Login struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Config is a read-only snapshot of the gateway configuration.
type Config struct {
	Okapi       Okapi             `json:"okapi"`
	Login       Login             `json:"login,omitempty"`
	IndexMap    map[string]string `json:"indexMap,omitempty"`
	QueryFilter string            `json:"queryFilter,omitempty"`
	Chunk       int               `json:"chunkSize,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`

	// OmitSortIndexModifiers maps a CQL index name to the modifier
	// categories (missing, relation, case) a sort key on that index
	// must not carry.
	OmitSortIndexModifiers map[string][]string `json:"omitSortIndexModifiers,omitempty"`
}

// Load reads, substitutes and decodes the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}
	return cfg, nil
}

// Parse decodes a configuration from raw JSON bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config json")
	}
	if err := cfg.substitute(); err != nil {
		return nil, err
	}
	if cfg.Chunk < 0 {
		return nil, errors.Errorf("chunkSize must be positive, got %d", cfg.Chunk)
	}
	return &cfg, nil
}

// ChunkSize returns the configured chunk size or the default.
func (c *Config) ChunkSize() int {
	if c.Chunk > 0 {
		return c.Chunk
	}
	return DefaultChunkSize
}

// TimeoutSeconds returns the configured back-end timeout or the default.
func (c *Config) TimeoutSeconds() int {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeoutSeconds
}

// QueryURL returns the search endpoint base URL, falling back to the
// primary URL when no distinct query endpoint is configured.
func (c *Config) QueryURL() string {
	if c.Okapi.QueryURL != "" {
		return c.Okapi.QueryURL
	}
	return c.Okapi.URL
}

// OmitSortModifiers reports which modifier categories are suppressed
// for sort keys on the given index. Nil means none.
func (c *Config) OmitSortModifiers(index string) []string {
	return c.OmitSortIndexModifiers[index]
}

// Redacted returns a copy safe for printing: the password is masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Login.Password != "" {
		out.Login.Password = "********"
	}
	return out
}

// placeholder matches ${NAME} and ${NAME-DEFAULT}. NAME ends at the
// first '-' so the default may itself contain dashes.
var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(-[^}]*)?\}`)

// Expand resolves environment placeholders in a single string value.
func Expand(s string) (string, error) {
	var badName string
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		groups := placeholder.FindStringSubmatch(m)
		name, def := groups[1], groups[2]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if def != "" {
			return strings.TrimPrefix(def, "-")
		}
		if badName == "" {
			badName = name
		}
		return ""
	})
	if badName != "" {
		return "", errors.Errorf("environment variable %s is not set and has no default", badName)
	}
	return out, nil
}

func (c *Config) substitute() error {
	fields := []*string{
		&c.Okapi.URL, &c.Okapi.QueryURL, &c.Okapi.Tenant,
		&c.Login.Username, &c.Login.Password,
		&c.QueryFilter,
	}
	for _, f := range fields {
		v, err := Expand(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	for k, v := range c.IndexMap {
		ev, err := Expand(v)
		if err != nil {
			return err
		}
		c.IndexMap[k] = ev
	}
	for _, mods := range c.OmitSortIndexModifiers {
		for i, m := range mods {
			em, err := Expand(m)
			if err != nil {
				return err
			}
			mods[i] = em
		}
	}
	return nil
}
