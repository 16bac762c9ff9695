// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package z2folio

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/molecula/z2folio/config"
	"github.com/molecula/z2folio/diag"
	"github.com/molecula/z2folio/folio"
	"github.com/molecula/z2folio/logger"
	"github.com/molecula/z2folio/stats"
	"github.com/pkg/errors"
)

// Session holds the per-association state: effective credentials, the
// Okapi token, and the named result sets. A session is owned by
// exactly one Gateway and shares nothing with other sessions.
type Session struct {
	ID string

	cfg        *config.Config
	client     *folio.Client
	username   string
	password   string
	token      string
	resultSets map[string]*ResultSet

	logger  logger.Logger
	metrics *stats.Metrics
}

// newSession builds a session from a fresh config snapshot and the
// credentials presented on init. Init-supplied credentials win over
// configured defaults; missing either half fails authentication.
func newSession(cfg *config.Config, username, password string, log logger.Logger, metrics *stats.Metrics) (*Session, error) {
	if username == "" {
		username = cfg.Login.Username
	}
	if password == "" {
		password = cfg.Login.Password
	}
	if username == "" || password == "" {
		return nil, diag.New(diag.AuthFailed, "no credentials supplied or configured")
	}
	id := uuid.NewString()
	log = log.WithPrefix("session " + id[:8] + ": ")
	client, err := folio.NewClient(cfg.Okapi.URL, cfg.Okapi.Tenant,
		folio.OptClientLogger(log),
		folio.OptClientQueryURL(cfg.Okapi.QueryURL),
		folio.OptClientTimeout(time.Duration(cfg.TimeoutSeconds())*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating back-end client")
	}
	return &Session{
		ID:         id,
		cfg:        cfg,
		client:     client,
		username:   username,
		password:   password,
		resultSets: make(map[string]*ResultSet),
		logger:     log,
		metrics:    metrics,
	}, nil
}

// login obtains and stores the Okapi token. Every failure, transport
// or rejection, surfaces as diagnostic 1014.
func (s *Session) login(ctx context.Context) error {
	start := time.Now()
	token, err := s.client.Login(ctx, s.username, s.password)
	s.metrics.BackendRequest("login", time.Since(start).Seconds())
	if err != nil {
		s.logger.Warnf("login failed for user %s: %v", s.username, err)
		return diag.New(diag.AuthFailed, diag.FromError(err).Addinfo)
	}
	s.token = token
	s.logger.Infof("logged in as %s", s.username)
	return nil
}

// search runs one back-end search for the session. Failures surface as
// diagnostic 3 with the decoded back-end message as addinfo.
func (s *Session) search(ctx context.Context, cql string, offset, limit int) (*folio.SearchResult, error) {
	start := time.Now()
	result, err := s.client.Search(ctx, s.token, cql, offset, limit)
	s.metrics.BackendRequest("search", time.Since(start).Seconds())
	if err != nil {
		return nil, diag.New(diag.UnsupportedSearch, err.Error())
	}
	return result, nil
}

// HasResultSet reports whether the session holds a result set by that
// name. It implements rpn.ResultSetLookup.
func (s *Session) HasResultSet(name string) bool {
	_, ok := s.resultSets[name]
	return ok
}

// ResultSet returns the named result set.
func (s *Session) ResultSet(name string) (*ResultSet, bool) {
	rs, ok := s.resultSets[name]
	return rs, ok
}

// PutResultSet stores rs, replacing any prior set of the same name.
func (s *Session) PutResultSet(rs *ResultSet) {
	s.resultSets[rs.Name] = rs
}

// DropResultSet discards the named result set.
func (s *Session) DropResultSet(name string) bool {
	if _, ok := s.resultSets[name]; !ok {
		return false
	}
	delete(s.resultSets, name)
	return true
}

// Close forgets the token and drops all result sets. Called on
// association teardown.
func (s *Session) Close() {
	s.token = ""
	s.resultSets = make(map[string]*ResultSet)
}
