// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package folio is the HTTP client for the FOLIO inventory back end.
// It covers the two calls the gateway needs: obtaining a session token
// from bl-users/login and running paged CQL searches against
// inventory/instances.
package folio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/molecula/z2folio/logger"
	"github.com/pkg/errors"
)

// Instance is one opaque inventory instance document as returned by
// the back end. Keys and nesting are preserved untouched for rendering.
type Instance map[string]interface{}

// SearchResult is the decoded body of an inventory search response.
type SearchResult struct {
	TotalRecords int        `json:"totalRecords"`
	Instances    []Instance `json:"instances"`
}

// Client talks to one Okapi back end on behalf of one session.
type Client struct {
	httpClient *http.Client
	baseURL    string
	queryURL   string
	tenant     string
	logger     logger.Logger
}

// ClientOption is a functional option type for folio.Client.
type ClientOption func(c *Client) error

// OptClientLogger sets the logger used for request logging. Logged
// lines never include the token or password.
func OptClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = l
		return nil
	}
}

// OptClientHTTPClient replaces the underlying HTTP client.
func OptClientHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// OptClientQueryURL sets a distinct base URL for search requests.
func OptClientQueryURL(u string) ClientOption {
	return func(c *Client) error {
		c.queryURL = u
		return nil
	}
}

// OptClientTimeout bounds every request issued by the client.
func OptClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// NewClient returns a client for the back end at baseURL, scoped to
// the given tenant.
func NewClient(baseURL, tenant string, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	if tenant == "" {
		return nil, ErrNoTenant
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		tenant:     tenant,
		logger:     logger.NopLogger,
	}
	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "applying client option")
		}
	}
	c.queryURL = strings.TrimRight(c.queryURL, "/")
	return c, nil
}

// Login authenticates against bl-users/login and returns the session
// token from the X-Okapi-Token response header.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding login request")
	}
	u := c.baseURL + "/bl-users/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building login request")
	}
	c.setHeaders(req, "")
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debugf("POST %s user=%s", u, username)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "sending login request")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading login response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.WithStack(authError{message: DecodeError(raw)})
	}
	token := resp.Header.Get("X-Okapi-Token")
	if token == "" {
		return "", errors.WithStack(authError{message: "back end returned no token"})
	}
	return token, nil
}

// Search runs a CQL query against inventory/instances. Offsets are
// 0-based; limit is the maximum number of instances returned.
func (c *Client) Search(ctx context.Context, token, cql string, offset, limit int) (*SearchResult, error) {
	base := c.baseURL
	if c.queryURL != "" {
		base = c.queryURL
	}
	u := fmt.Sprintf("%s/inventory/instances?offset=%d&limit=%d&query=%s",
		base, offset, limit, url.QueryEscape(cql))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building search request")
	}
	c.setHeaders(req, token)

	c.logger.Debugf("GET %s/inventory/instances offset=%d limit=%d query=%s", base, offset, limit, cql)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "sending search request")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading search response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New(DecodeError(raw))
	}
	var result SearchResult
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // keep numeric identifiers exact for rendering
	if err := dec.Decode(&result); err != nil {
		return nil, errors.Wrap(err, "decoding search response")
	}
	if result.TotalRecords < 0 {
		return nil, errors.Errorf("back end reported negative totalRecords %d", result.TotalRecords)
	}
	return &result, nil
}

// setHeaders applies the tenant and accept headers every back-end call
// carries. The token header is omitted iff no token is held.
func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("X-Okapi-Tenant", c.tenant)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("X-Okapi-Token", token)
	}
}

// DecodeError extracts a human-readable message from a back-end error
// body: JSON bodies contribute their errorMessage field, anything else
// is used verbatim.
func DecodeError(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var decoded struct {
			ErrorMessage string `json:"errorMessage"`
		}
		if err := json.Unmarshal(trimmed, &decoded); err == nil && decoded.ErrorMessage != "" {
			return decoded.ErrorMessage
		}
	}
	return string(trimmed)
}
