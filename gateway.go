// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package z2folio

import (
	"context"
	"strconv"

	"github.com/molecula/z2folio/config"
	"github.com/molecula/z2folio/diag"
	"github.com/molecula/z2folio/logger"
	"github.com/molecula/z2folio/rpn"
	"github.com/molecula/z2folio/stats"
	"github.com/pkg/errors"
)

// Handler is the surface a wire-level Z39.50 frontend drives: the four
// operation hooks of one association. Calls within an association are
// serialized by the frontend; a Gateway is therefore not safe for
// concurrent use, and each association gets its own.
type Handler interface {
	Init(ctx context.Context, req InitRequest) (*InitResponse, error)
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	Fetch(ctx context.Context, setName string, ordinal int) (*FetchResponse, error)
	Delete(ctx context.Context, setName string) error
}

// InitRequest carries the credentials presented on init, if any.
type InitRequest struct {
	Username string
	Password string
}

// InitResponse reports the gateway's implementation identity.
type InitResponse struct {
	ImplementationID      string
	ImplementationName    string
	ImplementationVersion string
}

// SearchRequest names the result set to build and carries the query,
// either as an RPN tree or as CQL the frontend already parsed. CQL
// wins when both are present. AttributeSet is the protocol-level
// default attribute-set OID; empty means BIB-1.
type SearchRequest struct {
	SetName      string
	Query        rpn.Node
	CQL          string
	AttributeSet string
}

// SearchResponse reports the total hit count.
type SearchResponse struct {
	Hits int
}

// FetchResponse carries one rendered record.
type FetchResponse struct {
	Form   string
	Record []byte
}

// Gateway adapts the four protocol hooks onto the session, translator,
// result sets and back-end client. One Gateway serves one association.
type Gateway struct {
	configPath string
	logger     logger.Logger
	metrics    *stats.Metrics

	session *Session
	ctx     context.Context
	cancel  context.CancelFunc
}

var _ Handler = (*Gateway)(nil)

// GatewayOption is a functional option type for Gateway.
type GatewayOption func(g *Gateway)

// OptGatewayLogger sets the gateway logger.
func OptGatewayLogger(l logger.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = l
	}
}

// OptGatewayMetrics sets the metrics sink.
func OptGatewayMetrics(m *stats.Metrics) GatewayOption {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// NewGateway returns a gateway that reads its configuration from
// configPath on each init.
func NewGateway(configPath string, options ...GatewayOption) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		configPath: configPath,
		logger:     logger.NopLogger,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Init reloads the configuration, resolves credentials, and logs in to
// the back end.
func (g *Gateway) Init(ctx context.Context, req InitRequest) (resp *InitResponse, err error) {
	defer func() { g.metrics.Operation("init", err) }()
	ctx, cancel := g.opContext(ctx)
	defer cancel()

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, diag.New(diag.AuthFailed, err.Error())
	}
	session, err := newSession(cfg, req.Username, req.Password, g.logger, g.metrics)
	if err != nil {
		return nil, err
	}
	if err := session.login(ctx); err != nil {
		return nil, err
	}
	g.session = session
	g.metrics.SessionStarted()
	return &InitResponse{
		ImplementationID:      ImplementationID,
		ImplementationName:    ImplementationName,
		ImplementationVersion: Version,
	}, nil
}

// Search translates the query if needed, builds a fresh result set
// under the requested name, runs the first chunk fetch, and reports
// the total hit count.
func (g *Gateway) Search(ctx context.Context, req SearchRequest) (resp *SearchResponse, err error) {
	defer func() { g.metrics.Operation("search", err) }()
	ctx, cancel := g.opContext(ctx)
	defer cancel()

	session, err := g.currentSession()
	if err != nil {
		return nil, err
	}
	cql := req.CQL
	if cql == "" {
		if req.Query == nil {
			return nil, diag.New(diag.UnsupportedSearch, "no query supplied")
		}
		translator := rpn.NewTranslator(session.cfg, session)
		cql, err = translator.Translate(req.Query, req.AttributeSet)
		if err != nil {
			return nil, err
		}
	}
	session.logger.Debugf("search %s: %s", req.SetName, cql)

	rs := NewResultSet(req.SetName, cql)
	chunk := session.cfg.ChunkSize()
	result, err := session.search(ctx, cql, 0, chunk)
	if err != nil {
		return nil, err
	}
	if err := rs.SetTotal(result.TotalRecords); err != nil {
		return nil, err
	}
	if err := rs.Insert(0, result.Instances); err != nil {
		return nil, err
	}
	session.PutResultSet(rs)
	return &SearchResponse{Hits: rs.Total()}, nil
}

// Fetch returns the record at the 1-based ordinal of the named result
// set, rendered as XML, materializing its chunk if necessary.
func (g *Gateway) Fetch(ctx context.Context, setName string, ordinal int) (resp *FetchResponse, err error) {
	defer func() { g.metrics.Operation("fetch", err) }()
	ctx, cancel := g.opContext(ctx)
	defer cancel()

	session, err := g.currentSession()
	if err != nil {
		return nil, err
	}
	rs, ok := session.ResultSet(setName)
	if !ok {
		return nil, diag.New(diag.ResultSetDoesNotExist, setName)
	}
	if ordinal < 1 || ordinal > rs.Total() {
		return nil, diag.New(diag.PresentOutOfRange, strconv.Itoa(ordinal))
	}
	inst, err := rs.Materialize(ctx, ordinal, session.cfg.ChunkSize(), session.search)
	if err != nil {
		return nil, err
	}
	record, err := RenderXML(inst)
	if err != nil {
		return nil, errors.Wrapf(err, "rendering record %d of %s", ordinal, setName)
	}
	return &FetchResponse{Form: "xml", Record: record}, nil
}

// Delete discards the named result set.
func (g *Gateway) Delete(ctx context.Context, setName string) (err error) {
	defer func() { g.metrics.Operation("delete", err) }()

	session, err := g.currentSession()
	if err != nil {
		return err
	}
	if !session.DropResultSet(setName) {
		return diag.New(diag.ResultSetDoesNotExist, setName)
	}
	return nil
}

// Diagnose maps an operation error to the (code, addinfo) pair the
// frontend reports. Diagnostics pass through; anything else carrying a
// message becomes code 100.
func (g *Gateway) Diagnose(err error) (int, string) {
	d := diag.FromError(err)
	g.metrics.Diagnostic(int(d.Code))
	return int(d.Code), d.Addinfo
}

// Close tears the association down: cancels in-flight back-end calls
// and releases session state.
func (g *Gateway) Close() {
	g.cancel()
	if g.session != nil {
		g.session.Close()
		g.session = nil
	}
}

func (g *Gateway) currentSession() (*Session, error) {
	if g.session == nil {
		return nil, diag.New(diag.PermanentSystemError, "session not initialized")
	}
	return g.session, nil
}

// opContext derives a call context that is canceled when either the
// caller's context or the association ends.
func (g *Gateway) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-g.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
