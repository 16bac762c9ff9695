// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package server contains the `z2folio server` subcommand. It defines
// an easily tested Command object which validates configuration, runs
// the admin HTTP endpoint (health, version, metrics, pprof), and hands
// out per-association gateways. The Z39.50 wire frontend itself lives
// outside this module and drives associations through z2folio.Handler
// values obtained from NewGateway.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	z2folio "github.com/molecula/z2folio"
	"github.com/molecula/z2folio/config"
	"github.com/molecula/z2folio/logger"
	"github.com/molecula/z2folio/stats"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Config holds the server command's settings.
type Config struct {
	// Bind is the admin endpoint address. Empty disables the endpoint.
	Bind string
	// ConfigPath locates the gateway configuration file, re-read on
	// every association init.
	ConfigPath string
	// Verbose enables debug logging.
	Verbose bool
}

// Command wires the admin endpoint and hands out per-association
// gateways.
type Command struct {
	Config Config

	logger   logger.Logger
	registry *prometheus.Registry
	metrics  *stats.Metrics
	started  time.Time

	mu   sync.Mutex
	addr string
}

// CommandOption is a functional option type for Command.
type CommandOption func(cmd *Command)

// OptCommandLogger sets the command logger.
func OptCommandLogger(l logger.Logger) CommandOption {
	return func(cmd *Command) {
		cmd.logger = l
	}
}

// NewCommand returns a command for the given settings.
func NewCommand(cfg Config, options ...CommandOption) *Command {
	cmd := &Command{
		Config:   cfg,
		logger:   logger.NopLogger,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range options {
		opt(cmd)
	}
	cmd.registry.MustRegister(collectors.NewGoCollector())
	cmd.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cmd.metrics = stats.NewMetrics(cmd.registry)
	return cmd
}

// NewGateway returns a Handler for one new association.
func (cmd *Command) NewGateway() *z2folio.Gateway {
	return z2folio.NewGateway(cmd.Config.ConfigPath,
		z2folio.OptGatewayLogger(cmd.logger),
		z2folio.OptGatewayMetrics(cmd.metrics),
	)
}

// Addr returns the admin endpoint's bound address, empty until Run has
// started listening.
func (cmd *Command) Addr() string {
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	return cmd.addr
}

// Run validates the configuration, starts the admin endpoint if bound,
// and blocks until ctx is done.
func (cmd *Command) Run(ctx context.Context) error {
	if _, err := config.Load(cmd.Config.ConfigPath); err != nil {
		return errors.Wrap(err, "validating configuration")
	}
	cmd.started = time.Now()

	eg, ctx := errgroup.WithContext(ctx)
	if cmd.Config.Bind != "" {
		ln, err := net.Listen("tcp", cmd.Config.Bind)
		if err != nil {
			return errors.Wrapf(err, "listening on %s", cmd.Config.Bind)
		}
		srv := &http.Server{Handler: cmd.router()}
		cmd.mu.Lock()
		cmd.addr = ln.Addr().String()
		cmd.mu.Unlock()
		cmd.logger.Infof("admin endpoint on %s", ln.Addr())
		eg.Go(func() error {
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "serving admin endpoint")
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		eg.Go(func() error {
			<-ctx.Done()
			return nil
		})
	}
	err := eg.Wait()
	cmd.logger.Infof("server shut down")
	return err
}

func (cmd *Command) router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", cmd.handleGetHealth).Methods("GET").Name("GetHealth")
	router.HandleFunc("/version", cmd.handleGetVersion).Methods("GET").Name("GetVersion")
	router.Handle("/metrics", promhttp.HandlerFor(cmd.registry, promhttp.HandlerOpts{})).Methods("GET").Name("GetMetrics")
	router.HandleFunc("/debug/pprof/", pprof.Index)
	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("/debug/pprof/{name}", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler(mux.Vars(r)["name"]).ServeHTTP(w, r)
	})
	return handlers.CORS(handlers.AllowedMethods([]string{"GET"}))(router)
}

func (cmd *Command) handleGetHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"uptime": int64(time.Since(cmd.started).Seconds()),
	})
	if err != nil {
		cmd.logger.Errorf("writing health response: %v", err)
	}
}

func (cmd *Command) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]string{
		"version": z2folio.Version,
		"info":    z2folio.VersionInfo(),
	})
	if err != nil {
		cmd.logger.Errorf("writing version response: %v", err)
	}
}
