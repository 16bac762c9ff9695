// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/molecula/z2folio/logger"
	"github.com/molecula/z2folio/server"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newServeCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var conf server.Config
	var logPath string
	serveCmd := &cobra.Command{
		Use:   "server",
		Short: "Run the z2folio gateway.",
		Long: `server validates the configuration and exposes the admin
endpoint until interrupted. It does not accept Z39.50 connections
itself; a wire frontend drives associations through gateways obtained
from server.Command.NewGateway.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			conf.ConfigPath, err = cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			logDest := stderr
			if logPath != "" {
				fw, err := logger.NewFileWriter(logPath)
				if err != nil {
					return errors.Wrapf(err, "opening log file %s", logPath)
				}
				defer fw.Close()
				hup := make(chan os.Signal, 1)
				signal.Notify(hup, syscall.SIGHUP)
				go func() {
					for range hup {
						if err := fw.Reopen(); err != nil {
							logger.StderrLogger.Errorf("reopening log file: %v", err)
						}
					}
				}()
				logDest = fw
			}
			log := logger.NewStandardLogger(logDest)
			if conf.Verbose {
				log = logger.NewVerboseLogger(logDest)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.NewCommand(conf, server.OptCommandLogger(log)).Run(ctx)
		},
	}
	flags := serveCmd.Flags()
	flags.StringVarP(&conf.Bind, "bind", "b", ":2898", "Address for the admin endpoint; empty disables it.")
	flags.StringVar(&logPath, "log-path", "", "Log file to write to; reopened on SIGHUP. Empty logs to stderr.")
	flags.BoolVarP(&conf.Verbose, "verbose", "v", false, "Enable debug logging.")
	return serveCmd
}
