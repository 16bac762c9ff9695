// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package cmd defines the z2folio command tree.
package cmd

import (
	"io"
	"os"

	z2folio "github.com/molecula/z2folio"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the root of the z2folio command tree.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "z2folio",
		Short: "z2folio is a Z39.50 gateway to FOLIO inventory.",
		Long: `z2folio fronts a FOLIO inventory back end with the Z39.50
information-retrieval protocol: it translates Type-1 (RPN) queries
with BIB-1 attributes into CQL, manages per-association result sets,
and renders instance documents as XML records.

` + z2folio.VersionInfo() + "\n",
		SilenceUsage: true,
	}
	rc.PersistentFlags().StringP("config", "c", defaultConfigPath(), "Configuration file to read from.")

	rc.AddCommand(newServeCommand(stdin, stdout, stderr))
	rc.AddCommand(newConfigCommand(stdin, stdout, stderr))
	rc.AddCommand(newVersionCommand(stdin, stdout, stderr))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func defaultConfigPath() string {
	if p := os.Getenv("Z2FOLIO_CONFIG"); p != "" {
		return p
	}
	return "z2folio.json"
}
