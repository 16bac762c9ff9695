// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"encoding/json"
	"io"

	"github.com/molecula/z2folio/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newConfigCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	confCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration.",
		Long: `config loads the configuration file, applies environment
substitution, and prints the result with credentials redacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return errors.Wrap(enc.Encode(cfg.Redacted()), "encoding config")
		},
	}
	return confCmd
}
