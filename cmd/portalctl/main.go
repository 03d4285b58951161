// Package main is portalctl, the operator CLI for schema migrations and
// session tokens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"civicportal/internal/platform/config"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operate the civic portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to portal.yaml (defaults to ./portal.yaml)")
	root.AddCommand(newMigrateCmd(), newTokenCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("PORTAL_CONFIG")
	}
	return config.Load(path)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
