// Package cli implements quotectl, the command line companion to the
// quotewizard server.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"quotewizard/internal/catalog"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	server      string
	token       string
	catalogPath string
}

func (g *globals) catalog() (*catalog.Catalog, error) {
	if g.catalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(g.catalogPath)
}

func (g *globals) client() *Client {
	return NewClient(g.server, g.token)
}

// Execute runs quotectl with os.Args.
func Execute() error {
	return NewRoot().Execute()
}

// NewRoot builds the quotectl command tree.
func NewRoot() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "quotectl",
		Short:         "Price, walk through and inspect quote wizard requests",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.server, "server", envOr("QUOTEWIZARD_SERVER", "http://localhost:8080"), "quotewizard server URL")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("QUOTEWIZARD_ADMIN_TOKEN"), "admin bearer token")
	root.PersistentFlags().StringVar(&g.catalogPath, "catalog", os.Getenv("QUOTEWIZARD_CATALOG"), "catalog YAML (default: built-in)")

	root.AddCommand(
		catalogCmd(g),
		estimateCmd(g),
		cartCmd(g),
		wizardCmd(g),
		requestsCmd(g),
		adminCmd(),
	)
	return root
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
