package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quotewizard/internal/auth"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Server administration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash to configure as QUOTEWIZARD_ADMIN_TOKEN_HASH",
		Long:  "Hashes the token given as argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()).ask("Admin token")
				if err != nil {
					return err
				}
				token = line
			}
			hash, err := auth.HashToken(strings.TrimSpace(token))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	})
	return cmd
}
