package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func requestsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Inspect submitted quote requests (admin)",
	}
	cmd.AddCommand(requestsListCmd(g))
	return cmd
}

func requestsListCmd(g *globals) *cobra.Command {
	var (
		plan, email string
		source      string
		since       time.Duration
		limit       int
		offset      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quote requests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.token == "" {
				return fmt.Errorf("an admin token is required (--token or QUOTEWIZARD_ADMIN_TOKEN)")
			}
			q := url.Values{}
			if plan != "" {
				q.Set("plan", plan)
			}
			if email != "" {
				q.Set("email", email)
			}
			if source != "" {
				q.Set("source", source)
			}
			if since > 0 {
				q.Set("since", time.Now().Add(-since).UTC().Format(time.RFC3339))
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}

			page, err := g.client().ListQuoteRequests(cmd.Context(), q)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tNAME\tCOMPANY\tEMAIL\tPLAN\tTOTAL")
			for _, r := range page.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.CreatedAt.Format(time.RFC3339), r.Source, r.Name, r.Company, r.Email, r.SelectedPlan, euros(r.TotalAmount))
			}
			_ = tw.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(page.Items), page.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "filter by plan name")
	cmd.Flags().StringVar(&email, "email", "", "filter by contact email")
	cmd.Flags().StringVar(&source, "source", "", "filter by origin: wizard or cart")
	cmd.Flags().DurationVar(&since, "since", 0, "only requests newer than this, e.g. 24h")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default 50)")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}
