package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quotewizard/internal/catalog"
	"quotewizard/internal/domain"
	"quotewizard/internal/pricing"
)

func catalogCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print plans, add-ons and country fees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := g.catalog()
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), cat)
			return nil
		},
	}
}

func printCatalog(out io.Writer, cat *catalog.Catalog) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAN\tPRICE\tPERIOD")
	for _, p := range cat.Plans {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, euros(p.Price), p.Period)
	}
	fmt.Fprintln(tw, "\nADD-ON\tPRICE\tPERIOD")
	for _, a := range cat.AddOns {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name, euros(a.Price), a.Period)
	}
	fmt.Fprintln(tw, "\nCOUNTRY\tREGISTRATION FEE\t")
	for _, c := range cat.Countries {
		fmt.Fprintf(tw, "%s\t%s\t\n", c.Name, euros(c.Fee))
	}
	fmt.Fprintf(tw, "(other)\t%s\t\n", euros(cat.DefaultCountryFee))
	_ = tw.Flush()
}

func estimateCmd(g *globals) *cobra.Command {
	var (
		plan      string
		addOns    []string
		countries []string
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Price a plan, add-ons and expansion countries locally",
		Example: `  quotectl estimate --plan "eBranch Plan" --addon "Corporate Tax Filing" --country Netherlands`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := g.catalog()
			if err != nil {
				return err
			}
			lines := make([]domain.AddOn, 0, len(addOns))
			for _, name := range addOns {
				a, ok := cat.AddOn(name)
				if !ok {
					return fmt.Errorf("unknown add-on %q", name)
				}
				lines = append(lines, a.Line())
			}
			q, err := pricing.Calculate(cat, plan, lines, countries)
			if err != nil {
				return err
			}
			state := domain.NewWizardState()
			state.Plan = q.Plan
			state.AddOns = lines
			state.BasePrice, state.CountryFees, state.TotalPrice = q.BasePrice, q.CountryFees, q.TotalPrice
			state.PlanDefaulted = q.PlanDefaulted
			printSummary(cmd.OutOrStdout(), state)
			return nil
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "plan name (default: the free plan)")
	cmd.Flags().StringArrayVar(&addOns, "addon", nil, "add-on name, repeatable")
	cmd.Flags().StringArrayVar(&countries, "country", nil, "expansion country, repeatable")
	return cmd
}

// printSummary renders the priced lines of a quote.
func printSummary(out io.Writer, s domain.WizardState) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	plan := s.Plan
	if s.PlanDefaulted {
		plan += " (no plan chosen)"
	}
	fmt.Fprintf(tw, "%s\t%s\t\n", plan, euros(s.BasePrice))
	for _, a := range s.AddOns {
		fmt.Fprintf(tw, "%s\t%s\t\n", a.Name, euros(a.Price))
	}
	for _, f := range s.CountryFees {
		fmt.Fprintf(tw, "Registration: %s\t%s\t\n", f.Country, euros(f.Fee))
	}
	fmt.Fprintf(tw, "%s\t%s\t\n", strings.Repeat("-", 5), strings.Repeat("-", 7))
	fmt.Fprintf(tw, "Total\t%s\t\n", euros(s.TotalPrice))
	_ = tw.Flush()
}

func euros(v int64) string {
	return fmt.Sprintf("€%d", v)
}
