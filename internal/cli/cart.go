package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quotewizard/internal/cart"
)

func cartCmd(g *globals) *cobra.Command {
	var (
		plan   string
		addOns []string
	)
	cmd := &cobra.Command{
		Use:     "cart",
		Short:   "Price a pricing page cart, VAT included",
		Example: `  quotectl cart --plan "eBranch Plan" --addon payroll --addon vat`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := g.catalog()
			if err != nil {
				return err
			}
			c, err := cart.FromSelection(cat, cart.Selection{Plan: plan, AddOns: addOns})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			for _, l := range c.Items() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t\n", l.Name, euros(l.Price), l.Period)
			}
			t := c.Totals()
			fmt.Fprintf(tw, "Subtotal\t%s\t\t\n", euros(t.Subtotal))
			fmt.Fprintf(tw, "VAT %d%%\t%s\t\t\n", t.VATPercent, cents(t.VATCents))
			fmt.Fprintf(tw, "Total\t%s\t\t\n", cents(t.TotalCents))
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "cart plan name")
	cmd.Flags().StringArrayVar(&addOns, "addon", nil, "add-on id or name, repeatable")
	return cmd
}

func cents(v int64) string {
	return fmt.Sprintf("€%d.%02d", v/100, v%100)
}
