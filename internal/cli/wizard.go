package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"quotewizard/internal/api"
	"quotewizard/internal/catalog"
	"quotewizard/internal/domain"
	"quotewizard/internal/wizard"
)

// quoteSession is a wizard run either in-process or against a server.
type quoteSession interface {
	Step() int
	Answer(ctx context.Context, n int, in wizard.StepInput) error
	Summary() (domain.WizardState, string)
	// Submit returns the redirect URL after the server accepted the quote.
	Submit(ctx context.Context) (string, error)
}

type localSession struct {
	c *wizard.Controller
}

func (s *localSession) Step() int { return s.c.CurrentStep() }

func (s *localSession) Answer(_ context.Context, n int, in wizard.StepInput) error {
	return wizard.Submit(s.c, n, in)
}

func (s *localSession) Summary() (domain.WizardState, string) {
	if err := s.c.PricingError(); err != nil {
		return s.c.Snapshot(), err.Error()
	}
	return s.c.Snapshot(), ""
}

func (s *localSession) Submit(context.Context) (string, error) {
	return "", errors.New("local quotes are not submitted; rerun with --remote")
}

type remoteSession struct {
	client *Client
	sess   api.SessionResponse
}

func (s *remoteSession) Step() int { return s.sess.Step }

func (s *remoteSession) Answer(ctx context.Context, n int, in wizard.StepInput) error {
	resp, err := s.client.SubmitStep(ctx, s.sess.ID, n, in)
	if err != nil {
		return err
	}
	s.sess = resp
	return nil
}

func (s *remoteSession) Summary() (domain.WizardState, string) {
	return s.sess.State, s.sess.PricingError
}

func (s *remoteSession) Submit(ctx context.Context) (string, error) {
	resp, err := s.client.Submit(ctx, s.sess.ID)
	if err != nil {
		return "", err
	}
	return resp.RedirectURL, nil
}

func wizardCmd(g *globals) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Answer the nine quote steps interactively",
		Long: `Walks through every step on stdin. Without --remote the quote is priced
locally; with --remote each answer goes to the server and the finished quote
can be submitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := g.catalog()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			var sess quoteSession
			if remote {
				client := g.client()
				resp, err := client.CreateSession(ctx)
				if err != nil {
					return fmt.Errorf("start session: %w", err)
				}
				sess = &remoteSession{client: client, sess: resp}
			} else {
				sess = &localSession{c: wizard.NewController(cat, wizard.WithSummaryDelay(0))}
			}
			return runWizard(ctx, newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), cat, sess, remote)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "run the session on --server and offer to submit it")
	return cmd
}

type prompter struct {
	r   *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{r: bufio.NewReader(in), out: out}
}

// ask prints label and returns the trimmed answer line.
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) askList(label string) ([]string, error) {
	v, err := p.ask(label + " (comma separated)")
	if err != nil {
		return nil, err
	}
	return splitList(v), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runWizard(ctx context.Context, p *prompter, cat *catalog.Catalog, sess quoteSession, remote bool) error {
	for sess.Step() < wizard.StepSummary {
		n := sess.Step()
		title := ""
		if n-1 < len(cat.Steps) {
			title = cat.Steps[n-1].Title
		}
		fmt.Fprintf(p.out, "\nStep %d of %d: %s\n", n, wizard.TotalSteps, title)

		in, err := promptStep(p, cat, n)
		if err != nil {
			return err
		}
		if err := sess.Answer(ctx, n, in); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status >= 500 {
				return err
			}
			fmt.Fprintf(p.out, "  %v\n", err)
		}
	}

	state, pricingErr := sess.Summary()
	fmt.Fprintln(p.out, "\nYour quote")
	if pricingErr != "" {
		return fmt.Errorf("quote unavailable: %s", pricingErr)
	}
	printSummary(p.out, state)
	if !remote {
		return nil
	}

	answer, err := p.ask("Submit this quote request? [y/N]")
	if err != nil || !strings.EqualFold(answer, "y") {
		fmt.Fprintln(p.out, "Not submitted.")
		return nil
	}
	redirect, err := sess.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Submitted. Continue at %s\n", redirect)
	return nil
}

func optionList(opts []catalog.Option) string {
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = fmt.Sprintf("%s (%s)", o.ID, o.Title)
	}
	return strings.Join(parts, ", ")
}

func promptStep(p *prompter, cat *catalog.Catalog, n int) (wizard.StepInput, error) {
	var (
		in  wizard.StepInput
		err error
	)
	switch n {
	case wizard.StepBusinessJourney:
		fmt.Fprintf(p.out, "  %s\n", optionList(cat.Journeys))
		in.BusinessJourney, err = p.ask("Journey")
	case wizard.StepGeography:
		fmt.Fprintf(p.out, "  Regions: %s\n", strings.Join(cat.Regions, ", "))
		if in.BasedIn, err = p.ask("Based in"); err != nil {
			break
		}
		fmt.Fprintf(p.out, "  Countries: %s\n", strings.Join(cat.CountryNames(), ", "))
		in.ExpandTo, err = p.askList("Expand to")
	case wizard.StepServices:
		fmt.Fprintf(p.out, "  %s\n", strings.Join(cat.Services, ", "))
		if in.Services, err = p.askList("Services"); err != nil {
			break
		}
		for _, s := range in.Services {
			if s == domain.ServiceOther {
				in.OtherText, err = p.ask("Describe the other service")
			}
		}
	case wizard.StepBusinessProfile:
		if in.Website, err = p.ask("Website (optional)"); err != nil {
			break
		}
		if in.LinkedIn, err = p.ask("LinkedIn (optional)"); err != nil {
			break
		}
		fmt.Fprintf(p.out, "  %s\n", strings.Join(cat.CompanySizes, ", "))
		in.CompanySize, err = p.ask("Company size")
	case wizard.StepTimeline:
		fmt.Fprintf(p.out, "  %s\n", optionList(cat.Timelines))
		in.Timeline, err = p.ask("Timeline")
	case wizard.StepPlanSelection:
		for _, pl := range cat.Plans {
			fmt.Fprintf(p.out, "  %s: %s %s\n", pl.Name, pl.DisplayPrice, pl.Period)
		}
		in.Plan, err = p.ask("Plan")
	case wizard.StepAddOns:
		for _, a := range cat.AddOns {
			fmt.Fprintf(p.out, "  %s: %s %s\n", a.Name, euros(a.Price), a.Period)
		}
		in.AddOns, err = p.askList("Add-ons (optional)")
	case wizard.StepContactInfo:
		if in.Name, err = p.ask("Name"); err != nil {
			break
		}
		if in.Email, err = p.ask("Email"); err != nil {
			break
		}
		in.Phone, err = p.ask("Phone")
	}
	return in, err
}
