package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Veraticus/credit-engine/internal/cli"
	"github.com/Veraticus/credit-engine/internal/lifecycle"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/spf13/cobra"
)

func opportunitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "opportunities",
		Aliases: []string{"opps"},
		Short:   "Inspect and review credit opportunities",
		Long: `Inspect credit opportunities and move them through review.

  identified -> confirmed | rejected
  analyzing  -> identified | rejected
  confirmed  -> approved
  approved   -> recovered

Every change is recorded in the opportunity history.`,
	}

	cmd.AddCommand(opportunitiesListCmd())
	cmd.AddCommand(opportunitiesShowCmd())
	cmd.AddCommand(opportunitiesHistoryCmd())
	cmd.AddCommand(opportunitiesReviewCmd())

	for _, action := range []struct {
		name  string
		short string
	}{
		{lifecycle.ActionConfirm, "Confirm an identified opportunity"},
		{lifecycle.ActionReject, "Reject an opportunity with a reason"},
		{lifecycle.ActionResolve, "Return an opportunity under analysis to identified"},
		{lifecycle.ActionApprove, "Mark a confirmed opportunity as approved"},
		{lifecycle.ActionRecover, "Mark an approved opportunity as recovered"},
	} {
		cmd.AddCommand(opportunityActionCmd(action.name, action.short))
	}

	return cmd
}

func opportunitiesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List opportunities",
		RunE:  runOpportunitiesList,
	}

	cmd.Flags().String("run", "", "Only opportunities from this analysis run")
	cmd.Flags().String("supplier", "", "Only opportunities for this supplier")
	cmd.Flags().String("status", "", "Comma-separated statuses to include")
	cmd.Flags().Int("limit", 50, "Maximum number of opportunities to show (0 for all)")

	return cmd
}

func opportunityFilter(cmd *cobra.Command) (service.OpportunityFilter, error) {
	var filter service.OpportunityFilter
	filter.RunID, _ = cmd.Flags().GetString("run")
	filter.SupplierID, _ = cmd.Flags().GetString("supplier")
	if cmd.Flags().Lookup("limit") != nil {
		filter.Limit, _ = cmd.Flags().GetInt("limit")
	}

	raw, _ := cmd.Flags().GetString("status")
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		status, err := model.ParseStatus(part)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	return filter, nil
}

func runOpportunitiesList(cmd *cobra.Command, _ []string) error {
	filter, err := opportunityFilter(cmd)
	if err != nil {
		return err
	}

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		opps, err := store.ListOpportunities(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list opportunities: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(opps) == 0 {
			writeLine(out, cli.InfoStyle.Render("No opportunities found. Use 'credit analyze' to find some."))
			return nil
		}

		rows := make([][]string, len(opps))
		for i := range opps {
			o := &opps[i]
			rows[i] = []string{
				o.ID,
				o.PaymentID,
				o.SupplierID,
				string(o.Status),
				o.RetentionRate.String() + "%",
				cli.FormatBRL(o.RetentionAmount),
				cli.FormatBRL(o.CorrectionAmount),
				cli.FormatBRL(o.TotalCredit()),
				strconv.Itoa(o.Confidence) + "%",
			}
		}

		totals := model.Summarize(opps)
		writeLine(out, cli.FormatTitle("Credit Opportunities"))
		writeLine(out, cli.RenderTable(
			[]string{"ID", "Payment", "Supplier", "Status", "Rate", "Retention", "Correction", "Total", "Confidence"},
			rows))
		writef(out, "\nIdentified: %s   Approved: %s\n", cli.FormatMoney(totals.Identified), cli.FormatMoney(totals.Approved))
		return nil
	})
}

func opportunitiesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one opportunity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
				opp, err := store.GetOpportunity(ctx, args[0])
				if err != nil {
					return err
				}
				printOpportunity(cmd.OutOrStdout(), opp)
				return nil
			})
		},
	}
}

func printOpportunity(out io.Writer, opp *model.CreditOpportunity) {
	content := fmt.Sprintf("Payment:     %s\n", opp.PaymentID) +
		fmt.Sprintf("Supplier:    %s\n", opp.SupplierID) +
		fmt.Sprintf("Run:         %s\n", opp.RunID) +
		fmt.Sprintf("Identified:  %s\n", formatDate(opp.IdentificationDate)) +
		fmt.Sprintf("Status:      %s\n", opp.Status) +
		fmt.Sprintf("Rule:        %s\n", opp.ApplicableRule) +
		fmt.Sprintf("Rate:        %s%%\n", opp.RetentionRate) +
		fmt.Sprintf("Retention:   %s\n", cli.FormatBRL(opp.RetentionAmount)) +
		fmt.Sprintf("Correction:  %s\n", cli.FormatBRL(opp.CorrectionAmount)) +
		fmt.Sprintf("Total:       %s\n", cli.FormatMoney(opp.TotalCredit())) +
		fmt.Sprintf("Confidence:  %d%%", opp.Confidence)
	if opp.RejectionReason != "" {
		content += fmt.Sprintf("\nRejected:    %s", opp.RejectionReason)
	}
	if next := lifecycle.Allowed(opp.Status); len(next) > 0 {
		names := make([]string, len(next))
		for i, s := range next {
			names[i] = string(s)
		}
		content += "\nNext:        " + strings.Join(names, ", ")
	}

	writeLine(out, cli.RenderBox("Opportunity "+opp.ID, content))
}

func opportunitiesHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the status history of an opportunity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
				if _, err := store.GetOpportunity(ctx, args[0]); err != nil {
					return err
				}
				history, err := store.GetOpportunityHistory(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to get history: %w", err)
				}

				rows := make([][]string, len(history))
				for i, h := range history {
					from := string(h.FromStatus)
					if from == "" {
						from = "-"
					}
					rows[i] = []string{
						h.ChangedAt.Format("2006-01-02 15:04:05"),
						from,
						string(h.ToStatus),
						h.Reason,
					}
				}

				out := cmd.OutOrStdout()
				writeLine(out, cli.FormatTitle("History of "+args[0]))
				writeLine(out, cli.RenderTable([]string{"When", "From", "To", "Reason"}, rows))
				return nil
			})
		},
	}
}

func opportunityActionCmd(action, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")

			return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
				opp, err := newRunner(store).Transition(ctx, args[0], action, reason)
				if err != nil {
					return err
				}
				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Opportunity %s is now %s (%s)",
					opp.ID, opp.Status, cli.FormatBRL(opp.TotalCredit()))))
				return nil
			})
		},
	}

	if action == lifecycle.ActionReject {
		cmd.Flags().String("reason", "", "Why the opportunity is rejected (required)")
		_ = cmd.MarkFlagRequired("reason")
	}

	return cmd
}

func opportunitiesReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review identified and analyzing opportunities interactively",
		RunE:  runOpportunitiesReview,
	}

	cmd.Flags().String("run", "", "Only opportunities from this analysis run")
	cmd.Flags().String("supplier", "", "Only opportunities for this supplier")

	return cmd
}

func runOpportunitiesReview(cmd *cobra.Command, _ []string) error {
	filter, err := opportunityFilter(cmd)
	if err != nil {
		return err
	}
	filter.Statuses = []model.CreditStatus{model.StatusIdentified, model.StatusAnalyzing}

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		opps, err := store.ListOpportunities(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list opportunities: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(opps) == 0 {
			writeLine(out, cli.FormatSuccess("Nothing to review"))
			return nil
		}

		handler := cli.NewInterruptHandler(out)
		ctx = handler.HandleInterrupts(ctx, "Review", false)

		runner := newRunner(store)
		reviewer := cli.NewReviewer(cmd.InOrStdin(), out)
		reviewer.SetTotal(len(opps))

		for i := range opps {
			decision, err := reviewer.Review(ctx, &opps[i])
			if errors.Is(err, cli.ErrReviewQuit) || errors.Is(err, context.Canceled) {
				break
			}
			if err != nil {
				return err
			}
			if decision.Skipped() {
				continue
			}
			if _, err := runner.Transition(ctx, decision.OpportunityID, decision.Action, decision.Reason); err != nil {
				return fmt.Errorf("failed to %s opportunity %s: %w", decision.Action, decision.OpportunityID, err)
			}
		}

		reviewer.ShowCompletion()
		return nil
	})
}
