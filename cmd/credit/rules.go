package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Veraticus/credit-engine/internal/cli"
	"github.com/Veraticus/credit-engine/internal/ingest"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage retention rules",
		Long: `Retention rules map a service category and supplier type to the withholding
rate and legal citation that applies. Rules are matched in priority order and
the first match wins.`,
	}

	cmd.AddCommand(rulesImportCmd())
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesDeleteCmd())

	return cmd
}

func rulesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <rules.yaml>",
		Short: "Import retention rules from a YAML file",
		Long: `Import a YAML rule table. Existing rules with the same category and
supplier type are updated in place.

Example file:

  rules:
    - category: technology
      supplierType: service
      ratePercent: "1.5"
      citation: IN RFB 1.234/2012, art. 1
    - category: "*"
      supplierType: goods
      ratePercent: "0"
      exempt: true`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := ingest.LoadRulesFile(args[0])
			if err != nil {
				return err
			}

			return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
				if err := store.SaveRules(ctx, rules); err != nil {
					return fmt.Errorf("failed to save rules: %w", err)
				}
				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d rules", len(rules))))
				return nil
			})
		},
	}
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List retention rules in match order",
		RunE:  runRulesList,
	}

	cmd.Flags().Bool("yaml", false, "Print rules in the import file format")

	return cmd
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	asYAML, _ := cmd.Flags().GetBool("yaml")

	return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
		rules, err := store.GetRules(ctx)
		if err != nil {
			return fmt.Errorf("failed to get rules: %w", err)
		}

		out := cmd.OutOrStdout()
		if asYAML {
			data, err := ingest.MarshalRules(rules)
			if err != nil {
				return fmt.Errorf("failed to encode rules: %w", err)
			}
			writef(out, "%s", data)
			return nil
		}

		if len(rules) == 0 {
			writeLine(out, cli.InfoStyle.Render("No retention rules found. Use 'credit rules import' to add some."))
			return nil
		}

		rows := make([][]string, len(rules))
		for i, r := range rules {
			exempt := ""
			if r.Exempt {
				exempt = "yes"
			}
			rows[i] = []string{
				strconv.Itoa(r.ID),
				string(r.Category),
				string(r.SupplierType),
				r.RatePercent.String() + "%",
				strconv.Itoa(r.Priority),
				exempt,
				r.Citation,
			}
		}

		writeLine(out, cli.FormatTitle("Retention Rules"))
		writeLine(out, cli.RenderTable(
			[]string{"ID", "Category", "Supplier", "Rate", "Priority", "Exempt", "Citation"},
			rows))
		return nil
	})
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a retention rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid rule ID %q", args[0])
			}

			return withStorage(cmd, func(ctx context.Context, store service.Storage) error {
				if err := store.DeleteRule(ctx, id); err != nil {
					return fmt.Errorf("failed to delete rule %d: %w", id, err)
				}
				writeLine(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
				return nil
			})
		},
	}
}
