package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/coverage"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/metrics"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/persistence"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/version"
)

func newCoverageCmd(a *app) *cobra.Command {
	var reportPath, productionPath string
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Print the instruction coverage of a unit from a coverage report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reportPath == "" || productionPath == "" {
				return usageErrorf("coverage requires --coverage and --production")
			}
			analyzer := coverage.NewAnalyzer(a.resolve(reportPath), productionPath)
			pct, err := analyzer.Measure()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s%%\n", analyzer.UnitID, pct)
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "coverage", "", "Coverage report (JaCoCo CSV)")
	cmd.Flags().StringVar(&productionPath, "production", "", "Production source file")
	return cmd
}

func (a *app) openHistory() (*persistence.Store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return persistence.Open(a.resolve(cfg.History.Path))
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tUNIT\tOUTCOME\tATTEMPTS\tBASELINE\tFINAL\tTARGET")
			for _, r := range runs {
				final := "-"
				if r.FinalCoverage != nil {
					final = r.FinalCoverage.String() + "%"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s%%\t%s\t%v%%\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.UnitID, r.Outcome,
					r.AttemptsUsed, r.MaxAttempts, r.Baseline, final, r.Target)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.AddCommand(newHistoryShowCmd(a))
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "List the attempts of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			attempts, err := store.Attempts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				return fmt.Errorf("no attempts recorded for run %s", args[0])
			}

			out := cmd.OutOrStdout()
			for _, at := range attempts {
				cov := "-"
				if at.Coverage != nil {
					cov = at.Coverage.String() + "%"
				}
				fmt.Fprintf(out, "#%d %s coverage=%s duration=%s\n", at.Index+1, at.Outcome, cov, at.Duration)
				if at.Feedback != "" {
					fmt.Fprintf(out, "   %s\n", oneLine(at.Feedback))
				}
			}
			return nil
		},
	}
}

func newUsageCmd(_ *app) *cobra.Command {
	var (
		prometheusURL string
		operation     string
		byModel       bool
	)
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Report LLM token usage and cost from a Prometheus server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if prometheusURL == "" {
				return usageErrorf("usage requires --prometheus")
			}
			q, err := metrics.NewQueryService(prometheusURL)
			if err != nil {
				return err
			}
			selector := ""
			if operation != "" {
				selector = fmt.Sprintf("operation=%q", operation)
			}

			var rows []*metrics.UsageMetrics
			if byModel {
				if rows, err = q.GetUsageByModel(cmd.Context(), selector); err != nil {
					return err
				}
			} else {
				total, err := q.GetUsage(cmd.Context(), selector)
				if err != nil {
					return err
				}
				total.Model = "all"
				rows = []*metrics.UsageMetrics{total}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tPROMPT\tCOMPLETION\tTOTAL\tCOST")
			for _, u := range rows {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t$%.4f\n", u.Model, u.PromptTokens, u.CompletionTokens, u.TotalTokens, u.TotalCost)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&prometheusURL, "prometheus", "", "Prometheus server URL")
	cmd.Flags().StringVar(&operation, "operation", "", "Only count one synthesis kind, e.g. test-code")
	cmd.Flags().BoolVar(&byModel, "by-model", false, "Break usage down by model")
	return cmd
}

func newSecretsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the project's encrypted credentials",
	}

	set := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Store a credential, e.g. ANTHROPIC_API_KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return usageErrorf("secret name is empty")
			}
			existing := config.SecretsFileExists(a.projectDir)
			password, err := a.password(!existing)
			if err != nil {
				return err
			}

			secrets := map[string]string{}
			if existing {
				if secrets, err = config.DecryptSecretsFile(a.projectDir, password); err != nil {
					return err
				}
			}
			secrets[name] = args[1]
			if err := config.EncryptSecretsFile(a.projectDir, password, secrets); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in %s\n", name, config.SecretsFilePath(a.projectDir))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored credential names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !config.SecretsFileExists(a.projectDir) {
				fmt.Fprintln(cmd.OutOrStdout(), "No secrets file.")
				return nil
			}
			password, err := a.password(false)
			if err != nil {
				return err
			}
			secrets, err := config.DecryptSecretsFile(a.projectDir, password)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(secrets))
			for name := range secrets {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.AddCommand(set, list)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}
