package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"qrshield/internal/analyzer"
	"qrshield/internal/config"
	"qrshield/pkg/domain"
	"qrshield/pkg/logger"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verdictColors = map[domain.Verdict]*color.Color{
	domain.VerdictSafe:  color.New(color.FgGreen, color.Bold),
	domain.VerdictWarn:  color.New(color.FgYellow, color.Bold),
	domain.VerdictBlock: color.New(color.FgRed, color.Bold),
}

// printReport writes a human readable report to stdout.
func printReport(rep domain.Report) {
	cyan := color.New(color.FgCyan)
	faint := color.New(color.Faint)

	_, _ = cyan.Println(rep.InputURL)
	if c, ok := verdictColors[rep.Risk.Verdict]; ok {
		_, _ = c.Printf("  %s (score %d)\n", rep.Risk.Verdict, rep.Risk.Score)
	}
	for _, reason := range rep.Risk.Reasons {
		fmt.Printf("  - %s\n", reason) //nolint: forbidigo
	}

	if exp := rep.Expansion; exp != nil {
		for i, hop := range exp.Chain {
			_, _ = faint.Printf("  %2d  %s\n", i, hop)
		}
		if exp.FailureReason != domain.FailureNone {
			_, _ = color.New(color.FgYellow).Printf("  resolution stopped: %s\n", exp.FailureReason)
		}
	}

	if rp := rep.Reputation; rp != nil {
		if rp.FeedChecked {
			_, _ = faint.Printf("  threat feeds: %s (%d matches)\n", rp.FeedStatus, rp.FeedMatches)
		}
		if rp.AgeKnown {
			_, _ = faint.Printf("  domain age: %d days\n", rp.DomainAgeDays)
		}
	}
}

// checkCommand analyzes payloads from the command line without starting the server.
func checkCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [url...]",
		Short: "Analyzes QR payloads and prints their verdicts",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			force, _ := cmd.Flags().GetBool("force")
			noColor, _ := cmd.Flags().GetBool("no-color")
			if noColor {
				color.NoColor = true
			}

			eng, err := newEngine(ctx, cfg, nil)
			if err != nil {
				logger.Fatal(ctx, "could not create analyzer", zap.Error(err))
			}
			defer eng.Close()

			blocked := false
			for _, raw := range args {
				rep, err := eng.Analyzer.Analyze(ctx, raw, analyzer.WithForce(force))
				if err != nil {
					_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "%s: %v\n", raw, err)

					continue
				}
				printReport(rep)
				blocked = blocked || rep.Risk.Verdict == domain.VerdictBlock
			}

			if blocked {
				eng.Close()
				os.Exit(2) //nolint: gocritic
			}
		},
	}

	cmd.Flags().Bool("force", false, "Bypass the redirect cache")
	cmd.Flags().Bool("no-color", false, "Disable colored output")

	return cmd
}
