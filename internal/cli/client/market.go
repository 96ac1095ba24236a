package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/cryptoadvisor/internal/market"
)

func MarketCmd() *cobra.Command {
	var days int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "market [symbol]",
		Short: "Show price and technical signals for a coin",
		Long:  "Without a symbol, list the supported coin symbols.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				symbols, err := client.MarketSymbols(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list symbols: %w", err)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), symbols)
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(symbols, " "))
				return nil
			}

			report, err := client.MarketReport(cmd.Context(), args[0], days)
			if err != nil {
				return fmt.Errorf("failed to get market report: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Chart window in days (default: server setting)")
	cmd.Flags().BoolVar(&asJSON, "output", false, "Output as JSON")
	return cmd
}

func NewsCmd() *cobra.Command {
	var coins []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "news [text]",
		Short: "Show recent news for coins mentioned in text or given with --coin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(coins) == 0 {
				return fmt.Errorf("give some text or at least one --coin")
			}
			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			result, err := client.News(cmd.Context(), strings.Join(args, " "), coins)
			if err != nil {
				return fmt.Errorf("failed to fetch news: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "News for %s:\n", strings.Join(result.Keywords, ", "))
			if len(result.Articles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  no recent articles")
			}
			for _, a := range result.Articles {
				printArticle(cmd.OutOrStdout(), a)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&coins, "coin", nil, "Coin symbol or name (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "output", false, "Output as JSON")
	return cmd
}

func printReport(w io.Writer, r *market.Report) {
	fmt.Fprintf(w, "%s  $%s\n", strings.ToUpper(r.Symbol), formatPrice(r.Quote.Price))
	if r.Change24h != nil {
		fmt.Fprintf(w, "24h: %+.2f%%\n", *r.Change24h)
	}
	if r.Change7d != nil {
		fmt.Fprintf(w, "7d:  %+.2f%%\n", *r.Change7d)
	}

	a := r.Analysis
	if a == nil {
		return
	}
	fmt.Fprintf(w, "Sentiment: %s\n", a.OverallSentiment)
	if rsi := a.Indicators.RSI; rsi != nil {
		fmt.Fprintf(w, "RSI(14): %.1f\n", *rsi)
	}
	if a.Levels != nil {
		fmt.Fprintf(w, "Support: $%s  Resistance: $%s\n", formatPrice(a.Levels.Support), formatPrice(a.Levels.Resistance))
	}
	if len(a.Signals) > 0 {
		fmt.Fprintln(w, "Signals:")
		for _, s := range a.Signals {
			fmt.Fprintf(w, "  %-14s %-7s %s\n", s.Type, s.Strength, s.Description)
		}
	}
	fmt.Fprintln(w, "\nNot financial advice.")
}

func formatPrice(p float64) string {
	if p >= 1 {
		return fmt.Sprintf("%.2f", p)
	}
	return fmt.Sprintf("%.6f", p)
}
