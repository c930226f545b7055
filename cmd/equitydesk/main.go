// equitydesk aggregates Indian equity quotes, technicals and financials.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/spf13/cobra"

	"github.com/avinashsk/equitydesk/internal/config"
	"github.com/avinashsk/equitydesk/internal/datasource"
	"github.com/avinashsk/equitydesk/internal/financial"
	"github.com/avinashsk/equitydesk/internal/quote"
	"github.com/avinashsk/equitydesk/internal/technical"
	"github.com/avinashsk/equitydesk/pkg/models"
	"github.com/avinashsk/equitydesk/pkg/symbol"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "equitydesk",
	Short: "equitydesk - Indian equity quotes, technicals and financials",
	Long: `equitydesk aggregates NSE/BSE quotes across multiple data providers with
automatic fallback, computes moving-average technicals and Weinstein
market-cycle stages, and scrapes quarterly financial results.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "print raw JSON instead of formatted output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(technicalsCmd)
	rootCmd.AddCommand(financialsCmd)
	rootCmd.AddCommand(detailsCmd)
}

// engine bundles the wired resolution stack.
type engine struct {
	orch *quote.Orchestrator
	tech *technical.Resolver
	fin  *financial.Extractor
}

// buildEngine wires every adapter from the loaded config. Adapters without an
// API key stay registered; the orchestrator skips them at call time.
func buildEngine() *engine {
	timeout := cfg.HTTP.Timeout()

	nse := datasource.NewNSE(timeout)
	bse := datasource.NewBSE(timeout)
	yahoo := datasource.NewYahoo(timeout)
	scanner := datasource.NewScanner(timeout)
	screener := datasource.NewScreener(timeout)
	alpha := datasource.NewAlphaVantage(cfg.Providers.AlphaVantageKey, timeout)
	twelve := datasource.NewTwelveData(cfg.Providers.TwelveDataKey, timeout)

	lookup := symbol.NewStaticLookup()

	tech := technical.NewResolver(
		technical.Config{
			HitTTL:  cfg.Cache.TechnicalHitDuration(),
			MissTTL: cfg.Cache.TechnicalMissDuration(),
		},
		[]technical.HistorySource{nse, bse},
		[]technical.FieldSource{scanner, screener},
		[]technical.SeriesSource{yahoo, alpha, twelve},
		lookup,
	)

	orch := quote.NewOrchestrator(
		quote.Config{
			ProviderOrder: cfg.Providers.Order,
			QuoteTTL:      cfg.Cache.QuoteDuration(),
			Debug:         cfg.Logging.Debug,
		},
		[]datasource.QuoteProvider{nse, bse, yahoo, scanner, alpha, twelve, screener},
		tech,
		datasource.NewNews(timeout),
	)

	fin := financial.NewExtractor(timeout, cfg.Cache.FinancialHitDuration(), lookup)

	return &engine{orch: orch, tech: tech, fin: fin}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("equitydesk %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Quote Command ---

var quoteCmd = &cobra.Command{
	Use:   "quote [tickers...]",
	Short: "Fetch quotes for one or more stocks",
	Long: `Fetch quotes with automatic provider fallback.

Examples:
  equitydesk quote RELIANCE
  equitydesk quote TCS INFY 500325
  equitydesk quote HDFCBANK.NS --trace`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := buildEngine()
		quotes := eng.orch.GetQuotes(cmd.Context(), args)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(quotes)
		}
		showTrace, _ := cmd.Flags().GetBool("trace")
		for i := range quotes {
			printQuote(&quotes[i], showTrace)
		}
		return nil
	},
}

func init() {
	quoteCmd.Flags().Bool("trace", false, "show the per-provider resolution trace")
}

func printQuote(q *models.Quote, showTrace bool) {
	fmt.Printf("%s (%s) [%s]\n", q.Symbol, q.ShortName, q.DataStatus)
	fmt.Printf("  price:   %s  %s (%s%%)\n", fmtNull(q.Price), fmtNull(q.Change), fmtNull(q.ChangePct))
	fmt.Printf("  day:     O %s  H %s  L %s  prev %s  vol %s\n",
		fmtNull(q.Open), fmtNull(q.High), fmtNull(q.Low), fmtNull(q.PrevClose), fmtNullInt(q.Volume))
	fmt.Printf("  52w:     %s / %s   mcap %s\n", fmtNull(q.WeekHigh52), fmtNull(q.WeekLow52), fmtNull(q.MarketCap))
	fmt.Printf("  ratios:  PE %s  EPS %s  PB %s\n", fmtNull(q.PE), fmtNull(q.EPS), fmtNull(q.PB))
	fmt.Printf("  trend:   EMA50 %s  EMA200 %s  30wSMA %s  stage %s\n",
		fmtNull(q.EMA50), fmtNull(q.EMA200), fmtNull(q.SMA30W), orDash(string(q.Stage)))
	fmt.Printf("  source:  %s\n", q.Source)
	if showTrace {
		fmt.Printf("  trace:   %s\n", strings.Join(q.Trace, " → "))
	}
	fmt.Println()
}

// --- Technicals Command ---

var technicalsCmd = &cobra.Command{
	Use:   "technicals [ticker]",
	Short: "Compute moving averages and market-cycle stage for a stock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := buildEngine()
		sym := symbol.Normalize(args[0])

		snap := eng.tech.Resolve(cmd.Context(), sym, null.Float{}, "")
		if snap == nil {
			fmt.Printf("%s: no technical data available\n", sym)
			return nil
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(snap)
		}
		fmt.Printf("%s\n", sym)
		fmt.Printf("  EMA50:   %s\n", fmtNull(snap.EMA50))
		fmt.Printf("  EMA200:  %s\n", fmtNull(snap.EMA200))
		fmt.Printf("  30w SMA: %s\n", fmtNull(snap.SMA30W))
		fmt.Printf("  stage:   %s\n", orDash(string(snap.Stage)))
		fmt.Printf("  source:  %s\n", snap.Source)
		return nil
	},
}

// --- Financials Command ---

var financialsCmd = &cobra.Command{
	Use:   "financials [ticker]",
	Short: "Scrape quarterly financial results for a stock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := buildEngine()
		quarters, _ := cmd.Flags().GetInt("quarters")
		refresh, _ := cmd.Flags().GetBool("refresh")

		report := eng.fin.GetQuarterly(cmd.Context(), args[0], financial.Options{
			Limit:        quarters,
			ForceRefresh: refresh,
		})
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(report)
		}
		printReport(&report)
		return nil
	},
}

func init() {
	financialsCmd.Flags().Int("quarters", financial.DefaultQuarters, "number of quarters to show (1-8)")
	financialsCmd.Flags().Bool("refresh", false, "bypass the report cache")
}

func printReport(r *models.FinancialReport) {
	fmt.Printf("%s  %s [%s]\n", r.Symbol, r.CompanyName, r.DataStatus)
	if r.DataStatus == models.StatusUnavailable {
		fmt.Printf("  %s\n", r.Diagnostic)
		return
	}
	fmt.Printf("  %-18s %s\n", "", strings.Join(r.QuarterLabels, "  "))
	for _, row := range r.Rows {
		vals := make([]string, len(row.Values))
		for i, v := range row.Values {
			vals[i] = fmtNull(v)
		}
		fmt.Printf("  %-18s %s\n", row.Label, strings.Join(vals, "  "))
	}
	fmt.Printf("  source: %s\n", r.SourceURL)
}

// --- Details Command ---

var detailsCmd = &cobra.Command{
	Use:   "details [ticker]",
	Short: "Show a quote with profile metadata and recent headlines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := buildEngine()
		details := eng.orch.GetMarketDetails(cmd.Context(), args[0])

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(details)
		}
		printQuote(&details.Quote, false)
		if len(details.Headlines) > 0 {
			fmt.Println("  recent headlines:")
			for _, h := range details.Headlines {
				fmt.Printf("   - [%s] %s\n", h.Source, h.Title)
			}
		}
		return nil
	},
}

// --- Formatting helpers ---

func fmtNull(v null.Float) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.2f", v.Float64)
}

func fmtNullInt(v null.Int) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%d", v.Int64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
