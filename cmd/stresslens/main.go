package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "StressLens"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// .env is optional; secrets can come from the real environment too.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env")
	}

	rootCmd := &cobra.Command{
		Use:     "stresslens",
		Short:   "Balance-sheet resilience and market dislocation scoring",
		Version: version,
		Long: `StressLens scores listed companies on two complementary axes:

  BRS  Balance-sheet Resilience Score (0-100) - how well the business
       holds up under stress: valuation support, cash truth, capital
       efficiency, balance sheet, durability.
  MDS  Market Dislocation Score (0-100) - how hard the market has
       repriced it: multiple compression, expectation resets, operating
       resilience, positioning.

Run 'stresslens' in a terminal for the interactive menu, or use the
subcommands for automation.`,
		Run: runDefaultEntry,
	}

	rootCmd.PersistentFlags().String("config", "config/config.yaml", "Path to the config file (missing file = built-in defaults)")

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score a single ticker",
		Long:  "Fetch fundamentals for one ticker and print its BRS and MDS scores",
		RunE:  runScore,
	}
	scoreCmd.Flags().String("ticker", "", "Ticker symbol to score (required)")
	scoreCmd.Flags().String("asof", "", "Historical cutoff date (YYYY-MM-DD), empty = latest")
	scoreCmd.Flags().String("universe", "", "Universe file for the peer table (empty = no peers, valuation degrades)")
	scoreCmd.Flags().Var(newEnumFlag("table", "table", "json"), "format", "Output format (table|json)")
	_ = scoreCmd.MarkFlagRequired("ticker")

	narrativeCmd := &cobra.Command{
		Use:   "narrative",
		Short: "Classify narrative shocks from documents",
		Long:  "Run the narrative shock classifier over a JSON document file and print the classification",
		RunE:  runNarrative,
	}
	narrativeCmd.Flags().String("ticker", "", "Ticker the documents belong to")
	narrativeCmd.Flags().String("docs", "", "JSON file with an array of documents (required)")
	narrativeCmd.Flags().String("window-end", "", "Window anchor date (YYYY-MM-DD), empty = latest document date")
	_ = narrativeCmd.MarkFlagRequired("docs")

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Score a whole universe and write run artifacts",
		Long:  "Score every ticker in the universe file concurrently; write per-ticker JSON, summary CSV, report, and manifest under the output directory",
		RunE:  runBatch,
	}
	batchCmd.Flags().String("universe", "", "Universe file (default from config)")
	batchCmd.Flags().String("asof", "", "Historical cutoff date (YYYY-MM-DD), empty = latest")
	batchCmd.Flags().Int("concurrency", 0, "Concurrent ticker workers (default from config)")
	batchCmd.Flags().String("output", "", "Output directory for run artifacts (default from config)")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Re-render artifacts for a finished run",
		Long:  "Load a run directory and generate the optional XLSX workbook and HTML report from its ticker results",
		RunE:  runReport,
	}
	reportCmd.Flags().String("run", "", "Run directory to load (required)")
	reportCmd.Flags().Bool("xlsx", false, "Write the XLSX workbook")
	reportCmd.Flags().Bool("html", false, "Render the markdown report to HTML")
	_ = reportCmd.MarkFlagRequired("run")

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Start the read-only monitor HTTP server",
		Long:  "Serve /health, Prometheus /metrics, and the latest persisted scores over HTTP",
		RunE:  runMonitor,
	}
	monitorCmd.Flags().String("addr", "", "Bind address (default from config)")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Recurring batch runs on cron schedules",
		Long:  "Manage scheduled scoring jobs defined in a jobs YAML file",
	}

	scheduleStartCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		Long:  "Register every job from the jobs file and run them on their cron schedules until interrupted",
		RunE:  runScheduleStart,
	}

	scheduleListCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured jobs",
		Long:  "Print every job from the jobs file with its schedule and universe",
		RunE:  runScheduleList,
	}

	scheduleRunCmd := &cobra.Command{
		Use:   "run [job-name]",
		Short: "Execute one job immediately",
		Long:  "Run a single job from the jobs file right now, off-schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  runScheduleOnce,
	}

	for _, cmd := range []*cobra.Command{scheduleStartCmd, scheduleListCmd, scheduleRunCmd} {
		cmd.Flags().String("jobs", "config/schedule.yaml", "Jobs YAML file")
	}

	scheduleCmd.AddCommand(scheduleStartCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)

	menuCmd := &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu interface",
		Long:  "Start the interactive menu (also the default when run in a terminal)",
		Run:   runMenu,
	}

	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(narrativeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(monitorCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// runDefaultEntry routes a bare invocation: menu on a TTY, guidance otherwise.
func runDefaultEntry(cmd *cobra.Command, args []string) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "The interactive menu needs a TTY terminal.\n")
		fmt.Fprintf(os.Stderr, "Use subcommands for non-interactive automation:\n\n")
		fmt.Fprintf(os.Stderr, "  stresslens score --ticker AAPL --format json\n")
		fmt.Fprintf(os.Stderr, "  stresslens batch --universe config/universe.txt\n")
		fmt.Fprintf(os.Stderr, "  stresslens --help\n")
		os.Exit(2)
	}

	runMenu(cmd, args)
}

func runMenu(cmd *cobra.Command, args []string) {
	ui := NewMenuUI(cmd)
	if err := ui.Run(); err != nil {
		log.Error().Err(err).Msg("menu failed")
		os.Exit(1)
	}
}
