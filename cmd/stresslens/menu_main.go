package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/stresslens/internal/config"
	"github.com/sawpanic/stresslens/internal/scheduler"
)

// MenuUI is the interactive terminal interface.
type MenuUI struct {
	configPath string
	reader     *bufio.Reader
}

// NewMenuUI builds the menu. cmd supplies the --config persistent flag.
func NewMenuUI(cmd *cobra.Command) *MenuUI {
	path, _ := cmd.Flags().GetString("config")
	return &MenuUI{
		configPath: path,
		reader:     bufio.NewReader(os.Stdin),
	}
}

// Run drives the menu loop until exit.
func (ui *MenuUI) Run() error {
	fmt.Print("\033[2J\033[H")
	ui.showBanner()

	for {
		choice, err := ui.showMainMenu()
		if err != nil {
			return fmt.Errorf("menu error: %w", err)
		}

		if choice == "0" {
			return nil
		}
		if err := ui.handleMenuChoice(choice); err != nil {
			log.Error().Err(err).Msg("Menu action failed")
		}
		ui.waitForEnter()
	}
}

func (ui *MenuUI) showBanner() {
	fmt.Printf(`
 ╔════════════════════════════════════════════════════╗
 ║                 %s %s                   ║
 ║     Resilience & Dislocation Scoring Engine        ║
 ╚════════════════════════════════════════════════════╝

`, appName, version)
}

func (ui *MenuUI) showMainMenu() (string, error) {
	fmt.Printf(`
╔═══════════════ MAIN MENU ═══════════════╗

 1. 📊 Score    - Score one ticker
 2. 🗂  Batch    - Score a universe file
 3. 📄 Report   - Re-render a finished run
 4. 📈 Monitor  - HTTP endpoints
 5. ⏰ Schedule - List configured jobs
 0. 🚪 Exit

╚═════════════════════════════════════════╝

Enter your choice (0-5): `)

	line, err := ui.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (ui *MenuUI) handleMenuChoice(choice string) error {
	switch choice {
	case "1":
		return ui.handleScore()
	case "2":
		return ui.handleBatch()
	case "3":
		return ui.handleReport()
	case "4":
		return ui.handleMonitor()
	case "5":
		return ui.handleSchedule()
	default:
		fmt.Printf("Unknown choice: %s\n", choice)
		return nil
	}
}

func (ui *MenuUI) handleScore() error {
	cfg, err := ui.config()
	if err != nil {
		return err
	}

	ticker := ui.prompt("Ticker", "")
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	asOf := ui.prompt("As-of date (YYYY-MM-DD, empty = latest)", "")
	universe := ui.prompt("Universe file for peers (empty = none)", cfg.Scoring.UniverseFile)

	return scoreOne(cfg, ticker, asOf, universe, "table")
}

func (ui *MenuUI) handleBatch() error {
	cfg, err := ui.config()
	if err != nil {
		return err
	}

	universe := ui.prompt("Universe file", cfg.Scoring.UniverseFile)
	asOf := ui.prompt("As-of date (YYYY-MM-DD, empty = latest)", "")

	return batchOne(cfg, universe, asOf, 0, "")
}

func (ui *MenuUI) handleReport() error {
	dir := ui.prompt("Run directory", "")
	if dir == "" {
		return fmt.Errorf("run directory is required")
	}
	xlsx := ui.confirm("Write XLSX workbook?")
	html := ui.confirm("Render HTML report?")

	return renderRun(dir, xlsx, html)
}

func (ui *MenuUI) handleMonitor() error {
	cfg, err := ui.config()
	if err != nil {
		return err
	}

	addr := ui.prompt("Bind address", cfg.Monitor.Addr)
	fmt.Println("Starting monitor server, Ctrl-C returns to the menu")
	return monitorServe(cfg, addr)
}

func (ui *MenuUI) handleSchedule() error {
	jobsFile := ui.prompt("Jobs file", "config/schedule.yaml")
	jobs, err := scheduler.LoadJobs(jobsFile)
	if err != nil {
		return err
	}

	fmt.Printf("\n%-20s %-16s %-30s %s\n", "NAME", "SCHEDULE", "UNIVERSE", "ENABLED")
	for _, job := range jobs {
		enabled := "yes"
		if job.Enabled != nil && !*job.Enabled {
			enabled = "no"
		}
		fmt.Printf("%-20s %-16s %-30s %s\n", job.Name, job.Schedule, job.Universe, enabled)
	}
	fmt.Println("\nUse 'stresslens schedule start' to run them.")
	return nil
}

func (ui *MenuUI) config() (*config.Config, error) {
	return config.LoadIfPresent(ui.configPath)
}

// prompt reads one line; empty input returns the default.
func (ui *MenuUI) prompt(label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := ui.reader.ReadString('\n')
	if err != nil {
		return def
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func (ui *MenuUI) confirm(label string) bool {
	answer := ui.prompt(label+" (y/N)", "n")
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
}

func (ui *MenuUI) waitForEnter() {
	fmt.Print("\nPress Enter to continue...")
	_, _ = ui.reader.ReadString('\n')
}
