package banner

import (
	"fmt"

	"github.com/alekspetrov/shipbot/internal/config"
	"github.com/alekspetrov/shipbot/internal/health"
)

// Logo is the ASCII art logo for Shipbot
const Logo = `
   ███████╗██╗  ██╗██╗██████╗ ██████╗  ██████╗ ████████╗
   ██╔════╝██║  ██║██║██╔══██╗██╔══██╗██╔═══██╗╚══██╔══╝
   ███████╗███████║██║██████╔╝██████╔╝██║   ██║   ██║
   ╚════██║██╔══██║██║██╔═══╝ ██╔══██╗██║   ██║   ██║
   ███████║██║  ██║██║██║     ██████╔╝╚██████╔╝   ██║
   ╚══════╝╚═╝  ╚═╝╚═╝╚═╝     ╚═════╝  ╚═════╝    ╚═╝
`

// Tagline is the project tagline
const Tagline = "ChatOps Triggers for CircleCI"

// Print prints the banner with tagline
func Print() {
	fmt.Print(Logo)
	fmt.Printf("   %s\n\n", Tagline)
}

// PrintWithVersion prints the banner with version info
func PrintWithVersion(version string) {
	fmt.Print(Logo)
	fmt.Printf("   %s\n", Tagline)
	fmt.Printf("   v%s\n\n", version)
}

// PrintCompact prints a compact single-line banner
func PrintCompact() {
	fmt.Println("🚀 Shipbot - ChatOps Triggers for CircleCI")
}

// StartupBanner prints the full startup banner
func StartupBanner(version, gateway string) {
	fmt.Print(Logo)
	fmt.Printf("   %s\n", Tagline)
	fmt.Println()
	fmt.Printf("   Version:  v%s\n", version)
	fmt.Printf("   Gateway:  %s\n", gateway)
	fmt.Println()
}

// StartupWithHealth prints the startup banner with config and surface status
func StartupWithHealth(version string, cfg *config.Config) {
	report := health.RunChecks(cfg)

	// Header
	fmt.Println()
	fmt.Printf("SHIPBOT v%s\n", version)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Surfaces in compact grid
	features := report.Features
	cols := 3
	colWidth := 14

	for i, f := range features {
		symbol := f.Status.Symbol()
		name := f.Name
		if f.Note != "" {
			name = f.Name + "*"
		}
		fmt.Printf("%s %-*s", symbol, colWidth-2, name)
		if (i+1)%cols == 0 || i == len(features)-1 {
			fmt.Println()
		}
	}

	// Notes for warnings
	hasNotes := false
	for _, f := range features {
		if f.Note != "" {
			if !hasNotes {
				fmt.Println()
				hasNotes = true
			}
			fmt.Printf("  * %s: %s\n", f.Name, f.Note)
		}
	}

	// Config errors with fix hints
	hasErrors := false
	for _, c := range report.Config {
		if c.Status == health.StatusError {
			if !hasErrors {
				fmt.Println()
				hasErrors = true
			}
			fmt.Printf("  ✗ %s: %s", c.Name, c.Message)
			if c.Fix != "" {
				fmt.Printf(" (%s)", c.Fix)
			}
			fmt.Println()
		}
	}

	// Schedules
	if report.Schedules > 0 {
		fmt.Println()
		fmt.Printf("Schedules: %d configured\n", report.Schedules)
	}

	fmt.Println()
}
