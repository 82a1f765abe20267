// Command mood runs the emotion analysis backend and its CLI.
//
// Usage:
//
//	mood [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve     - HTTP backend (/analyze-text, /analyze-audio, /multimodal-analysis, /mood-history)
//	analyze   - one-off analysis (text, audio, multi), local or --remote
//	history   - recent analyses, optional JSON export
//	config    - effective configuration
//	version   - version information
package main

import (
	"fmt"
	"os"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
