package main

import (
	"github.com/photofx/photofx/internal/cmd"
	"github.com/photofx/photofx/internal/server/handlers"
)

// Set via ldflags, e.g.
// go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2026-01-15" ./cmd/photofx
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		// Commands log their own context; this only picks the exit code.
		cmd.ExitForError("Command execution failed", err)
	}
}
