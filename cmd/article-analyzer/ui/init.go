// Package ui provides terminal output helpers for the article-analyzer CLI.
package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	out     io.Writer = os.Stdout
	errOut  io.Writer = os.Stderr
	verbose bool
)

// Init applies the color and verbosity settings.
func Init(noColor, verboseOutput bool) {
	verbose = verboseOutput
	if noColor {
		color.NoColor = true
	}
}

// SetOutput redirects standard and error output.
func SetOutput(stdout, stderr io.Writer) {
	out = stdout
	errOut = stderr
}

// Verbose reports whether verbose output is enabled.
func Verbose() bool {
	return verbose
}
