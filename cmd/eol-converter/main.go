package main

// Build-time variables 'version', 'commit', and 'date' are declared in
// root.go and populated via -ldflags.

// main is the entry point for the eol-converter application. Execute sets up
// and runs the root Cobra command, which handles flag parsing, configuration
// loading, signal-aware context setup, and the conversion run itself.
func main() {
	Execute()
}
