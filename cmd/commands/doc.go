// Package commands defines the ghostwriter CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - serve      Run the HTTP API
//   - generate   Generate text with Gemini and check it against the web
//   - check      Check typed text or a file against the web
//   - extract    Print the text extracted from a file
//
// Configuration comes from the environment and the optional YAML file named
// by --config or CONFIG_FILE.
package commands
