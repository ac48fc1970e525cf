// Package cmd holds the kong command tree: printing, offline preview, the
// control client and config scaffolding.
package cmd

// LogConfig is shared by every command.
type LogConfig struct {
	Level   string `help:"Log level (trace, debug, info, warn, error)." default:"info" env:"INKPAD_LOG_LEVEL"`
	File    string `help:"Also write logs to this file." env:"INKPAD_LOG_FILE"`
	RawFile string `help:"Write raw USB/IP wire traffic to this file."`
}

// CLI is the root of the command tree.
type CLI struct {
	Log        LogConfig `embed:"" prefix:"log-"`
	ConfigPath string    `name:"config" help:"Path to a config file (json, yaml or toml)." env:"INKPAD_CONFIG"`

	Print   Print         `cmd:"" help:"Print an image onto the host canvas through the virtual pad."`
	Preview Preview       `cmd:"" help:"Run the print sequence offline and report what it would draw."`
	Ctl     CtlCommand    `cmd:"" help:"Talk to a running inkpad's control API."`
	Config  ConfigCommand `cmd:"" help:"Configuration file utilities."`
	Version VersionCmd    `cmd:"" help:"Print the inkpad version."`
}
