// Package commands wires the CLI surface: flag parsing, XDG default
// paths, and one file per subcommand.
package commands

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/colonyops/duetoday/internal/core/config"
	"github.com/colonyops/duetoday/internal/duetoday"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// App bundles the services built in the Before hook
	App *duetoday.App
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "duetoday", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "duetoday")
}

// DefaultLogFile returns the default log file path using the system's state directory.
// On macOS: ~/Library/Logs/duetoday/duetoday.log
// On Linux: $XDG_STATE_HOME/duetoday/duetoday.log (defaults to ~/.local/state/duetoday/duetoday.log)
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome != "" {
		return filepath.Join(stateHome, "duetoday", "duetoday.log")
	}

	home, _ := os.UserHomeDir()

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "duetoday", "duetoday.log")
	}

	return filepath.Join(home, ".local", "state", "duetoday", "duetoday.log")
}
