// Copyright 2026 CleverData
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sioux/hsds-agent/internal/config"
	"github.com/sioux/hsds-agent/internal/db"
	"github.com/sioux/hsds-agent/internal/hsds"
	"github.com/sioux/hsds-agent/internal/logging"
)

var cfgFile string
var debugMode bool
var Version = "0.1.0" // Default version

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "hsagent",
	Short:   "HSDS upload agent",
	Version: Version,
	Long: `The HSDS agent watches local folders for .strc files and uploads each
finished file to the HSDS data service exactly once.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yaml next to the executable, in %PROGRAMDATA%\\HSDSAgent or in $HOME)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Next to the executable
		exePath, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(exePath))
		}

		// 2. ProgramData, where the Windows service looks
		programData := os.Getenv("PROGRAMDATA")
		if programData != "" {
			viper.AddConfigPath(filepath.Join(programData, "HSDSAgent"))
		}

		// 3. Home directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}

		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("HSAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		// Lock the file in so viper.WriteConfig() updates the one we read.
		viper.SetConfigFile(viper.ConfigFileUsed())
	}
}

// loadConfig decodes the current viper state. The returned config is always
// usable; a non-nil error describes what could not be read.
func loadConfig() (config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if debugMode {
		cfg.Debug = true
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(defaultStateDir(), "state.db")
	}
	return cfg, err
}

// defaultStateDir holds the ledger and the instance lock.
// Windows: %PROGRAMDATA%\HSDSAgent, Linux: /var/lib/hsds-agent, falling back
// to the user config dir when that is not writable.
func defaultStateDir() string {
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			return filepath.Join(pd, "HSDSAgent")
		}
	}
	dir := "/var/lib/hsds-agent"
	if err := os.MkdirAll(dir, 0755); err == nil {
		return dir
	}
	if ucd, err := os.UserConfigDir(); err == nil {
		return filepath.Join(ucd, "hsds-agent")
	}
	return filepath.Join(os.TempDir(), "hsds-agent")
}

// cliLogger is the console-only logger used by one-shot commands.
func cliLogger(cfg config.Config) *slog.Logger {
	logger, _ := logging.New(logging.Options{Level: cfg.LogLevel, Console: true})
	return logger
}

func newClient(cfg config.Config, logger *slog.Logger) *hsds.Client {
	return hsds.NewClient(cfg.Connection, cfg.Tools, cfg.Suffix, nil, logger)
}

// openLedger opens the upload history named by cfg.
func openLedger(cfg config.Config) (*db.Ledger, error) {
	return db.Open(cfg.DBPath)
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// saveConfig writes viper's state back to the config file in use, creating
// one in the standard location when none exists yet.
func saveConfig() error {
	if viper.ConfigFileUsed() != "" {
		if err := viper.WriteConfig(); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
		return nil
	}

	targetDir := ""
	if programData := os.Getenv("PROGRAMDATA"); programData != "" {
		targetDir = filepath.Join(programData, "HSDSAgent")
	} else if home, err := os.UserHomeDir(); err == nil {
		targetDir = home
	} else {
		exePath, _ := os.Executable()
		targetDir = filepath.Dir(exePath)
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(targetDir, "config.yaml")
	viper.SetConfigFile(path)
	if err := viper.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	fmt.Printf("Created config file: %s\n", path)
	return nil
}
