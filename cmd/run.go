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
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sioux/hsds-agent/internal/config"
	"github.com/sioux/hsds-agent/internal/core"
	"github.com/sioux/hsds-agent/internal/hsds"
	"github.com/sioux/hsds-agent/internal/logging"
)

// ErrAlreadyRunning is returned when another agent holds the instance lock.
var ErrAlreadyRunning = errors.New("another agent instance is already running")

// RunAgent is the entry point for the long-running process. It returns once
// ctx is cancelled and the upload queue has drained. svcLogger is nil when
// running in the foreground.
func RunAgent(ctx context.Context, svcLogger service.Logger) error {
	cfg, cfgErr := loadConfig()
	if cfg.LogDir == "" && !service.Interactive() {
		// No console under a service manager.
		cfg.LogDir = filepath.Join(filepath.Dir(cfg.DBPath), "logs")
	}

	logger, closeLog := logging.New(logging.Options{
		Dir:     cfg.LogDir,
		Level:   cfg.LogLevel,
		Console: service.Interactive(),
	})
	defer closeLog()

	if cfgErr != nil {
		if errors.Is(cfgErr, config.ErrMalformedWatchDirs) {
			logger.Error("invalid watch list, no directories will be watched", "err", cfgErr)
		} else {
			logger.Error("configuration could not be read, using defaults", "err", cfgErr)
		}
	}
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Info("loaded configuration", "file", used)
	} else {
		logger.Warn("no configuration file found, using defaults")
	}

	lockPath := filepath.Join(filepath.Dir(cfg.DBPath), "hsagent.lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release instance lock", "err", err)
		}
	}()

	var recorder core.Recorder
	ledger, err := openLedger(cfg)
	if err != nil {
		logger.Warn("upload history disabled", "err", err)
	} else {
		defer ledger.Close()
		recorder = ledger
	}

	for _, st := range hsds.CheckTools(cfg.Tools) {
		if !st.Available {
			logger.Warn("external tool unavailable, affected steps will fail", "tool", st.Name, "detail", st.Detail)
		}
	}

	if svcLogger != nil {
		svcLogger.Infof("HSDS agent starting, endpoint %s", cfg.Connection.Endpoint)
	}
	logger.Info("HSDS agent starting",
		"version", Version,
		"endpoint", cfg.Connection.Endpoint,
		"root_prefix", cfg.Connection.RootPrefix,
		"dirs", cfg.WatchDirs,
		"lock", lockPath,
	)

	client := newClient(cfg, logger)
	pinger := hsds.NewPinger(cfg.Connection, cfg.PingInterval, logger)
	svc := core.NewService(cfg, client, recorder, logger, core.WithHeartbeat(pinger))
	svc.Run(ctx)

	if svcLogger != nil {
		svcLogger.Info("HSDS agent stopped")
	}
	return nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent in the foreground (Internal Use)",
	Long:  `Runs the watcher process directly. Usually invoked by the service manager.`,
	Run: func(cmd *cobra.Command, args []string) {
		if service.Interactive() {
			ctx, stop := signalContext()
			defer stop()
			fmt.Println("HSDS Agent starting, press Ctrl+C to stop...")
			if err := RunAgent(ctx, nil); err != nil {
				fmt.Fprintf(os.Stderr, "Agent failed: %v\n", err)
				stop()
				os.Exit(1)
			}
			return
		}

		// Under a service manager, s.Run() checks in with it and calls
		// program.Start/Stop.
		s, err := getService(viper.ConfigFileUsed())
		if err != nil {
			log.Fatalf("Failed to initialize service: %v", err)
		}
		if err := s.Run(); err != nil {
			log.Fatalf("Service exited: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
