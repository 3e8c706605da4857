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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sioux/hsds-agent/internal/config"
	"github.com/sioux/hsds-agent/internal/hsds"
	"github.com/sioux/hsds-agent/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change connection settings",
}

var setEndpointCmd = &cobra.Command{
	Use:     "set-endpoint [host]",
	Short:   "Point the agent at an HSDS server",
	Long:    `Sets the HSDS endpoint. A bare host or IP becomes http://<host>:5101; a full URL is kept as given.`,
	Example: `  hsagent config set-endpoint 192.168.1.20`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		endpoint := config.EndpointForHost(args[0])

		if !force {
			cfg, _ := loadConfig()
			conn := cfg.Connection
			conn.Endpoint = endpoint

			fmt.Printf("Verifying connection to %s...\n", endpoint)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := hsds.NewPinger(conn, 0, logging.Discard()).Ping(ctx); err != nil {
				fmt.Printf("❌ Connection Failed: %v\n", err)
				fmt.Println("Use --force to save anyway.")
				return
			}
			fmt.Println("✅ Connection Verified!")
		}

		viper.Set("endpoint", endpoint)
		if err := saveConfig(); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("Endpoint set to %s\n", endpoint)
		fmt.Println("\n>>> IMPORTANT: Run 'hsagent restart' to apply these changes to the running service.")
	},
}

var getEndpointCmd = &cobra.Command{
	Use:   "get-endpoint",
	Short: "Print the configured HSDS endpoint",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig()
		fmt.Println(cfg.Connection.Endpoint)
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		file := viper.ConfigFileUsed()
		if file == "" {
			file = "(none, defaults)"
		}

		fmt.Printf("Config file:    %s\n", file)
		fmt.Printf("Endpoint:       %s\n", cfg.Connection.Endpoint)
		fmt.Printf("User:           %s\n", cfg.Connection.Username)
		fmt.Printf("Root prefix:    %s\n", cfg.Connection.RootPrefix)
		fmt.Printf("Suffix:         %s\n", cfg.Suffix)
		fmt.Printf("Debounce:       %s\n", cfg.DebounceInterval)
		fmt.Printf("Settle window:  %s\n", cfg.SettleWindow)
		fmt.Printf("Ping interval:  %s\n", cfg.PingInterval)
		fmt.Printf("Tools:          %s, %s, %s\n", cfg.Tools.List, cfg.Tools.Load, cfg.Tools.Clear)
		fmt.Printf("History:        %s\n", cfg.DBPath)
		fmt.Printf("Watched:        %d folder(s)\n", len(cfg.WatchDirs))
		for _, d := range cfg.WatchDirs {
			fmt.Printf("  - %s\n", d)
		}
	},
}

func init() {
	setEndpointCmd.Flags().Bool("force", false, "Skip connection verification")

	configCmd.AddCommand(setEndpointCmd)
	configCmd.AddCommand(getEndpointCmd)
	configCmd.AddCommand(showConfigCmd)
	rootCmd.AddCommand(configCmd)
}
