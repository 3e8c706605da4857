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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sioux/hsds-agent/internal/config"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage the watched folders",
}

var watchAddCmd = &cobra.Command{
	Use:   "add [dir]",
	Short: "Add a folder to watch",
	Long: `Adds a local folder to the watch list (the watchdog_dirs setting).

Only the folder itself is watched, not its subfolders. Files ending in the
configured suffix are uploaded once they have been quiet for the debounce
interval. Files already present are uploaded at startup if their size and
modification time do not change during the settle window.`,
	Example: `  hsagent watch add "D:\Acquisitions"
  hsagent watch add /data/runs --force`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			fmt.Printf("Invalid path: %v\n", err)
			return
		}

		if !force {
			info, err := os.Stat(absPath)
			if err != nil {
				fmt.Printf("❌ Cannot access %s: %v\n", absPath, err)
				fmt.Println("Use --force to add anyway.")
				return
			}
			if !info.IsDir() {
				fmt.Printf("❌ %s is not a directory.\n", absPath)
				return
			}
		}

		dirs, ok := currentWatchDirs()
		if !ok {
			return
		}
		for _, d := range dirs {
			if d == absPath {
				fmt.Printf("Error: '%s' is already watched.\n", absPath)
				return
			}
		}

		viper.Set(config.KeyWatchDirs, append(dirs, absPath))
		if err := saveConfig(); err != nil {
			fmt.Println(err)
			return
		}

		fmt.Printf("Folder added. Watching: %s\n", absPath)
		fmt.Println("\n>>> IMPORTANT: Run 'hsagent restart' to apply these changes to the running service.")
	},
}

var watchListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List watched folders",
	Run: func(cmd *cobra.Command, args []string) {
		dirs, ok := currentWatchDirs()
		if !ok {
			return
		}
		if len(dirs) == 0 {
			fmt.Println("No folders configured.")
			return
		}

		fmt.Printf("%-8s %s\n", "STATE", "PATH")
		fmt.Println("--------------------------------------------------------------------------------")
		for _, d := range dirs {
			state := "ok"
			if info, err := os.Stat(d); err != nil {
				state = "missing"
			} else if !info.IsDir() {
				state = "not-dir"
			}
			fmt.Printf("%-8s %s\n", state, d)
		}
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:     "remove [dir]",
	Aliases: []string{"rm", "del"},
	Short:   "Stop watching a folder",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target := args[0]
		absTarget, _ := filepath.Abs(target)

		dirs, ok := currentWatchDirs()
		if !ok {
			return
		}

		found := false
		var updated []string
		for _, d := range dirs {
			if d == target || d == absTarget {
				found = true
				continue
			}
			updated = append(updated, d)
		}

		if !found {
			fmt.Printf("Error: '%s' is not watched.\n", target)
			return
		}

		if updated == nil {
			updated = []string{}
		}
		viper.Set(config.KeyWatchDirs, updated)
		if err := saveConfig(); err != nil {
			fmt.Println(err)
			return
		}

		fmt.Printf("Folder '%s' removed.\n", target)
		fmt.Println("\n>>> IMPORTANT: Run 'hsagent restart' to apply these changes to the running service.")
	},
}

// currentWatchDirs reports false, after printing why, when the configured
// list cannot be edited safely.
func currentWatchDirs() ([]string, bool) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Printf("Fix '%s' in %s first.\n", config.KeyWatchDirs, viper.ConfigFileUsed())
		return nil, false
	}
	return cfg.WatchDirs, true
}

func init() {
	watchAddCmd.Flags().Bool("force", false, "Add the folder even if it does not exist yet")

	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	rootCmd.AddCommand(watchCmd)
}
