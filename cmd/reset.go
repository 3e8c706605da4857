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
	"os"

	"github.com/spf13/cobra"
)

var resetPath string

var resetCmd = &cobra.Command{
	Use:   "reset-history",
	Short: "Clear the upload history database",
	Long: `Clears the local SQLite database that records upload outcomes. The history
is informational only: whether a file is uploaded is always decided by asking
the server, so clearing it never causes re-uploads.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig()
		ledger, err := openLedger(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open history: %v\n", err)
			os.Exit(1)
		}
		defer ledger.Close()

		if resetPath != "" {
			fmt.Printf("Clearing history for: %s\n", resetPath)
		} else {
			fmt.Println("⚠️  Clearing ENTIRE upload history.")
		}

		n, err := ledger.Reset(context.Background(), resetPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			ledger.Close()
			os.Exit(1)
		}
		fmt.Printf("History reset complete, %d entries removed.\n", n)
	},
}

func init() {
	resetCmd.Flags().StringVarP(&resetPath, "path", "p", "", "Specific file path to clear from history")
	rootCmd.AddCommand(resetCmd)
}
