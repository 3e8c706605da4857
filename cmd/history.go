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
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sioux/hsds-agent/internal/core"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent upload outcomes",
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("path")
		limit, _ := cmd.Flags().GetInt("limit")
		cfg, _ := loadConfig()

		ledger, err := openLedger(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open history: %v\n", err)
			os.Exit(1)
		}
		defer ledger.Close()

		ctx := context.Background()
		entries, err := ledger.Recent(ctx, path, limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			ledger.Close()
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Println("No uploads recorded.")
			return
		}

		fmt.Printf("%-14s %-22s %-3s %s\n", "WHEN", "STATUS", "TRY", "FILE")
		fmt.Println("--------------------------------------------------------------------------------")
		for _, e := range entries {
			fmt.Printf("%-14s %-22s %-3d %s\n", humanize.Time(e.Finished), e.Status, e.Attempts, e.Path)
			if e.Error != "" {
				fmt.Printf("%-14s %s\n", "", e.Error)
			}
		}

		counts, err := ledger.Counts(ctx)
		if err != nil {
			return
		}
		statuses := make([]string, 0, len(counts))
		for s := range counts {
			statuses = append(statuses, string(s))
		}
		sort.Strings(statuses)
		fmt.Println()
		for _, s := range statuses {
			fmt.Printf("%s: %s\n", s, humanize.Comma(int64(counts[core.Status(s)])))
		}
	},
}

func init() {
	historyCmd.Flags().StringP("path", "p", "", "Only show entries for this file")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries")
	rootCmd.AddCommand(historyCmd)
}
