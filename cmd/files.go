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

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:     "files",
	Aliases: []string{"ls-remote"},
	Short:   "List the data files already on the HSDS server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig()
		ctx, stop := signalContext()
		defer stop()

		names, err := newClient(cfg, cliLogger(cfg)).ListFiles(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list %s on %s: %v\n", cfg.Connection.RootPrefix, cfg.Connection.Endpoint, err)
			stop()
			os.Exit(1)
		}

		for _, name := range names {
			fmt.Println(name)
		}
		fmt.Fprintf(os.Stderr, "%d file(s) under %s\n", len(names), cfg.Connection.RootPrefix)
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
}
