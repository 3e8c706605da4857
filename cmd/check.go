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
	"time"

	"github.com/spf13/cobra"

	"github.com/sioux/hsds-agent/internal/hsds"
	"github.com/sioux/hsds-agent/internal/logging"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the external tools and the server connection",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("⚠️  Config: %v\n", err)
		}

		healthy := true
		for _, st := range hsds.CheckTools(cfg.Tools) {
			mark := "✅"
			if !st.Available {
				mark = "❌"
				healthy = false
			}
			fmt.Printf("%s %-7s %-10s %s\n", mark, st.Name, st.Command, st.Detail)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := hsds.NewPinger(cfg.Connection, 0, logging.Discard()).Ping(ctx); err != nil {
			fmt.Printf("❌ server  %s\n", err)
			healthy = false
		} else {
			fmt.Printf("✅ server  %s\n", cfg.Connection.Endpoint)
		}

		if !healthy {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
