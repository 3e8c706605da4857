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
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sioux/hsds-agent/internal/core"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload one file now",
	Long: `Runs the upload pipeline once for a single file, in the foreground.

The file is skipped when its domain already exists on the server unless
--force is given, in which case the domain is overwritten.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if code := runUpload(args[0], force); code != 0 {
			os.Exit(code)
		}
	},
}

// runUpload returns the process exit code so deferred cleanup runs before
// the caller exits.
func runUpload(arg string, force bool) int {
	cfg, _ := loadConfig()
	logger := cliLogger(cfg)

	path, err := filepath.Abs(arg)
	if err != nil {
		fmt.Printf("Invalid path: %v\n", err)
		return 1
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		fmt.Printf("Not a file: %s\n", path)
		return 1
	}
	if !strings.HasSuffix(strings.ToLower(path), strings.ToLower(cfg.Suffix)) {
		fmt.Printf("Note: %s does not end in %s, the watcher would ignore it.\n", filepath.Base(path), cfg.Suffix)
	}

	var recorder core.Recorder
	if ledger, err := openLedger(cfg); err == nil {
		defer ledger.Close()
		recorder = ledger
	} else {
		logger.Warn("upload history disabled", "err", err)
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("Uploading %s (%s)...\n", filepath.Base(path), humanize.Bytes(uint64(info.Size())))
	o := core.NewPipeline(newClient(cfg, logger), recorder, logger).Process(ctx, path, force)

	switch o.Status {
	case core.StatusSkippedExists:
		fmt.Printf("Already on server as %s, nothing to do. Use --force to overwrite.\n", o.Domain)
	case core.StatusFailed:
		fmt.Printf("❌ Upload failed after %d attempt(s): %v\n", o.Attempts, o.Err)
		return 1
	default:
		fmt.Printf("✅ %s -> %s (%s, %s)\n", filepath.Base(path), o.Domain, o.Status, o.Finished.Sub(o.Started).Round(time.Millisecond))
	}
	return 0
}

func init() {
	uploadCmd.Flags().Bool("force", false, "Upload even if the domain already exists")
	rootCmd.AddCommand(uploadCmd)
}
