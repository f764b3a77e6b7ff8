/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/BitCraftToolBox/automata/src/config"
	"github.com/BitCraftToolBox/automata/src/exporter"
	"github.com/BitCraftToolBox/automata/src/lockfile"
	"github.com/BitCraftToolBox/automata/src/orchestrator"
	"github.com/BitCraftToolBox/automata/src/pbreporter"
	"github.com/BitCraftToolBox/automata/src/utils"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a snapshot of the module's public descriptor tables",
	Long: `Fetches the module schema, subscribes to every eligible table, waits for the initial sync
and writes one artifact per table to the output directory or bucket.

Exit code is 0 on success or when the run ended cleanly without data, 1 on any failure.`,

	Run: func(cmd *cobra.Command, args []string) {
		cfg := buildConfig()
		if err := cfg.Validate(); err != nil {
			utils.ErrExit("invalid configuration:\n%v", err)
		}
		exportSnapshot(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	registerCommonFlags(exportCmd)

	exportCmd.Flags().StringVar(&outputDir, "output-dir", "",
		fmt.Sprintf("local directory, s3://bucket/prefix, gs://bucket/prefix or Azure container URL (env DATA_DIR) (default %q)",
			config.DEFAULT_DATA_DIR+"/<format>"))

	exportCmd.Flags().StringVar(&format, "format", string(exporter.FORMAT_JSON),
		fmt.Sprintf("artifact format: %v", exporter.SupportedFormats))

	exportCmd.Flags().StringVar(&ciOutput, "ci-output", "",
		"file receiving an updated_data=true line after a successful export (env GITHUB_OUTPUT)")

	exportCmd.Flags().BoolVar(&disablePb, "disable-pb", false,
		"true - to disable progress bar during data export (default false)")
}

func exportSnapshot(ctx context.Context, cfg config.Config) {
	log.Infof("export config: %s", cfg)
	location := cfg.ResolvedOutputDir()
	if !utils.IsRemoteLocation(location) {
		lockOutputDir(location)
	}

	progress := pbreporter.NewProgress(cfg.DisablePb)
	result := orchestrator.Run(ctx, cfg, orchestrator.Deps{Progress: progress})
	log.Infof("export finished: outcome=%s artifacts=%d", result.Outcome, len(result.Artifacts))

	switch result.Outcome {
	case orchestrator.OutcomeSuccess:
		printExportSummary(result.Artifacts)
		printStatus(successColor, "exported %d tables to %s", len(result.Artifacts), location)
	case orchestrator.OutcomeClean:
		printStatus(noticeColor, "no data was exported: the run ended without error")
	default:
		if len(result.Artifacts) > 0 {
			printExportSummary(result.Artifacts)
		}
		utils.ErrExit("export failed: %v", result.Err)
	}
	utils.Exit(result.ExitCode())
}

func lockOutputDir(dir string) {
	if err := utils.CreateDirIfNotExists(dir); err != nil {
		utils.ErrExit("%v", err)
	}
	lock, err := lockfile.NewLockfile(dir)
	if err != nil {
		utils.ErrExit("%v", err)
	}
	if err := lock.Lock(); err != nil {
		utils.ErrExit("Another instance of automata may be running: %v", err)
	}
	atexit.Register(func() {
		if err := lock.Unlock(); err != nil {
			log.Warnf("%v", err)
		}
	})
}
