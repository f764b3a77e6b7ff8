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
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/BitCraftToolBox/automata/src/utils"
)

var (
	cfgFile  string
	envFiles []string
)

var rootCmd = &cobra.Command{
	Use:   "automata",
	Short: "A one-shot snapshot exporter for the static reference tables of a SpacetimeDB module",
	Long: `A one-shot snapshot exporter for SpacetimeDB modules.
It reads the module schema, subscribes to every public descriptor table, waits for the initial sync,
writes one JSON or BSATN file per table and disconnects.`,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return
		}
		overrides, err := initConfig(cmd)
		if err != nil {
			utils.ErrExit("ERROR: %v", err)
		}
		InitLogging(logDir, logLevel, cmd.Name())
		for _, o := range overrides {
			log.Infof("flag %q set from %s", o.FlagName, o.Source)
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		utils.ErrExit("%v", err)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "",
		"path of the config file (default $AUTOMATA_CONFIG_FILE or ~/automata-config.yaml)")

	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env.local"},
		"dotenv files read for variables missing from the environment (first file wins)")
}
