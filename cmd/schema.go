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
	"fmt"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/BitCraftToolBox/automata/src/classifier"
	"github.com/BitCraftToolBox/automata/src/orchestrator"
	"github.com/BitCraftToolBox/automata/src/schema"
	"github.com/BitCraftToolBox/automata/src/utils"
)

var showAllTables bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "List the tables an export would snapshot, without connecting",

	Run: func(cmd *cobra.Command, args []string) {
		cfg := buildConfig()
		if err := cfg.Validate(); err != nil {
			utils.ErrExit("invalid configuration:\n%v", err)
		}
		s, candidates, err := orchestrator.Classify(cmd.Context(), cfg, orchestrator.SchemaClient(cfg))
		if err != nil {
			utils.ErrExit("%v", err)
		}
		if showAllTables {
			fmt.Println(tablesReport(s.Tables, cfg.ClassifierOptions()))
		} else {
			fmt.Println(candidatesReport(candidates))
		}
		printStatus(successColor, "%d of %d tables of %s are eligible for export", len(candidates), len(s.Tables), cfg.Module)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	registerCommonFlags(schemaCmd)

	schemaCmd.Flags().BoolVar(&showAllTables, "all", false,
		"list every table of the schema with its access and eligibility")
}

func candidatesReport(candidates []classifier.ExportCandidate) *uitable.Table {
	table := uitable.New()
	headerfmt := color.New(color.FgGreen, color.Underline).SprintFunc()
	table.AddRow(headerfmt("TABLE"), headerfmt("ACCESSOR"), headerfmt("QUERY"))
	for _, c := range candidates {
		table.AddRow(c.SourceName, c.OutputKey, c.Query)
	}
	return table
}

func tablesReport(tables []schema.Table, opts classifier.Options) *uitable.Table {
	table := uitable.New()
	headerfmt := color.New(color.FgGreen, color.Underline).SprintFunc()
	table.AddRow(headerfmt("TABLE"), headerfmt("ACCESS"), headerfmt("EXPORTED"))
	for _, t := range tables {
		access := lo.Ternary(t.IsPrivate(), schema.ACCESS_PRIVATE, schema.ACCESS_PUBLIC)
		exported := lo.Ternary(classifier.IsEligible(t, opts), color.GreenString("yes"), color.RedString("no"))
		table.AddRow(t.Name, access, exported)
	}
	return table
}
