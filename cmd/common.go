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

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/BitCraftToolBox/automata/src/exporter"
)

func exportSummary(artifacts []exporter.Artifact) *uitable.Table {
	table := uitable.New()
	headerfmt := color.New(color.FgGreen, color.Underline).SprintFunc()

	table.AddRow(headerfmt("TABLE"), headerfmt("ROWS"), headerfmt("SIZE"), headerfmt("SORTED BY"), headerfmt("LOCATION"))
	for _, a := range artifacts {
		table.AddRow(a.Table, humanize.Comma(int64(a.Rows)), humanize.Bytes(uint64(a.Bytes)), lo.Ternary(a.SortKey == "", "-", a.SortKey), a.Location)
	}
	totalRows := lo.SumBy(artifacts, func(a exporter.Artifact) int { return a.Rows })
	totalBytes := lo.SumBy(artifacts, func(a exporter.Artifact) int { return a.Bytes })
	table.AddRow("", "", "", "", "")
	table.AddRow("TOTAL", humanize.Comma(int64(totalRows)), humanize.Bytes(uint64(totalBytes)), "", "")
	return table
}

func printExportSummary(artifacts []exporter.Artifact) {
	table := exportSummary(artifacts)
	fmt.Print("\n")
	fmt.Println(table)
	fmt.Print("\n")
	log.Infof("export summary:\n%s", table)
}

var (
	successColor = color.New(color.FgGreen)
	noticeColor  = color.New(color.FgYellow)
)

func printStatus(c *color.Color, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Info(msg)
	c.Println(msg)
}
