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
package pbreporter

import (
	"io"
	"os"

	"github.com/vbauerster/mpb/v8"
	"golang.org/x/term"
)

type ExportProgressReporter interface { // Bare minimum required to simulate mpb.bar for the export of one table
	SetTotalRowCount(totalRowCount int64, triggerComplete bool)
	SetExportedRowCount(exportedRowCount int64)
	IsComplete() bool
	// Abort releases a bar that will never complete, so Progress.Wait can return.
	Abort()
}

// Progress hands out one reporter per exported table.
type Progress struct {
	container *mpb.Progress
}

// NewProgress returns a progress container. Bars are only drawn when enabled and
// stdout is a terminal.
func NewProgress(disablePb bool) *Progress {
	if disablePb || !term.IsTerminal(int(os.Stdout.Fd())) {
		return &Progress{}
	}
	return NewProgressWithOutput(os.Stdout)
}

// NewProgressWithOutput returns an enabled Progress rendering to w.
func NewProgressWithOutput(w io.Writer) *Progress {
	return &Progress{container: mpb.New(mpb.WithOutput(w))}
}

func (p *Progress) Enabled() bool {
	return p != nil && p.container != nil
}

func (p *Progress) NewExportPB(tableName string) ExportProgressReporter {
	if !p.Enabled() {
		return newDisablePBReporter()
	}
	return newEnablePBReporter(p.container, tableName)
}

// Wait flushes and stops the bars.
func (p *Progress) Wait() {
	if p.Enabled() {
		p.container.Wait()
	}
}
