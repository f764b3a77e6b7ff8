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

// Package exporter serializes the synced row sets and writes one artifact per table.
package exporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/BitCraftToolBox/automata/src/classifier"
	"github.com/BitCraftToolBox/automata/src/datastore"
	"github.com/BitCraftToolBox/automata/src/errs"
	"github.com/BitCraftToolBox/automata/src/pbreporter"
	"github.com/BitCraftToolBox/automata/src/rowset"
	"github.com/BitCraftToolBox/automata/src/sats"
)

type Format string

const (
	FORMAT_JSON  Format = "json"
	FORMAT_BSATN Format = "bsatn"
)

var SupportedFormats = []Format{FORMAT_JSON, FORMAT_BSATN}

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FORMAT_JSON:
		return FORMAT_JSON, nil
	case FORMAT_BSATN:
		return FORMAT_BSATN, nil
	}
	return "", fmt.Errorf("unsupported export format %q, expected one of %v", s, SupportedFormats)
}

func (f Format) Extension() string {
	return "." + string(f)
}

// Artifact describes one written table.
type Artifact struct {
	Table    string
	Location string
	Rows     int
	Bytes    int
	// empty when rows were written in cache order
	SortKey string
}

type Exporter struct {
	store    datastore.Datastore
	format   Format
	progress *pbreporter.Progress
}

// New returns an exporter writing format artifacts to store. progress may be nil.
func New(store datastore.Datastore, format Format, progress *pbreporter.Progress) *Exporter {
	return &Exporter{store: store, format: format, progress: progress}
}

// Export writes the candidates one at a time, in order. The first failure stops the
// export; artifacts written before it are left in place.
func (e *Exporter) Export(ctx context.Context, candidates []classifier.ExportCandidate, source rowset.Source) ([]Artifact, error) {
	start := time.Now()
	artifacts := make([]Artifact, 0, len(candidates))
	for _, candidate := range candidates {
		artifact, err := e.exportTable(ctx, candidate, source)
		if err != nil {
			return artifacts, err
		}
		artifacts = append(artifacts, artifact)
	}
	log.Infof("exported %d tables in %s", len(artifacts), time.Since(start).Round(time.Millisecond))
	return artifacts, nil
}

func (e *Exporter) exportTable(ctx context.Context, candidate classifier.ExportCandidate, source rowset.Source) (Artifact, error) {
	table := candidate.SourceName
	rs, err := source.RowsFor(candidate.OutputKey)
	if err != nil {
		return Artifact{}, errs.NewExportError(table, errs.READ_ROWS_STEP, err)
	}
	pb := e.progress.NewExportPB(table)
	pb.SetTotalRowCount(int64(len(rs.Rows)), false)

	data, sortKey, err := e.encode(rs)
	if err != nil {
		pb.Abort()
		return Artifact{}, errs.NewExportError(table, errs.ENCODE_ROWS_STEP, err)
	}

	name := table + e.format.Extension()
	err = e.store.WriteFile(ctx, name, data)
	if err != nil {
		pb.Abort()
		return Artifact{}, errs.NewExportError(table, errs.WRITE_FILE_STEP, err)
	}
	pb.SetExportedRowCount(int64(len(rs.Rows)))
	pb.SetTotalRowCount(-1, true)

	location := e.store.Location(name)
	log.Infof("exported %d rows of %q to %s (%s, sort key %q)",
		len(rs.Rows), table, location, humanize.Bytes(uint64(len(data))), sortKey)
	return Artifact{
		Table:    table,
		Location: location,
		Rows:     len(rs.Rows),
		Bytes:    len(data),
		SortKey:  sortKey,
	}, nil
}

func (e *Exporter) encode(rs rowset.RowSet) ([]byte, string, error) {
	switch e.format {
	case FORMAT_BSATN:
		// positional format, rows stay in cache order
		data, err := sats.EncodeRows(rs.Rows, rs.Type, rs.Typespace)
		return data, "", err
	case FORMAT_JSON:
		rows, sortKey, err := rowset.SortForExport(rs)
		if err != nil {
			return nil, "", err
		}
		data, err := sats.MarshalRowsJSON(rows, rs.Type, rs.Typespace)
		return data, sortKey, err
	}
	return nil, "", fmt.Errorf("unsupported export format %q", e.format)
}
