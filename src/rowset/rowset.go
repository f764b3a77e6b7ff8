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

package rowset

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/BitCraftToolBox/automata/src/sats"
)

// keys tried, in order, when ordering rows for JSON output
var SortKeyPriority = []string{"id", "item_id", "building_id", "name", "cargo_id", "type_id"}

// RowSet is a read-only snapshot of one table's cached rows.
type RowSet struct {
	Name      string
	Type      sats.AlgebraicType
	Typespace *sats.Typespace
	Rows      []sats.ProductValue
}

// Source hands out row snapshots by cache key.
type Source interface {
	RowsFor(key string) (RowSet, error)
}

type MissingTableError struct {
	Key string
}

func (e *MissingTableError) Error() string {
	return fmt.Sprintf("no cached table for accessor %q", e.Key)
}

// SortForExport returns a copy of the rows ordered by the first priority key the row
// type has, along with that key. Without an applicable key of scalar values the
// original order is kept and the key is empty.
func SortForExport(rs RowSet) ([]sats.ProductValue, string, error) {
	rows := slices.Clone(rs.Rows)
	if len(rows) == 0 {
		return rows, "", nil
	}
	rowType, err := rs.Typespace.Resolve(rs.Type)
	if err != nil {
		return nil, "", fmt.Errorf("row type of %s: %w", rs.Name, err)
	}

	key, idx := "", -1
	for _, k := range SortKeyPriority {
		if i := rowType.ElementIndex(k); i >= 0 && i < len(rows[0]) {
			key, idx = k, i
			break
		}
	}
	if idx < 0 {
		return rows, "", nil
	}

	sortable := true
	slices.SortStableFunc(rows, func(a, b sats.ProductValue) int {
		c, ok := sats.Compare(a[idx], b[idx])
		if !ok {
			sortable = false
		}
		return c
	})
	if !sortable {
		return slices.Clone(rs.Rows), "", nil
	}
	return rows, key, nil
}
