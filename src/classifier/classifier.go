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

// Package classifier decides which schema tables are snapshotted and derives the
// subscription query and cache key for each of them.
package classifier

import (
	"fmt"
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"

	"github.com/BitCraftToolBox/automata/src/errs"
	"github.com/BitCraftToolBox/automata/src/sats"
	"github.com/BitCraftToolBox/automata/src/schema"
)

const DEFAULT_EXTRA_TABLE = "claim_tile_cost"

// descriptor tables: a "_desc" segment, at the end of the name or followed by any
// other segment. Version tails ("_v2") are ordinary segments, so "x_desc_v" matches
// just like "foo_desc_state" does.
var descriptorRegexp = regexp.MustCompile(`_desc(_|$)`)

var identifierRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Options struct {
	// static reference tables exported even though they are not descriptors
	ExtraTables mapset.Set[string]
}

func DefaultOptions() Options {
	return Options{ExtraTables: mapset.NewThreadUnsafeSet(DEFAULT_EXTRA_TABLE)}
}

type ExportCandidate struct {
	SourceName string
	OutputKey  string
	Query      string
	RowType    sats.AlgebraicType
}

// Classify returns the export candidates for tables, in schema order.
func Classify(tables []schema.Table, opts Options) ([]ExportCandidate, error) {
	eligible := lo.Filter(tables, func(t schema.Table, _ int) bool {
		return IsEligible(t, opts)
	})
	candidates := make([]ExportCandidate, 0, len(eligible))
	seen := make(map[string]string, len(eligible))
	for _, t := range eligible {
		key := AccessorName(t.Name)
		if other, ok := seen[key]; ok {
			return nil, errs.NewClassificationError(-1, "tables %q and %q both map to accessor %q", other, t.Name, key)
		}
		seen[key] = t.Name
		candidates = append(candidates, ExportCandidate{
			SourceName: t.Name,
			OutputKey:  key,
			Query:      Query(t.Name),
			RowType:    t.RowType(),
		})
	}
	return candidates, nil
}

// IsEligible applies the rules in order: private tables are never exported, then
// descriptor tables are, then "_state" tables are not, and anything else only when
// allow-listed.
//
// A name such as "foo_desc_state" is therefore included. Confirm against the live
// schema before depending on it.
func IsEligible(t schema.Table, opts Options) bool {
	switch {
	case t.IsPrivate():
		return false
	case descriptorRegexp.MatchString(t.Name):
		return true
	case strings.HasSuffix(t.Name, "_state"):
		return false
	}
	return opts.ExtraTables != nil && opts.ExtraTables.Contains(t.Name)
}

// AccessorName converts a snake_case table name to the camelCase name the client
// cache addresses it by, e.g. "item_desc_v2" -> "itemDescV2".
//
// Only the local cache uses these keys. They do not match generated SDK accessors
// for digits after an underscore or a leading underscore ("building_2_desc" gives
// "building2Desc", "_foo" gives "foo").
func AccessorName(name string) string {
	var sb strings.Builder
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && sb.Len() > 0 && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		sb.WriteByte(c)
	}
	return sb.String()
}

// IsIdentifier reports whether name is a lowercase snake_case table name.
func IsIdentifier(name string) bool {
	return identifierRegexp.MatchString(name)
}

func Query(table string) string {
	return fmt.Sprintf("SELECT * FROM %s;", table)
}

// Queries returns the subscription query strings of candidates.
func Queries(candidates []ExportCandidate) []string {
	return lo.Map(candidates, func(c ExportCandidate, _ int) string { return c.Query })
}
