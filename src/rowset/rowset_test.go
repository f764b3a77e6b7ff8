//go:build unit

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BitCraftToolBox/automata/src/sats"
)

func TestSortByID(t *testing.T) {
	rs := RowSet{
		Name: "item_desc",
		Type: sats.Product(sats.ProductElement{Name: "id", Type: sats.Primitive(sats.KindU64)}),
		Rows: []sats.ProductValue{{uint64(3)}, {uint64(1)}, {uint64(2)}},
	}
	rows, key, err := SortForExport(rs)
	require.NoError(t, err)
	assert.Equal(t, "id", key)
	assert.Equal(t, []sats.ProductValue{{uint64(1)}, {uint64(2)}, {uint64(3)}}, rows)
	// snapshot is not modified
	assert.Equal(t, []sats.ProductValue{{uint64(3)}, {uint64(1)}, {uint64(2)}}, rs.Rows)
}

func TestSortKeyPriority(t *testing.T) {
	ts := &sats.Typespace{Types: []sats.AlgebraicType{
		sats.Product(
			sats.ProductElement{Name: "name", Type: sats.Primitive(sats.KindString)},
			sats.ProductElement{Name: "building_id", Type: sats.Primitive(sats.KindI32)},
		),
	}}
	rs := RowSet{
		Name:      "building_desc",
		Type:      sats.Ref(0),
		Typespace: ts,
		Rows: []sats.ProductValue{
			{"b", int64(2)},
			{"a", int64(2)},
			{"c", int64(-5)},
		},
	}
	rows, key, err := SortForExport(rs)
	require.NoError(t, err)
	assert.Equal(t, "building_id", key)
	// stable for equal keys
	assert.Equal(t, []sats.ProductValue{{"c", int64(-5)}, {"b", int64(2)}, {"a", int64(2)}}, rows)
}

func TestSortWithoutPriorityKeyKeepsOrder(t *testing.T) {
	rs := RowSet{
		Name: "claim_tile_cost",
		Type: sats.Product(sats.ProductElement{Name: "tile_count", Type: sats.Primitive(sats.KindI32)}),
		Rows: []sats.ProductValue{{int64(9)}, {int64(1)}, {int64(5)}},
	}
	rows, key, err := SortForExport(rs)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Equal(t, rs.Rows, rows)
}

func TestSortNonScalarKeyKeepsOrder(t *testing.T) {
	rs := RowSet{
		Name: "cargo_desc",
		Type: sats.Product(sats.ProductElement{Name: "id", Type: sats.Option(sats.Primitive(sats.KindI32))}),
		Rows: []sats.ProductValue{
			{sats.SumValue{Tag: 0, Value: int64(2)}},
			{sats.SumValue{Tag: 0, Value: int64(1)}},
		},
	}
	rows, key, err := SortForExport(rs)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Equal(t, rs.Rows, rows)
}

func TestSortEmpty(t *testing.T) {
	rows, key, err := SortForExport(RowSet{Name: "empty_desc", Type: sats.Ref(4)})
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, rows)
}

func TestSortBadType(t *testing.T) {
	_, _, err := SortForExport(RowSet{Name: "broken_desc", Type: sats.Ref(4), Rows: []sats.ProductValue{{}}})
	assert.ErrorContains(t, err, "broken_desc")
}
