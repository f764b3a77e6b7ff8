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

package sats

import (
	"math"
	"math/big"
	"runtime"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rarity = Sum(
	SumVariant{Name: "Common", Type: Product()},
	SumVariant{Name: "Rare", Type: Product()},
)

var shape = Sum(
	SumVariant{Name: "Circle", Type: Primitive(KindF32)},
	SumVariant{Name: "Label", Type: Primitive(KindString)},
)

// typespace[0] is the row type, typespace[1] the rarity enum
var testTypespace = &Typespace{Types: []AlgebraicType{
	Product(
		ProductElement{Name: "id", Type: Primitive(KindI32)},
		ProductElement{Name: "name", Type: Primitive(KindString)},
		ProductElement{Name: "tags", Type: Array(Primitive(KindU16))},
		ProductElement{Name: "rarity", Type: Ref(1)},
		ProductElement{Name: "weight", Type: Option(Primitive(KindF64))},
		ProductElement{Name: "shape", Type: shape},
		ProductElement{Name: "owner", Type: Product(ProductElement{Name: "__identity__", Type: Primitive(KindU256)})},
		ProductElement{Name: "balance", Type: Primitive(KindI128)},
		ProductElement{Name: "hidden", Type: Primitive(KindBool)},
	),
	rarity,
}}

func sampleRows() []ProductValue {
	return []ProductValue{
		{
			int64(-7), "Flint <Axe>", []any{uint64(1), uint64(65535)},
			SumValue{Tag: 1, Value: ProductValue{}},
			SumValue{Tag: 0, Value: 2.5},
			SumValue{Tag: 1, Value: "blade"},
			ProductValue{big.NewInt(255)},
			big.NewInt(-42),
			true,
		},
		{
			int64(3), "", []any{},
			SumValue{Tag: 0, Value: ProductValue{}},
			SumValue{Tag: 1, Value: ProductValue{}},
			SumValue{Tag: 0, Value: float64(float32(1.5))},
			ProductValue{new(big.Int).Lsh(big.NewInt(1), 200)},
			new(big.Int).Lsh(big.NewInt(1), 100),
			false,
		},
	}
}

var bigComparer = cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })

func TestParseTypespace(t *testing.T) {
	raw := `{"types":[
		{"Product":{"elements":[
			{"name":{"some":"id"},"algebraic_type":{"U64":[]}},
			{"name":{"some":"tiers"},"algebraic_type":{"Array":{"I32":[]}}},
			{"name":{"some":"kind"},"algebraic_type":{"Ref":1}},
			{"name":{"none":[]},"algebraic_type":{"String":[]}}
		]}},
		{"Sum":{"variants":[
			{"name":{"some":"some"},"algebraic_type":{"Bool":[]}},
			{"name":{"some":"none"},"algebraic_type":{"Product":{"elements":[]}}}
		]}}
	]}`
	var ts Typespace
	require.NoError(t, json.Unmarshal([]byte(raw), &ts))
	require.Len(t, ts.Types, 2)

	row := ts.Types[0]
	assert.Equal(t, KindProduct, row.Kind)
	assert.Equal(t, 0, row.ElementIndex("id"))
	assert.Equal(t, 2, row.ElementIndex("kind"))
	assert.Equal(t, -1, row.ElementIndex("missing"))
	assert.Equal(t, "", row.Elements[3].Name)
	assert.Equal(t, KindI32, row.Elements[1].Type.Elem.Kind)

	kind, err := ts.Resolve(row.Elements[2].Type)
	require.NoError(t, err)
	assert.True(t, kind.IsOption())
	assert.False(t, kind.IsEnum())
}

func TestParseTypespaceRejectsUnknownTag(t *testing.T) {
	var ts Typespace
	err := json.Unmarshal([]byte(`{"types":[{"U512":[]}]}`), &ts)
	assert.ErrorContains(t, err, "unknown tag")
}

func TestResolveRefErrors(t *testing.T) {
	_, err := (*Typespace)(nil).Resolve(Ref(0))
	assert.ErrorContains(t, err, "out of range")

	cyclic := &Typespace{Types: []AlgebraicType{Ref(1), Ref(0)}}
	_, err = cyclic.Resolve(Ref(0))
	assert.ErrorContains(t, err, "cyclic")
}

func TestBSATNRoundTrip(t *testing.T) {
	rows := sampleRows()
	data, err := EncodeRows(rows, Ref(0), testTypespace)
	require.NoError(t, err)

	decoded, err := DecodeRows(data, Ref(0), testTypespace)
	require.NoError(t, err)
	if diff := cmp.Diff(rows, decoded, bigComparer); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBSATNLayout(t *testing.T) {
	rowType := Product(
		ProductElement{Name: "id", Type: Primitive(KindU32)},
		ProductElement{Name: "name", Type: Primitive(KindString)},
		ProductElement{Name: "delta", Type: Primitive(KindI16)},
	)
	data, err := EncodeRows([]ProductValue{{uint64(1), "ab", int64(-2)}}, rowType, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		1, 0, 0, 0, // row count
		1, 0, 0, 0, // id
		2, 0, 0, 0, 'a', 'b', // name
		0xfe, 0xff, // delta
	}, data)
}

func TestBSATNEmptyRows(t *testing.T) {
	data, err := EncodeRows(nil, Ref(0), testTypespace)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, data)

	rows, err := DecodeRows(data, Ref(0), testTypespace)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBSATNErrors(t *testing.T) {
	rowType := Product(ProductElement{Name: "id", Type: Primitive(KindU8)})

	_, err := EncodeRows([]ProductValue{{"not a number"}}, rowType, nil)
	assert.ErrorContains(t, err, "cannot encode string as U8")

	_, err = EncodeRows([]ProductValue{{big.NewInt(1)}}, Product(ProductElement{Name: "x", Type: Primitive(KindU128)}), nil)
	require.NoError(t, err)
	_, err = EncodeRows([]ProductValue{{new(big.Int).Lsh(big.NewInt(1), 128)}}, Product(ProductElement{Name: "x", Type: Primitive(KindU128)}), nil)
	assert.ErrorContains(t, err, "does not fit")

	_, err = DecodeRows([]byte{1, 0, 0, 0, 7, 9}, rowType, nil)
	assert.ErrorContains(t, err, "trailing bytes")

	_, err = DecodeRows([]byte{2, 0, 0, 0, 7}, rowType, nil)
	assert.Error(t, err)
}

func TestDecodeRowsCorruptCount(t *testing.T) {
	rowType := Product(ProductElement{Name: "id", Type: Primitive(KindU8)})

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := DecodeRows([]byte{0xff, 0xff, 0xff, 0xff, 7}, rowType, nil)
	runtime.ReadMemStats(&after)

	assert.ErrorContains(t, err, "row 1")
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestDecodeRowJSONShapes(t *testing.T) {
	rowType := Product(
		ProductElement{Name: "id", Type: Primitive(KindU64)},
		ProductElement{Name: "name", Type: Primitive(KindString)},
		ProductElement{Name: "rarity", Type: rarity},
		ProductElement{Name: "weight", Type: Option(Primitive(KindF32))},
	)
	want := ProductValue{uint64(18446744073709551615), "Stone", SumValue{Tag: 1, Value: ProductValue{}}, SumValue{Tag: 1, Value: ProductValue{}}}

	positional := `[18446744073709551615,"Stone",{"1":[]},{"none":[]}]`
	named := `{"id":18446744073709551615,"name":"Stone","rarity":{"Rare":[]},"weight":null}`
	textEncoded, err := json.Marshal(positional)
	require.NoError(t, err)

	for _, data := range []string{positional, named, string(textEncoded)} {
		row, err := DecodeRowJSON([]byte(data), rowType, nil)
		require.NoError(t, err, data)
		assert.Equal(t, want, row, data)
	}
}

func TestDecodeRowJSONValues(t *testing.T) {
	rowType := Product(
		ProductElement{Name: "small", Type: Primitive(KindI8)},
		ProductElement{Name: "huge", Type: Primitive(KindI128)},
		ProductElement{Name: "owner", Type: Product(ProductElement{Name: "__identity__", Type: Primitive(KindU256)})},
		ProductElement{Name: "blob", Type: Array(Primitive(KindU8))},
		ProductElement{Name: "shape", Type: shape},
	)
	row, err := DecodeRowJSON([]byte(`[-128, -170141183460469231731687303715884105728, "0xff", "0x0102", [1, "round"]]`), rowType, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(-128), row[0])
	min128 := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	assert.Equal(t, 0, min128.Cmp(row[1].(*big.Int)))
	assert.Equal(t, 0, big.NewInt(255).Cmp(row[2].(ProductValue)[0].(*big.Int)))
	assert.Equal(t, []any{uint64(1), uint64(2)}, row[3])
	assert.Equal(t, SumValue{Tag: 1, Value: "round"}, row[4])
}

func TestDecodeRowJSONErrors(t *testing.T) {
	rowType := Product(
		ProductElement{Name: "small", Type: Primitive(KindI8)},
		ProductElement{Name: "flag", Type: Primitive(KindBool)},
	)
	_, err := DecodeRowJSON([]byte(`[128, true]`), rowType, nil)
	assert.ErrorContains(t, err, "small")

	_, err = DecodeRowJSON([]byte(`{"small": 1}`), rowType, nil)
	assert.ErrorContains(t, err, `missing field "flag"`)

	_, err = DecodeRowJSON([]byte(`[1, true, 3]`), rowType, nil)
	assert.ErrorContains(t, err, "2 elements")

	_, err = DecodeRowJSON([]byte(`[1, "yes"]`), rowType, nil)
	assert.ErrorContains(t, err, "cannot decode string as Bool")

	_, err = DecodeRowJSON([]byte(`[1, {"Maybe": []}]`), Product(ProductElement{Name: "r", Type: Primitive(KindI8)}, ProductElement{Name: "s", Type: rarity}), nil)
	assert.ErrorContains(t, err, `unknown variant "Maybe"`)
}

func TestMarshalRowsJSON(t *testing.T) {
	out, err := MarshalRowsJSON(sampleRows(), Ref(0), testTypespace)
	require.NoError(t, err)

	want := `[
  {
    "id": -7,
    "name": "Flint <Axe>",
    "tags": [
      1,
      65535
    ],
    "rarity": "Rare",
    "weight": 2.5,
    "shape": {
      "Label": "blade"
    },
    "owner": "0x00000000000000000000000000000000000000000000000000000000000000ff",
    "balance": -42,
    "hidden": true
  },
  {
    "id": 3,
    "name": "",
    "tags": [],
    "rarity": "Common",
    "weight": null,
    "shape": {
      "Circle": 1.5
    },
    "owner": "0x0000000000000100000000000000000000000000000000000000000000000000",
    "balance": 1267650600228229401496703205376,
    "hidden": false
  }
]`
	assert.Equal(t, want, string(out))
}

func TestMarshalRowsJSONKeepsHTMLCharacters(t *testing.T) {
	rowType := Product(ProductElement{Name: "<label>", Type: Primitive(KindString)})
	out, err := MarshalRowsJSON([]ProductValue{{"Salt & Pepper <Rare>\n\"quoted\""}}, rowType, nil)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"<label>\": \"Salt & Pepper <Rare>\\n\\\"quoted\\\"\"\n  }\n]", string(out))
}

func TestMarshalRowsJSONEmpty(t *testing.T) {
	out, err := MarshalRowsJSON(nil, Ref(0), testTypespace)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestMarshalRowsJSONRejectsNaN(t *testing.T) {
	rowType := Product(ProductElement{Name: "f", Type: Primitive(KindF64)})
	_, err := MarshalRowsJSON([]ProductValue{{math.NaN()}}, rowType, nil)
	assert.ErrorContains(t, err, "no JSON form")
}

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b any
		want int
		ok   bool
	}{
		{int64(1), int64(2), -1, true},
		{uint64(5), int64(-1), 1, true},
		{int64(-1), uint64(0), -1, true},
		{2.5, int64(2), 1, true},
		{"apple", "banana", -1, true},
		{false, true, -1, true},
		{big.NewInt(9), big.NewInt(9), 0, true},
		{"1", int64(1), 0, false},
		{ProductValue{}, ProductValue{}, 0, false},
	}
	for _, c := range cases {
		got, ok := Compare(c.a, c.b)
		assert.Equal(t, c.ok, ok, "%v vs %v", c.a, c.b)
		if c.ok {
			assert.Equal(t, c.want, got, "%v vs %v", c.a, c.b)
		}
	}
}
