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
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// DecodeRowJSON decodes one row as delivered by the subscription protocol. The row
// may be a JSON text embedded in a JSON string, a positional array or a named object.
func DecodeRowJSON(data []byte, rowType AlgebraicType, ts *Typespace) (ProductValue, error) {
	raw, err := unmarshalUseNumber(data)
	if err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	// rows sent as JSON text inside a JSON string
	if s, ok := raw.(string); ok {
		raw, err = unmarshalUseNumber([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("decode row text: %w", err)
		}
	}
	v, err := FromJSONValue(raw, rowType, ts)
	if err != nil {
		return nil, err
	}
	row, ok := v.(ProductValue)
	if !ok {
		return nil, fmt.Errorf("decode row: row type is %s, not a product", rowType.Kind)
	}
	return row, nil
}

func unmarshalUseNumber(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// FromJSONValue converts a generic JSON value (decoded with UseNumber) to a typed value.
func FromJSONValue(raw any, t AlgebraicType, ts *Typespace) (any, error) {
	t, err := ts.Resolve(t)
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case KindProduct:
		return productFromJSON(raw, t, ts)
	case KindSum:
		return sumFromJSON(raw, t, ts)
	case KindArray:
		return arrayFromJSON(raw, t, ts)
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, typeMismatch(raw, t)
		}
		return s, nil
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, typeMismatch(raw, t)
		}
		return b, nil
	case KindI8, KindI16, KindI32, KindI64:
		return signedFromJSON(raw, t)
	case KindU8, KindU16, KindU32, KindU64:
		return unsignedFromJSON(raw, t)
	case KindI128, KindU128, KindI256, KindU256:
		return bigFromJSON(raw, t)
	case KindF32, KindF64:
		return floatFromJSON(raw, t)
	}
	return nil, fmt.Errorf("unsupported type %s", t.Kind)
}

func productFromJSON(raw any, t AlgebraicType, ts *Typespace) (ProductValue, error) {
	out := make(ProductValue, len(t.Elements))
	switch v := raw.(type) {
	case []any:
		if len(v) != len(t.Elements) {
			return nil, fmt.Errorf("product has %d elements, got %d values", len(t.Elements), len(v))
		}
		for i, e := range t.Elements {
			ev, err := FromJSONValue(v[i], e.Type, ts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", elementLabel(e, i), err)
			}
			out[i] = ev
		}
	case map[string]any:
		for i, e := range t.Elements {
			key := e.Name
			if key == "" {
				key = strconv.Itoa(i)
			}
			fv, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("missing field %q", key)
			}
			ev, err := FromJSONValue(fv, e.Type, ts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", elementLabel(e, i), err)
			}
			out[i] = ev
		}
	default:
		// wrapper products such as {"__identity__": U256} may arrive unwrapped
		if len(t.Elements) == 1 {
			ev, err := FromJSONValue(raw, t.Elements[0].Type, ts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", elementLabel(t.Elements[0], 0), err)
			}
			out[0] = ev
			return out, nil
		}
		return nil, typeMismatch(raw, t)
	}
	return out, nil
}

func sumFromJSON(raw any, t AlgebraicType, ts *Typespace) (SumValue, error) {
	var tagKey string
	var payload any
	switch v := raw.(type) {
	case map[string]any:
		if len(v) != 1 {
			return SumValue{}, fmt.Errorf("sum value must have exactly one variant, got %d", len(v))
		}
		for k, p := range v {
			tagKey, payload = k, p
		}
	case []any:
		if len(v) != 2 {
			return SumValue{}, typeMismatch(raw, t)
		}
		tagKey, payload = fmt.Sprint(v[0]), v[1]
	case string:
		// bare variant name for payload-less variants
		tagKey, payload = v, []any{}
	case nil:
		if t.IsOption() {
			return SumValue{Tag: 1, Value: ProductValue{}}, nil
		}
		return SumValue{}, typeMismatch(raw, t)
	default:
		return SumValue{}, typeMismatch(raw, t)
	}

	tag := -1
	for i, variant := range t.Variants {
		if variant.Name != "" && variant.Name == tagKey {
			tag = i
			break
		}
	}
	if tag < 0 {
		if n, err := strconv.Atoi(tagKey); err == nil && n >= 0 && n < len(t.Variants) {
			tag = n
		}
	}
	if tag < 0 {
		return SumValue{}, fmt.Errorf("unknown variant %q", tagKey)
	}
	if tag > math.MaxUint8 {
		return SumValue{}, fmt.Errorf("variant tag %d out of range", tag)
	}
	value, err := FromJSONValue(payload, t.Variants[tag].Type, ts)
	if err != nil {
		return SumValue{}, fmt.Errorf("variant %q: %w", tagKey, err)
	}
	return SumValue{Tag: uint8(tag), Value: value}, nil
}

func arrayFromJSON(raw any, t AlgebraicType, ts *Typespace) ([]any, error) {
	if s, ok := raw.(string); ok && t.Elem.Kind == KindU8 {
		// byte arrays travel as hex
		bs, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return nil, fmt.Errorf("byte array: %w", err)
		}
		out := make([]any, len(bs))
		for i, b := range bs {
			out[i] = uint64(b)
		}
		return out, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, typeMismatch(raw, t)
	}
	out := make([]any, len(items))
	for i, item := range items {
		v, err := FromJSONValue(item, *t.Elem, ts)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func signedFromJSON(raw any, t AlgebraicType) (int64, error) {
	text, ok := numberText(raw)
	if !ok {
		return 0, typeMismatch(raw, t)
	}
	n, err := strconv.ParseInt(text, 10, bitSize(t.Kind))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", t.Kind, err)
	}
	return n, nil
}

func unsignedFromJSON(raw any, t AlgebraicType) (uint64, error) {
	text, ok := numberText(raw)
	if !ok {
		return 0, typeMismatch(raw, t)
	}
	n, err := strconv.ParseUint(text, 10, bitSize(t.Kind))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", t.Kind, err)
	}
	return n, nil
}

func bigFromJSON(raw any, t AlgebraicType) (*big.Int, error) {
	text, ok := numberText(raw)
	if !ok {
		return nil, typeMismatch(raw, t)
	}
	n := new(big.Int)
	var parsed bool
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		_, parsed = n.SetString(text[2:], 16)
	} else {
		_, parsed = n.SetString(text, 10)
	}
	if !parsed {
		return nil, fmt.Errorf("%s: invalid integer %q", t.Kind, text)
	}
	if err := checkBigRange(n, t.Kind); err != nil {
		return nil, err
	}
	return n, nil
}

func floatFromJSON(raw any, t AlgebraicType) (float64, error) {
	text, ok := numberText(raw)
	if !ok {
		return 0, typeMismatch(raw, t)
	}
	f, err := strconv.ParseFloat(text, bitSize(t.Kind))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", t.Kind, err)
	}
	return f, nil
}

func numberText(raw any) (string, bool) {
	switch v := raw.(type) {
	case json.Number:
		return v.String(), true
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

func bitSize(k Kind) int {
	switch k {
	case KindI8, KindU8:
		return 8
	case KindI16, KindU16:
		return 16
	case KindI32, KindU32, KindF32:
		return 32
	case KindI128, KindU128:
		return 128
	case KindI256, KindU256:
		return 256
	}
	return 64
}

func checkBigRange(n *big.Int, k Kind) error {
	bits := uint(bitSize(k))
	var min, max *big.Int
	if k == KindU128 || k == KindU256 {
		min = big.NewInt(0)
		max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits), big.NewInt(1))
	} else {
		max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits-1), big.NewInt(1))
		min = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), bits-1))
	}
	if n.Cmp(min) < 0 || n.Cmp(max) > 0 {
		return fmt.Errorf("%s: value %s out of range", k, n.String())
	}
	return nil
}

func elementLabel(e ProductElement, i int) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("element %d", i)
}

func typeMismatch(raw any, t AlgebraicType) error {
	return fmt.Errorf("cannot decode %T as %s", raw, t.Kind)
}
