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
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// special single-field wrappers rendered as 0x-prefixed hex
var hexWrappers = map[string]bool{
	"__identity__":      true,
	"__connection_id__": true,
}

// MarshalRowsJSON renders rows as a pretty-printed JSON array (two-space indent).
// Products become objects in declaration order, options become their value or null
// and payload-less enums become their variant name.
func MarshalRowsJSON(rows []ProductValue, rowType AlgebraicType, ts *Typespace) ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			compact.WriteByte(',')
		}
		if err := writeJSON(&compact, row, rowType, ts); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	compact.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent rows: %w", err)
	}
	return out.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any, t AlgebraicType, ts *Typespace) error {
	t, err := ts.Resolve(t)
	if err != nil {
		return err
	}
	switch t.Kind {
	case KindProduct:
		pv, ok := v.(ProductValue)
		if !ok || len(pv) != len(t.Elements) {
			return valueMismatch(v, t)
		}
		return writeProductJSON(buf, pv, t, ts)
	case KindSum:
		sv, ok := v.(SumValue)
		if !ok || int(sv.Tag) >= len(t.Variants) {
			return valueMismatch(v, t)
		}
		return writeSumJSON(buf, sv, t, ts)
	case KindArray:
		items, ok := v.([]any)
		if !ok {
			return valueMismatch(v, t)
		}
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item, *t.Elem, ts); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case KindString:
		s, ok := v.(string)
		if !ok {
			return valueMismatch(v, t)
		}
		return writeString(buf, s)
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return valueMismatch(v, t)
		}
		buf.WriteString(strconv.FormatBool(b))
	case KindI8, KindI16, KindI32, KindI64:
		n, ok := v.(int64)
		if !ok {
			return valueMismatch(v, t)
		}
		buf.WriteString(strconv.FormatInt(n, 10))
	case KindU8, KindU16, KindU32, KindU64:
		n, ok := v.(uint64)
		if !ok {
			return valueMismatch(v, t)
		}
		buf.WriteString(strconv.FormatUint(n, 10))
	case KindI128, KindU128, KindI256, KindU256:
		n, ok := v.(*big.Int)
		if !ok {
			return valueMismatch(v, t)
		}
		buf.WriteString(n.String())
	case KindF32, KindF64:
		f, ok := v.(float64)
		if !ok {
			return valueMismatch(v, t)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%s value %v has no JSON form", t.Kind, f)
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, bitSize(t.Kind)))
	default:
		return fmt.Errorf("unsupported type %s", t.Kind)
	}
	return nil
}

func writeProductJSON(buf *bytes.Buffer, pv ProductValue, t AlgebraicType, ts *Typespace) error {
	if len(t.Elements) == 1 && isWrapperName(t.Elements[0].Name) {
		e := t.Elements[0]
		if hexWrappers[e.Name] {
			if n, ok := pv[0].(*big.Int); ok {
				inner, err := ts.Resolve(e.Type)
				if err != nil {
					return err
				}
				le, err := bigToLE(n, bitSize(inner.Kind)/8)
				if err != nil {
					return fmt.Errorf("%s: %w", e.Name, err)
				}
				return writeString(buf, "0x"+hexBigEndian(le))
			}
		}
		return writeJSON(buf, pv[0], e.Type, ts)
	}

	buf.WriteByte('{')
	for i, e := range t.Elements {
		if i > 0 {
			buf.WriteByte(',')
		}
		key := e.Name
		if key == "" {
			key = strconv.Itoa(i)
		}
		if err := writeString(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeJSON(buf, pv[i], e.Type, ts); err != nil {
			return fmt.Errorf("%s: %w", elementLabel(e, i), err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeSumJSON(buf *bytes.Buffer, sv SumValue, t AlgebraicType, ts *Typespace) error {
	variant := t.Variants[sv.Tag]
	switch {
	case t.IsOption():
		if sv.Tag == 1 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, sv.Value, variant.Type, ts)
	case t.IsEnum() && variant.Name != "":
		return writeString(buf, variant.Name)
	}

	name := variant.Name
	if name == "" {
		name = strconv.Itoa(int(sv.Tag))
	}
	buf.WriteByte('{')
	if err := writeString(buf, name); err != nil {
		return err
	}
	buf.WriteByte(':')
	if err := writeJSON(buf, sv.Value, variant.Type, ts); err != nil {
		return fmt.Errorf("variant %q: %w", name, err)
	}
	buf.WriteByte('}')
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.MarshalWithOption(s, json.DisableHTMLEscape())
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func isWrapperName(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

func hexBigEndian(le []byte) string {
	const digits = "0123456789abcdef"
	var sb strings.Builder
	for i := len(le) - 1; i >= 0; i-- {
		sb.WriteByte(digits[le[i]>>4])
		sb.WriteByte(digits[le[i]&0x0f])
	}
	return sb.String()
}
