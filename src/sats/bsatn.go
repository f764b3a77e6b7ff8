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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/big"
)

/*
BSATN layout, all integers little-endian:

	Bool            1 byte (0 or 1)
	I8..I256        fixed width two's complement (1, 2, 4, 8, 16, 32 bytes)
	F32, F64        IEEE-754 bits, 4 or 8 bytes
	String          u32 byte length, then UTF-8 bytes
	Array           u32 element count, then elements
	Product         elements back to back
	Sum             u8 tag, then the variant payload
*/

// EncodeRows writes rows as a BSATN Array<rowType>.
func EncodeRows(rows []ProductValue, rowType AlgebraicType, ts *Typespace) ([]byte, error) {
	var buf bytes.Buffer
	if uint64(len(rows)) > math.MaxUint32 {
		return nil, fmt.Errorf("too many rows: %d", len(rows))
	}
	writeU32(&buf, uint32(len(rows)))
	for i, row := range rows {
		if err := Encode(&buf, row, rowType, ts); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeRows reads a BSATN Array<rowType> written by EncodeRows.
func DecodeRows(data []byte, rowType AlgebraicType, ts *Typespace) ([]ProductValue, error) {
	r := bytes.NewReader(data)
	n, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("row count: %w", err)
	}
	// the count is untrusted; every row takes at least one byte unless the row type is empty
	rows := make([]ProductValue, 0, min(int64(n), int64(r.Len())))
	for i := uint32(0); i < n; i++ {
		v, err := Decode(r, rowType, ts)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		row, ok := v.(ProductValue)
		if !ok {
			return nil, fmt.Errorf("row %d: row type is not a product", i)
		}
		rows = append(rows, row)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %d rows", r.Len(), n)
	}
	return rows, nil
}

// Encode appends the BSATN form of v, typed as t, to buf.
func Encode(buf *bytes.Buffer, v any, t AlgebraicType, ts *Typespace) error {
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
		for i, e := range t.Elements {
			if err := Encode(buf, pv[i], e.Type, ts); err != nil {
				return fmt.Errorf("%s: %w", elementLabel(e, i), err)
			}
		}
	case KindSum:
		sv, ok := v.(SumValue)
		if !ok || int(sv.Tag) >= len(t.Variants) {
			return valueMismatch(v, t)
		}
		buf.WriteByte(sv.Tag)
		return Encode(buf, sv.Value, t.Variants[sv.Tag].Type, ts)
	case KindArray:
		items, ok := v.([]any)
		if !ok {
			return valueMismatch(v, t)
		}
		writeU32(buf, uint32(len(items)))
		for i, item := range items {
			if err := Encode(buf, item, *t.Elem, ts); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case KindString:
		s, ok := v.(string)
		if !ok {
			return valueMismatch(v, t)
		}
		writeU32(buf, uint32(len(s)))
		buf.WriteString(s)
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return valueMismatch(v, t)
		}
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindI8, KindI16, KindI32, KindI64:
		n, ok := v.(int64)
		if !ok {
			return valueMismatch(v, t)
		}
		writeFixed(buf, uint64(n), bitSize(t.Kind)/8)
	case KindU8, KindU16, KindU32, KindU64:
		n, ok := v.(uint64)
		if !ok {
			return valueMismatch(v, t)
		}
		writeFixed(buf, n, bitSize(t.Kind)/8)
	case KindI128, KindU128, KindI256, KindU256:
		n, ok := v.(*big.Int)
		if !ok {
			return valueMismatch(v, t)
		}
		le, err := bigToLE(n, bitSize(t.Kind)/8)
		if err != nil {
			return fmt.Errorf("%s: %w", t.Kind, err)
		}
		buf.Write(le)
	case KindF32:
		f, ok := v.(float64)
		if !ok {
			return valueMismatch(v, t)
		}
		writeFixed(buf, uint64(math.Float32bits(float32(f))), 4)
	case KindF64:
		f, ok := v.(float64)
		if !ok {
			return valueMismatch(v, t)
		}
		writeFixed(buf, math.Float64bits(f), 8)
	default:
		return fmt.Errorf("unsupported type %s", t.Kind)
	}
	return nil
}

// Decode reads one BSATN value of type t from r.
func Decode(r *bytes.Reader, t AlgebraicType, ts *Typespace) (any, error) {
	t, err := ts.Resolve(t)
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case KindProduct:
		pv := make(ProductValue, len(t.Elements))
		for i, e := range t.Elements {
			v, err := Decode(r, e.Type, ts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", elementLabel(e, i), err)
			}
			pv[i] = v
		}
		return pv, nil
	case KindSum:
		tag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if int(tag) >= len(t.Variants) {
			return nil, fmt.Errorf("sum tag %d out of range", tag)
		}
		v, err := Decode(r, t.Variants[tag].Type, ts)
		if err != nil {
			return nil, err
		}
		return SumValue{Tag: tag, Value: v}, nil
	case KindArray:
		n, err := readU32(r)
		if err != nil {
			return nil, err
		}
		if int64(n) > int64(r.Len()) && bitSizeOrZero(t.Elem) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		items := make([]any, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := Decode(r, *t.Elem, ts)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return items, nil
	case KindString:
		n, err := readU32(r)
		if err != nil {
			return nil, err
		}
		if int64(n) > int64(r.Len()) {
			return nil, io.ErrUnexpectedEOF
		}
		bs := make([]byte, n)
		if _, err := io.ReadFull(r, bs); err != nil {
			return nil, err
		}
		return string(bs), nil
	case KindBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case KindI8, KindI16, KindI32, KindI64:
		width := bitSize(t.Kind) / 8
		u, err := readFixed(r, width)
		if err != nil {
			return nil, err
		}
		return signExtend(u, width), nil
	case KindU8, KindU16, KindU32, KindU64:
		return readFixed(r, bitSize(t.Kind)/8)
	case KindI128, KindU128, KindI256, KindU256:
		width := bitSize(t.Kind) / 8
		bs := make([]byte, width)
		if _, err := io.ReadFull(r, bs); err != nil {
			return nil, err
		}
		return leToBig(bs, t.Kind == KindI128 || t.Kind == KindI256), nil
	case KindF32:
		u, err := readFixed(r, 4)
		if err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(uint32(u))), nil
	case KindF64:
		u, err := readFixed(r, 8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(u), nil
	}
	return nil, fmt.Errorf("unsupported type %s", t.Kind)
}

func writeU32(buf *bytes.Buffer, n uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	buf.Write(b[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeFixed(buf *bytes.Buffer, n uint64, width int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	buf.Write(b[:width])
}

func readFixed(r *bytes.Reader, width int) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:width]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func signExtend(u uint64, width int) int64 {
	shift := uint(64 - 8*width)
	return int64(u<<shift) >> shift
}

func bigToLE(n *big.Int, width int) ([]byte, error) {
	v := new(big.Int).Set(n)
	if v.Sign() < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), uint(8*width)))
	}
	if v.Sign() < 0 || v.BitLen() > 8*width {
		return nil, fmt.Errorf("value %s does not fit in %d bytes", n.String(), width)
	}
	be := v.FillBytes(make([]byte, width))
	le := make([]byte, width)
	for i := range be {
		le[width-1-i] = be[i]
	}
	return le, nil
}

func leToBig(le []byte, signed bool) *big.Int {
	width := len(le)
	be := make([]byte, width)
	for i := range le {
		be[width-1-i] = le[i]
	}
	n := new(big.Int).SetBytes(be)
	if signed && width > 0 && le[width-1]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(8*width)))
	}
	return n
}

// bitSizeOrZero is used to reject array lengths that cannot fit in the remaining input.
func bitSizeOrZero(t *AlgebraicType) int {
	switch t.Kind {
	case KindProduct, KindSum, KindArray, KindString, KindRef:
		return 0
	}
	return bitSize(t.Kind)
}

func valueMismatch(v any, t AlgebraicType) error {
	return fmt.Errorf("cannot encode %T as %s", v, t.Kind)
}
