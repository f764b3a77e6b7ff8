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
	"math/big"
	"strings"
)

/*
Values are plain Go values whose dynamic type follows the AlgebraicType they were
decoded with:

	Bool                      bool
	I8, I16, I32, I64         int64
	U8, U16, U32, U64         uint64
	I128, U128, I256, U256    *big.Int
	F32, F64                  float64
	String                    string
	Array                     []any
	Product                   ProductValue
	Sum                       SumValue
*/

// ProductValue holds the element values of a product in declaration order.
type ProductValue []any

// SumValue is one variant of a sum, identified by its position.
type SumValue struct {
	Tag   uint8
	Value any
}

// Compare orders two scalar values of the same kind. The second result is false
// when the values are not comparable (mixed kinds, products, sums, arrays).
func Compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmpOrdered(av, bv), true
		case uint64:
			if av < 0 {
				return -1, true
			}
			return cmpOrdered(uint64(av), bv), true
		case float64:
			return cmpOrdered(float64(av), bv), true
		}
	case uint64:
		switch bv := b.(type) {
		case uint64:
			return cmpOrdered(av, bv), true
		case int64:
			if bv < 0 {
				return 1, true
			}
			return cmpOrdered(av, uint64(bv)), true
		case float64:
			return cmpOrdered(float64(av), bv), true
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return cmpOrdered(av, bv), true
		case int64:
			return cmpOrdered(av, float64(bv)), true
		case uint64:
			return cmpOrdered(av, float64(bv)), true
		}
	case *big.Int:
		if bv, ok := b.(*big.Int); ok {
			return av.Cmp(bv), true
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func cmpOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
