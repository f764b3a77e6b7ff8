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

// Package sats models the algebraic type system the remote module publishes in its
// schema, and converts row values between the JSON wire form, the BSATN binary form
// and the pretty JSON export form.
package sats

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

type Kind int

const (
	KindRef Kind = iota
	KindSum
	KindProduct
	KindArray
	KindString
	KindBool
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindI128
	KindU128
	KindI256
	KindU256
	KindF32
	KindF64
)

var kindNames = map[Kind]string{
	KindRef:     "Ref",
	KindSum:     "Sum",
	KindProduct: "Product",
	KindArray:   "Array",
	KindString:  "String",
	KindBool:    "Bool",
	KindI8:      "I8",
	KindU8:      "U8",
	KindI16:     "I16",
	KindU16:     "U16",
	KindI32:     "I32",
	KindU32:     "U32",
	KindI64:     "I64",
	KindU64:     "U64",
	KindI128:    "I128",
	KindU128:    "U128",
	KindI256:    "I256",
	KindU256:    "U256",
	KindF32:     "F32",
	KindF64:     "F64",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// AlgebraicType is one node of a schema type tree.
type AlgebraicType struct {
	Kind     Kind
	Ref      int              // KindRef
	Elements []ProductElement // KindProduct
	Variants []SumVariant     // KindSum
	Elem     *AlgebraicType   // KindArray
}

type ProductElement struct {
	Name string // empty for positional elements
	Type AlgebraicType
}

type SumVariant struct {
	Name string
	Type AlgebraicType
}

func Product(elements ...ProductElement) AlgebraicType {
	return AlgebraicType{Kind: KindProduct, Elements: elements}
}

func Sum(variants ...SumVariant) AlgebraicType {
	return AlgebraicType{Kind: KindSum, Variants: variants}
}

func Array(elem AlgebraicType) AlgebraicType {
	return AlgebraicType{Kind: KindArray, Elem: &elem}
}

func Ref(ref int) AlgebraicType {
	return AlgebraicType{Kind: KindRef, Ref: ref}
}

func Primitive(kind Kind) AlgebraicType {
	return AlgebraicType{Kind: kind}
}

// Option builds the some/none sum the schema uses for nullable values.
func Option(t AlgebraicType) AlgebraicType {
	return Sum(SumVariant{Name: "some", Type: t}, SumVariant{Name: "none", Type: Product()})
}

func (t AlgebraicType) IsUnit() bool {
	return t.Kind == KindProduct && len(t.Elements) == 0
}

func (t AlgebraicType) IsOption() bool {
	return t.Kind == KindSum && len(t.Variants) == 2 &&
		t.Variants[0].Name == "some" && t.Variants[1].Name == "none" && t.Variants[1].Type.IsUnit()
}

// IsEnum reports whether every variant of a sum carries no payload.
func (t AlgebraicType) IsEnum() bool {
	if t.Kind != KindSum || len(t.Variants) == 0 {
		return false
	}
	for _, v := range t.Variants {
		if !v.Type.IsUnit() {
			return false
		}
	}
	return true
}

// ElementIndex returns the position of the named element of a product, or -1.
func (t AlgebraicType) ElementIndex(name string) int {
	for i, e := range t.Elements {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Typespace holds the module's type table; Ref nodes index into it.
type Typespace struct {
	Types []AlgebraicType `json:"types"`
}

// Resolve follows Ref nodes until a structural type is reached.
func (ts *Typespace) Resolve(t AlgebraicType) (AlgebraicType, error) {
	for hops := 0; t.Kind == KindRef; hops++ {
		if ts == nil || t.Ref < 0 || t.Ref >= len(ts.Types) {
			return AlgebraicType{}, fmt.Errorf("type ref %d out of range", t.Ref)
		}
		if hops > len(ts.Types) {
			return AlgebraicType{}, fmt.Errorf("type ref %d is cyclic", t.Ref)
		}
		t = ts.Types[t.Ref]
	}
	return t, nil
}

// UnmarshalJSON reads the schema's tagged form, e.g. {"Product":{"elements":[...]}}
// or {"U32":[]}.
func (t *AlgebraicType) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("algebraic type: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("algebraic type: expected exactly one tag, got %d", len(tagged))
	}
	for tag, body := range tagged {
		switch tag {
		case "Ref":
			var ref int
			if err := json.Unmarshal(body, &ref); err != nil {
				return fmt.Errorf("algebraic type Ref: %w", err)
			}
			*t = Ref(ref)
		case "Array":
			var elem AlgebraicType
			if err := json.Unmarshal(body, &elem); err != nil {
				return fmt.Errorf("algebraic type Array: %w", err)
			}
			*t = Array(elem)
		case "Product":
			var product struct {
				Elements []struct {
					Name optionalName  `json:"name"`
					Type AlgebraicType `json:"algebraic_type"`
				} `json:"elements"`
			}
			if err := json.Unmarshal(body, &product); err != nil {
				return fmt.Errorf("algebraic type Product: %w", err)
			}
			elements := make([]ProductElement, 0, len(product.Elements))
			for _, e := range product.Elements {
				elements = append(elements, ProductElement{Name: string(e.Name), Type: e.Type})
			}
			*t = Product(elements...)
		case "Sum":
			var sum struct {
				Variants []struct {
					Name optionalName  `json:"name"`
					Type AlgebraicType `json:"algebraic_type"`
				} `json:"variants"`
			}
			if err := json.Unmarshal(body, &sum); err != nil {
				return fmt.Errorf("algebraic type Sum: %w", err)
			}
			variants := make([]SumVariant, 0, len(sum.Variants))
			for _, v := range sum.Variants {
				variants = append(variants, SumVariant{Name: string(v.Name), Type: v.Type})
			}
			*t = Sum(variants...)
		default:
			kind, ok := kindsByName[tag]
			if !ok {
				return fmt.Errorf("algebraic type: unknown tag %q", tag)
			}
			*t = Primitive(kind)
		}
	}
	return nil
}

// optionalName decodes {"some":"name"} / {"none":[]}.
type optionalName string

func (n *optionalName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = optionalName(s)
		return nil
	}
	var opt map[string]json.RawMessage
	if err := json.Unmarshal(data, &opt); err != nil {
		return fmt.Errorf("optional name: %w", err)
	}
	if some, ok := opt["some"]; ok {
		var s string
		if err := json.Unmarshal(some, &s); err != nil {
			return fmt.Errorf("optional name: %w", err)
		}
		*n = optionalName(s)
		return nil
	}
	*n = ""
	return nil
}
