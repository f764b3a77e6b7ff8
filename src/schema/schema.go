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

package schema

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/BitCraftToolBox/automata/src/errs"
	"github.com/BitCraftToolBox/automata/src/sats"
)

const (
	ACCESS_PUBLIC  = "Public"
	ACCESS_PRIVATE = "Private"

	DEFAULT_SCHEMA_VERSION = 9
)

// Table is one entry of the schema's "tables" list.
type Table struct {
	Name           string
	Access         mapset.Set[string]
	ProductTypeRef int // -1 when the schema did not publish a row type
}

func (t Table) IsPrivate() bool {
	return t.Access.Contains(ACCESS_PRIVATE)
}

// RowType returns the table's row type, to be resolved against the schema typespace.
func (t Table) RowType() sats.AlgebraicType {
	return sats.Ref(t.ProductTypeRef)
}

type Schema struct {
	Typespace sats.Typespace
	Tables    []Table
}

// Getter is the part of the HTTP client Fetch needs.
type Getter interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// URL builds the schema introspection URL for a module.
func URL(host string, module string, version int, insecure bool) string {
	scheme := "https"
	if insecure {
		scheme = "http"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     fmt.Sprintf("/v1/database/%s/schema", module),
		RawQuery: url.Values{"version": []string{fmt.Sprint(version)}}.Encode(),
	}
	return u.String()
}

// Fetch retrieves and parses the schema. Transport and HTTP failures are wrapped in
// errs.SchemaFetchError; a malformed table list is an errs.ClassificationError.
func Fetch(ctx context.Context, client Getter, schemaURL string) (*Schema, error) {
	log.Infof("fetching schema from %s", schemaURL)
	body, err := client.Get(ctx, schemaURL)
	if err != nil {
		return nil, errs.NewSchemaFetchError(schemaURL, err)
	}
	s, err := Parse(body)
	if err != nil {
		var classErr *errs.ClassificationError
		if errors.As(err, &classErr) {
			return nil, err
		}
		return nil, errs.NewSchemaFetchError(schemaURL, err)
	}
	log.Infof("schema has %d tables and %d types", len(s.Tables), len(s.Typespace.Types))
	return s, nil
}

// Parse decodes a schema document. It fails on the first structurally invalid entry
// and never returns a partial table list.
func Parse(body []byte) (*Schema, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode schema body: %w", err)
	}

	rawTables, ok := doc["tables"]
	if !ok {
		return nil, errs.NewClassificationError(-1, "'tables' field not found")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(rawTables, &entries); err != nil || entries == nil {
		return nil, errs.NewClassificationError(-1, "'tables' is not a list")
	}

	s := &Schema{}
	if rawTypes, ok := doc["typespace"]; ok {
		if err := json.Unmarshal(rawTypes, &s.Typespace); err != nil {
			return nil, fmt.Errorf("decode typespace: %w", err)
		}
	}

	s.Tables = make([]Table, 0, len(entries))
	for i, entry := range entries {
		table, err := parseTable(i, entry)
		if err != nil {
			return nil, err
		}
		if table.ProductTypeRef >= len(s.Typespace.Types) {
			return nil, errs.NewClassificationError(i, "product_type_ref %d out of range for %q", table.ProductTypeRef, table.Name)
		}
		s.Tables = append(s.Tables, table)
	}
	return s, nil
}

func parseTable(i int, entry json.RawMessage) (Table, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return Table{}, errs.NewClassificationError(i, "entry is not an object")
	}

	rawName, ok := fields["name"]
	if !ok {
		return Table{}, errs.NewClassificationError(i, "missing 'name'")
	}
	var name string
	if err := json.Unmarshal(rawName, &name); err != nil || name == "" {
		return Table{}, errs.NewClassificationError(i, "'name' is not a non-empty string")
	}

	rawAccess, ok := fields["table_access"]
	if !ok {
		return Table{}, errs.NewClassificationError(i, "missing 'table_access' for %q", name)
	}
	access, err := parseAccess(rawAccess)
	if err != nil {
		return Table{}, errs.NewClassificationError(i, "'table_access' of %q: %s", name, err)
	}

	ref := -1
	if rawRef, ok := fields["product_type_ref"]; ok {
		if err := json.Unmarshal(rawRef, &ref); err != nil || ref < 0 {
			return Table{}, errs.NewClassificationError(i, "'product_type_ref' of %q is not a type index", name)
		}
	}
	return Table{Name: name, Access: access, ProductTypeRef: ref}, nil
}

// parseAccess accepts the tagged {"Public": []} form and a bare "Public" string.
func parseAccess(raw json.RawMessage) (mapset.Set[string], error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err == nil && tagged != nil {
		access := mapset.NewThreadUnsafeSet[string]()
		for marker := range tagged {
			access.Add(marker)
		}
		return access, nil
	}
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil && bare != "" {
		return mapset.NewThreadUnsafeSet(bare), nil
	}
	return nil, fmt.Errorf("expected an access marker, got %s", string(raw))
}
