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
package config

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// ConfigValidationError holds all the invalid keys found in a config file
type ConfigValidationError struct {
	File               string
	InvalidGlobalKeys  mapset.Set[string]
	InvalidSectionKeys map[string]mapset.Set[string]
	InvalidSections    mapset.Set[string]
}

func (e *ConfigValidationError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("config file %s validation failed:\n", e.File))

	if e.InvalidGlobalKeys.Cardinality() > 0 {
		sb.WriteString(fmt.Sprintf("Invalid global config keys: [%s]\n", joinSorted(e.InvalidGlobalKeys)))
	}

	sections := make([]string, 0, len(e.InvalidSectionKeys))
	for section := range e.InvalidSectionKeys {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	for _, section := range sections {
		sb.WriteString(fmt.Sprintf("Invalid keys in section '%s': [%s]\n", section, joinSorted(e.InvalidSectionKeys[section])))
	}

	if e.InvalidSections.Cardinality() > 0 {
		sb.WriteString(fmt.Sprintf("Invalid sections: [%s]\n", joinSorted(e.InvalidSections)))
	}

	return sb.String()
}

// Allowed global config keys
var AllowedGlobalConfigKeys = mapset.NewThreadUnsafeSet[string](
	"host", "module", "token", "insecure",
	"output-dir", "format", "extra-tables", "schema-version", "schema-fetch-retries",
	"ci-output", "disable-pb",
	"log-level", "log-dir",
)

// Allowed export config keys
var allowedExportConfigKeys = mapset.NewThreadUnsafeSet[string](
	"output-dir", "format", "extra-tables", "schema-version", "schema-fetch-retries",
	"ci-output", "disable-pb", "log-level", "log-dir",
)

// Allowed schema config keys
var allowedSchemaConfigKeys = mapset.NewThreadUnsafeSet[string](
	"extra-tables", "schema-version", "schema-fetch-retries", "log-level", "log-dir",
)

// AllowedConfigSections maps a command section to its allowed keys.
var AllowedConfigSections = map[string]mapset.Set[string]{
	"export": allowedExportConfigKeys,
	"schema": allowedSchemaConfigKeys,
}

// ValidateKeys checks flattened config keys ("a" or "section.a") against the allow-lists.
func ValidateKeys(file string, keys []string) error {
	invalidGlobalKeys := mapset.NewThreadUnsafeSet[string]()
	invalidSectionKeys := make(map[string]mapset.Set[string])
	invalidSections := mapset.NewThreadUnsafeSet[string]()

	for _, key := range keys {
		section, nestedKey, nested := strings.Cut(key, ".")
		if !nested {
			if !AllowedGlobalConfigKeys.Contains(key) {
				invalidGlobalKeys.Add(key)
			}
			continue
		}
		allowedKeys, ok := AllowedConfigSections[section]
		if !ok {
			invalidSections.Add(section)
			continue
		}
		if !allowedKeys.Contains(nestedKey) {
			if _, exists := invalidSectionKeys[section]; !exists {
				invalidSectionKeys[section] = mapset.NewThreadUnsafeSet[string]()
			}
			invalidSectionKeys[section].Add(nestedKey)
		}
	}

	if invalidGlobalKeys.Cardinality() == 0 && len(invalidSectionKeys) == 0 && invalidSections.Cardinality() == 0 {
		return nil
	}
	return &ConfigValidationError{
		File:               file,
		InvalidGlobalKeys:  invalidGlobalKeys,
		InvalidSectionKeys: invalidSectionKeys,
		InvalidSections:    invalidSections,
	}
}

func joinSorted(s mapset.Set[string]) string {
	items := s.ToSlice()
	sort.Strings(items)
	return strings.Join(items, ", ")
}
