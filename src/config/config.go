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
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/sirupsen/logrus"

	"github.com/BitCraftToolBox/automata/src/classifier"
	"github.com/BitCraftToolBox/automata/src/exporter"
	"github.com/BitCraftToolBox/automata/src/schema"
)

const (
	DEFAULT_MODULE   = "bitcraft-2"
	DEFAULT_DATA_DIR = "workspace/data"
)

// Config is everything a run needs, resolved once from flags, environment and
// config files. Components receive it by value.
type Config struct {
	Host   string
	Module string
	// empty for an anonymous connection
	Token string

	OutputDir     string
	Format        exporter.Format
	ExtraTables   []string
	SchemaVersion int
	Insecure      bool

	SchemaFetchRetries int
	CIOutput           string

	LogLevel  string
	LogDir    string
	DisablePb bool
}

// Default returns a Config with every optional value set.
func Default() Config {
	return Config{
		Module:        DEFAULT_MODULE,
		Format:        exporter.FORMAT_JSON,
		ExtraTables:   []string{classifier.DEFAULT_EXTRA_TABLE},
		SchemaVersion: schema.DEFAULT_SCHEMA_VERSION,
		LogLevel:      "info",
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var problems []error
	if c.Host == "" {
		problems = append(problems, errors.New("host is required (set BITCRAFT_SPACETIME_HOST or --host)"))
	} else if strings.Contains(c.Host, "://") || strings.Contains(c.Host, "/") {
		problems = append(problems, fmt.Errorf("host %q must be a bare host[:port], without scheme or path", c.Host))
	}
	if c.Module == "" {
		problems = append(problems, errors.New("module is required"))
	}
	if _, err := exporter.ParseFormat(string(c.Format)); err != nil {
		problems = append(problems, err)
	}
	if c.SchemaVersion <= 0 {
		problems = append(problems, fmt.Errorf("schema-version must be positive, got %d", c.SchemaVersion))
	}
	if c.SchemaFetchRetries < 0 {
		problems = append(problems, fmt.Errorf("schema-fetch-retries must not be negative, got %d", c.SchemaFetchRetries))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Errorf("log-level: %w", err))
	}
	for _, table := range c.ExtraTables {
		if !classifier.IsIdentifier(table) {
			problems = append(problems, fmt.Errorf("extra table %q is not a valid table name", table))
		}
	}
	return errors.Join(problems...)
}

// ResolvedOutputDir is OutputDir, or <DEFAULT_DATA_DIR>/<format> when unset.
func (c Config) ResolvedOutputDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return filepath.Join(DEFAULT_DATA_DIR, string(c.Format))
}

func (c Config) ClassifierOptions() classifier.Options {
	return classifier.Options{ExtraTables: mapset.NewThreadUnsafeSet(c.ExtraTables...)}
}

func (c Config) SchemaURL() string {
	return schema.URL(c.Host, c.Module, c.SchemaVersion, c.Insecure)
}

// String is safe to log: the token is masked.
func (c Config) String() string {
	token := "<anonymous>"
	if c.Token != "" {
		token = "XXX"
	}
	return fmt.Sprintf("host=%s module=%s token=%s output-dir=%s format=%s extra-tables=%v schema-version=%d insecure=%t",
		c.Host, c.Module, token, c.ResolvedOutputDir(), c.Format, c.ExtraTables, c.SchemaVersion, c.Insecure)
}
