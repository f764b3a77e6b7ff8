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
package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BitCraftToolBox/automata/src/config"
	"github.com/BitCraftToolBox/automata/src/exporter"
)

// newTestExportCmd builds a command with the export flags bound to the package vars.
func newTestExportCmd(t *testing.T) *cobra.Command {
	cmd := &cobra.Command{Use: "export", Run: func(cmd *cobra.Command, args []string) {}}
	registerCommonFlags(cmd)
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "")
	cmd.Flags().StringVar(&format, "format", string(exporter.FORMAT_JSON), "")
	cmd.Flags().StringVar(&ciOutput, "ci-output", "", "")
	cmd.Flags().BoolVar(&disablePb, "disable-pb", false, "")
	return cmd
}

func writeFile(t *testing.T, name string, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func yamlConfig(t *testing.T, content string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(writeFile(t, "automata-config.yaml", content))
	require.NoError(t, v.ReadInConfig())
	return v
}

func clearEnv(t *testing.T) {
	for _, name := range []string{
		"BITCRAFT_SPACETIME_HOST", "BITCRAFT_REGION", "BITCRAFT_BEARER_TOKEN", "DATA_DIR", "GITHUB_OUTPUT",
		"AUTOMATA_HOST", "AUTOMATA_MODULE", "AUTOMATA_TOKEN", "AUTOMATA_FORMAT", "AUTOMATA_EXTRA_TABLES",
		"AUTOMATA_OUTPUT_DIR", "AUTOMATA_CI_OUTPUT", "AUTOMATA_SCHEMA_VERSION", "AUTOMATA_LOG_LEVEL",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestBindFlagsPrecedence(t *testing.T) {
	clearEnv(t)
	cmd := newTestExportCmd(t)
	require.NoError(t, cmd.ParseFlags([]string{"--format", "bsatn"}))

	t.Setenv("BITCRAFT_SPACETIME_HOST", "env.example.com")
	envFile := map[string]string{
		"BITCRAFT_SPACETIME_HOST": "envfile.example.com",
		"BITCRAFT_REGION":         "bitcraft-3",
	}
	v := yamlConfig(t, `
host: config.example.com
module: bitcraft-9
format: json
schema-version: 8
export:
  extra-tables: [claim_tile_cost, empire_rank]
`)

	overrides, err := bindFlags(cmd, v, envFile)
	require.NoError(t, err)

	cfg := buildConfig()
	// flag > environment > env file > config file
	assert.Equal(t, exporter.FORMAT_BSATN, cfg.Format)
	assert.Equal(t, "env.example.com", cfg.Host)
	assert.Equal(t, "bitcraft-3", cfg.Module)
	assert.Equal(t, 8, cfg.SchemaVersion)
	// command section applies
	assert.Equal(t, []string{"claim_tile_cost", "empire_rank"}, cfg.ExtraTables)
	// defaults
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Token)

	sources := map[string]string{}
	for _, o := range overrides {
		sources[o.FlagName] = o.Source
	}
	assert.Equal(t, "environment variable BITCRAFT_SPACETIME_HOST", sources["host"])
	assert.Equal(t, "env file variable BITCRAFT_REGION", sources["module"])
	assert.Equal(t, "config key export.extra-tables", sources["extra-tables"])
	assert.Equal(t, "config key schema-version", sources["schema-version"])
	assert.NotContains(t, sources, "format")
}

func TestBindFlagsGenericEnvName(t *testing.T) {
	clearEnv(t)
	cmd := newTestExportCmd(t)
	require.NoError(t, cmd.ParseFlags(nil))
	t.Setenv("AUTOMATA_HOST", "generic.example.com")
	t.Setenv("DATA_DIR", "/srv/data")
	t.Setenv("GITHUB_OUTPUT", "/tmp/gh_output")

	_, err := bindFlags(cmd, viper.New(), nil)
	require.NoError(t, err)

	cfg := buildConfig()
	assert.Equal(t, "generic.example.com", cfg.Host)
	assert.Equal(t, "/srv/data", cfg.OutputDir)
	assert.Equal(t, "/tmp/gh_output", cfg.CIOutput)
	assert.NoError(t, cfg.Validate())
}

func TestBindFlagsInvalidValue(t *testing.T) {
	clearEnv(t)
	cmd := newTestExportCmd(t)
	require.NoError(t, cmd.ParseFlags(nil))
	t.Setenv("AUTOMATA_SCHEMA_VERSION", "nine")

	_, err := bindFlags(cmd, viper.New(), nil)
	assert.ErrorContains(t, err, "invalid value for schema-version from environment variable AUTOMATA_SCHEMA_VERSION")
}

func TestReadEnvFiles(t *testing.T) {
	first := writeFile(t, ".env.local", "BITCRAFT_SPACETIME_HOST=first.example.com\nBITCRAFT_BEARER_TOKEN=abc\n")
	second := writeFile(t, ".env", "BITCRAFT_SPACETIME_HOST=second.example.com\nBITCRAFT_REGION=bitcraft-5\n")

	values, err := readEnvFiles([]string{first, filepath.Join(t.TempDir(), "missing.env"), second})
	require.NoError(t, err)
	assert.Equal(t, "first.example.com", values["BITCRAFT_SPACETIME_HOST"])
	assert.Equal(t, "abc", values["BITCRAFT_BEARER_TOKEN"])
	assert.Equal(t, "bitcraft-5", values["BITCRAFT_REGION"])
}

func TestBuildConfigTrimsExtraTables(t *testing.T) {
	clearEnv(t)
	cmd := newTestExportCmd(t)
	require.NoError(t, cmd.ParseFlags([]string{"--extra-tables", " claim_tile_cost, ,empire_rank"}))

	cfg := buildConfig()
	assert.Equal(t, []string{"claim_tile_cost", "empire_rank"}, cfg.ExtraTables)
	assert.Equal(t, config.DEFAULT_MODULE, cfg.Module)
}

func TestExportSummary(t *testing.T) {
	out := exportSummary([]exporter.Artifact{
		{Table: "item_desc", Location: "/data/item_desc.json", Rows: 1200, Bytes: 2048, SortKey: "id"},
		{Table: "claim_tile_cost", Location: "/data/claim_tile_cost.json", Rows: 3, Bytes: 100},
	}).String()

	assert.Contains(t, out, "item_desc")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "1,203")
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 5)
}
