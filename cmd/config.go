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
	"errors"
	"fmt"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"

	"github.com/BitCraftToolBox/automata/src/classifier"
	"github.com/BitCraftToolBox/automata/src/config"
	"github.com/BitCraftToolBox/automata/src/exporter"
	"github.com/BitCraftToolBox/automata/src/schema"
	"github.com/BitCraftToolBox/automata/src/utils"
)

// flag values, resolved into a config.Config by buildConfig
var (
	host               string
	module             string
	token              string
	insecure           bool
	extraTables        []string
	schemaVersion      int
	schemaFetchRetries int
	logLevel           string
	logDir             string

	outputDir string
	format    string
	ciOutput  string
	disablePb bool
)

// environment variables read for a flag before the generic AUTOMATA_<FLAG> one
var envAliases = map[string][]string{
	"host":       {"BITCRAFT_SPACETIME_HOST"},
	"module":     {"BITCRAFT_REGION"},
	"token":      {"BITCRAFT_BEARER_TOKEN"},
	"output-dir": {"DATA_DIR"},
	"ci-output":  {"GITHUB_OUTPUT"},
}

// flags that only ever come from the command line
var unboundFlags = mapset.NewThreadUnsafeSet[string]("config-file", "env-file", "help")

// ConfigFlagOverride records a flag that was not given on the command line but set
// from the environment, an env file or the config file.
type ConfigFlagOverride struct {
	FlagName string
	Source   string
}

func registerCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&host, "host", "",
		"SpacetimeDB host[:port] serving the module (env BITCRAFT_SPACETIME_HOST)")

	cmd.Flags().StringVar(&module, "module", config.DEFAULT_MODULE,
		"database/module name (env BITCRAFT_REGION)")

	cmd.Flags().StringVar(&token, "token", "",
		"bearer token; connects anonymously when empty (env BITCRAFT_BEARER_TOKEN)")

	cmd.Flags().BoolVar(&insecure, "insecure", false,
		"use http/ws instead of https/wss")

	cmd.Flags().StringSliceVar(&extraTables, "extra-tables", []string{classifier.DEFAULT_EXTRA_TABLE},
		"public tables exported although they are not descriptor tables")

	cmd.Flags().IntVar(&schemaVersion, "schema-version", schema.DEFAULT_SCHEMA_VERSION,
		"version of the schema endpoint to query")

	cmd.Flags().IntVar(&schemaFetchRetries, "schema-fetch-retries", 0,
		"retries of the schema request on server errors (0 - single attempt)")

	cmd.Flags().StringVar(&logLevel, "log-level", "info",
		"log level: trace | debug | info | warn | error")

	cmd.Flags().StringVar(&logDir, "log-dir", "",
		"directory of the rotated log files (default: log to stderr)")
}

// initConfig resolves every flag not given on the command line, in this order:
// environment, env files, config file section of the command, config file globals.
func initConfig(cmd *cobra.Command) ([]ConfigFlagOverride, error) {
	v := viper.New()

	// Precedence of which config file to use:
	// CLI Flag > ENV Variable > Default config file in home directory
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if os.Getenv("AUTOMATA_CONFIG_FILE") != "" {
		v.SetConfigFile(os.Getenv("AUTOMATA_CONFIG_FILE"))
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(home)
		v.SetConfigName("automata-config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := config.ValidateKeys(v.ConfigFileUsed(), v.AllKeys()); err != nil {
		return nil, err
	}

	envFile, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}

	overrides, err := bindFlags(cmd, v, envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return overrides, nil
}

// readEnvFiles loads dotenv files that exist. A variable keeps the value of the
// first file defining it.
func readEnvFiles(paths []string) (map[string]string, error) {
	values := make(map[string]string)
	for _, path := range paths {
		if path == "" || !utils.FileOrFolderExists(path) {
			continue
		}
		ev := viper.New()
		ev.SetConfigFile(path)
		ev.SetConfigType("env")
		if err := ev.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}
		for _, key := range ev.AllKeys() {
			name := strings.ToUpper(key)
			if _, ok := values[name]; !ok {
				values[name] = ev.GetString(key)
			}
		}
	}
	return values, nil
}

func envNames(flagName string) []string {
	generic := "AUTOMATA_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
	return append(slices.Clone(envAliases[flagName]), generic)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper, envFile map[string]string) ([]ConfigFlagOverride, error) {
	var bindErr error
	var overrides []ConfigFlagOverride

	set := func(f *pflag.Flag, val string, source string) {
		if err := cmd.Flags().Set(f.Name, val); err != nil {
			bindErr = fmt.Errorf("invalid value for %s from %s: %w", f.Name, source, err)
			return
		}
		overrides = append(overrides, ConfigFlagOverride{FlagName: f.Name, Source: source})
	}

	sectionKey := cmd.Name() + "."
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Changed || unboundFlags.Contains(f.Name) {
			return
		}

		for _, name := range envNames(f.Name) {
			if val, ok := os.LookupEnv(name); ok {
				set(f, val, "environment variable "+name)
				return
			}
		}
		for _, name := range envNames(f.Name) {
			if val, ok := envFile[name]; ok {
				set(f, val, "env file variable "+name)
				return
			}
		}
		for _, key := range []string{sectionKey + f.Name, f.Name} {
			if v.IsSet(key) {
				set(f, configValue(v, key, f), "config key "+key)
				return
			}
		}
		// If the flag is not set anywhere, it keeps its default value
	})

	return overrides, bindErr
}

func configValue(v *viper.Viper, key string, f *pflag.Flag) string {
	if f.Value.Type() == "stringSlice" {
		return strings.Join(v.GetStringSlice(key), ",")
	}
	return v.GetString(key)
}

// buildConfig captures the resolved flags once.
func buildConfig() config.Config {
	cfg := config.Default()
	cfg.Host = strings.TrimSpace(host)
	cfg.Module = strings.TrimSpace(module)
	cfg.Token = strings.TrimSpace(token)
	cfg.Insecure = insecure
	cfg.ExtraTables = lo.Compact(lo.Map(extraTables, func(t string, _ int) string {
		return strings.TrimSpace(t)
	}))
	cfg.SchemaVersion = schemaVersion
	cfg.SchemaFetchRetries = schemaFetchRetries
	cfg.LogLevel = logLevel
	cfg.LogDir = logDir

	cfg.OutputDir = outputDir
	if format != "" {
		cfg.Format = exporter.Format(strings.ToLower(format))
	}
	cfg.CIOutput = ciOutput
	cfg.DisablePb = disablePb
	return cfg
}
