// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "toolbridge/internal/errors"
	"toolbridge/internal/tools"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("TOOLBRIDGE_SERVER_NAME", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerName != DefaultServerName {
		t.Fatalf("expected default server name, got %q", cfg.ServerName)
	}
	if got := cfg.ToolTimeoutsConfig(); got.Default != 0 || len(got.PerTool) != 0 {
		t.Fatalf("expected no timeouts by default, got %+v", got)
	}
	if cfg.MaxConcurrentInvocations != 0 || cfg.Evaluate.IncludeOutput {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.ToolOutputFilters.StripANSI || cfg.ToolOutputFilters.MaxChars != tools.DefaultOutputFilterConfig().MaxChars {
		t.Fatalf("unexpected filter defaults %+v", cfg.ToolOutputFilters)
	}
}

func TestLoadJSONConfig(t *testing.T) {
	t.Setenv("TOOLBRIDGE_SERVER_NAME", "")
	path := writeTempConfig(t, "config.json", `{
		"server_name": "bridge-a",
		"max_concurrent_invocations": 2,
		"tool_limits": {"max_file_size_bytes": 1024},
		"tool_timeouts": {"default_seconds": 5, "per_tool_seconds": {"execute_command": 30, "greet": 0}},
		"tool_output_filters": {"max_chars": 10},
		"evaluate": {"include_output": true}
	}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerName != "bridge-a" || cfg.MaxConcurrentInvocations != 2 || !cfg.Evaluate.IncludeOutput {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ToolLimitsConfig().MaxFileSizeBytes != 1024 {
		t.Fatalf("unexpected limits %+v", cfg.ToolLimits)
	}
	if cfg.ToolLimits.MaxDirectoryEntries != tools.DefaultLimits().MaxDirectoryEntries {
		t.Fatal("unset limit should keep its default")
	}
	timeouts := cfg.ToolTimeoutsConfig()
	if timeouts.Default != 5*time.Second || timeouts.PerTool["execute_command"] != 30*time.Second {
		t.Fatalf("unexpected timeouts %+v", timeouts)
	}
	if _, ok := timeouts.PerTool["greet"]; ok {
		t.Fatal("zero per-tool timeout should be dropped")
	}
	filters := cfg.ToolOutputFiltersConfig()
	if filters.MaxChars != 10 || !filters.StripANSI || !filters.StripControl {
		t.Fatalf("unexpected filters %+v", filters)
	}
	if !cfg.BuiltinOptions().IncludeEvaluateOutput || cfg.BridgeOptions().MaxConcurrent != 2 {
		t.Fatal("converters should carry evaluate and concurrency settings")
	}
}

func TestLoadTOMLConfig(t *testing.T) {
	t.Setenv("TOOLBRIDGE_SERVER_NAME", "")
	path := writeTempConfig(t, "config.toml", `
server_name = "bridge-toml"
max_concurrent_invocations = 4

[tool_timeouts]
default_seconds = 2

[tool_timeouts.per_tool_seconds]
evaluate = 1

[tool_output_filters]
strip_ansi = false

[evaluate]
include_output = true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerName != "bridge-toml" || cfg.MaxConcurrentInvocations != 4 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ToolTimeoutsConfig().PerTool["evaluate"] != time.Second {
		t.Fatalf("unexpected timeouts %+v", cfg.ToolTimeouts)
	}
	if cfg.ToolOutputFilters.StripANSI || !cfg.Evaluate.IncludeOutput {
		t.Fatalf("unexpected toml decode %+v", cfg)
	}
}

func TestEnvOverridesServerName(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{"server_name":"from-file"}`)
	t.Setenv("TOOLBRIDGE_SERVER_NAME", "from-env")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerName != "from-env" {
		t.Fatalf("expected env override, got %q", cfg.ServerName)
	}
}

func TestConfigRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unknown field", "config.json", `{"unknown_field":123}`, `unknown configuration field "unknown_field"`},
		{"unknown nested field", "config.json", `{"tool_limits":{"max_directory_depth":3}}`, `"tool_limits.max_directory_depth"`},
		{"invalid type", "config.json", `{"tool_limits":{"max_file_size_bytes":"oops"}}`, "must be a number"},
		{"invalid bool", "config.json", `{"evaluate":{"include_output":"yes"}}`, "must be a boolean"},
		{"malformed json", "config.json", `{"server_name":`, "invalid config"},
		{"unknown toml field", "config.toml", "colour = \"blue\"\n", `unknown configuration field "colour"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeTempConfig(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
			if code, ok := apperrors.CodeOf(err); !ok || code != apperrors.CodeConfig {
				t.Fatalf("expected config error code, got %q", code)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	bridge := tools.NewBridge(tools.BridgeOptions{Logger: zerolog.Nop()})
	registry, err := tools.NewDefaultRegistry(bridge, zerolog.Nop(), tools.BuiltinOptions{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	cfg := DefaultConfig()
	if warnings := cfg.Validate(registry); len(warnings) != 0 {
		t.Fatalf("expected no warnings for defaults, got %+v", warnings)
	}

	cfg.MaxConcurrentInvocations = -1
	cfg.ToolLimits.MaxFileSizeBytes = -5
	cfg.ToolTimeouts.PerToolSeconds = map[string]int{"evaluate": 3, "ghost": 1}
	warnings := cfg.Validate(registry)

	fields := map[string]bool{}
	for _, w := range warnings {
		fields[w.Field] = true
	}
	for _, want := range []string{
		"max_concurrent_invocations",
		"tool_limits.max_file_size_bytes",
		"tool_timeouts.per_tool_seconds.ghost",
	} {
		if !fields[want] {
			t.Fatalf("expected warning for %s, got %+v", want, warnings)
		}
	}
	if fields["tool_timeouts.per_tool_seconds.evaluate"] {
		t.Fatal("registered tool should not be flagged")
	}
	if cfg.BridgeOptions().MaxConcurrent != 0 {
		t.Fatal("negative concurrency should mean unbounded")
	}
}

func TestSchemaAndExample(t *testing.T) {
	if !strings.Contains(SchemaJSON(), `"server_name"`) {
		t.Fatal("schema should describe server_name")
	}
	path := writeTempConfig(t, "example.json", ExampleConfigJSON())
	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("example config should load: %v", err)
	}
}
