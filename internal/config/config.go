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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	apperrors "toolbridge/internal/errors"
	"toolbridge/internal/tools"
)

const DefaultServerName = "toolbridge"

// Config represents the server configuration
type Config struct {
	ServerName               string            `json:"server_name,omitempty"`
	ToolLimits               ToolLimits        `json:"tool_limits,omitempty"`
	ToolTimeouts             ToolTimeouts      `json:"tool_timeouts,omitempty"`
	ToolOutputFilters        ToolOutputFilters `json:"tool_output_filters,omitempty"`
	MaxConcurrentInvocations int64             `json:"max_concurrent_invocations,omitempty"`
	Evaluate                 EvaluateSettings  `json:"evaluate,omitempty"`
}

// ToolLimits configures resource limits for the file tools.
type ToolLimits struct {
	MaxFileSizeBytes    int64 `json:"max_file_size_bytes,omitempty"`
	MaxDirectoryEntries int   `json:"max_directory_entries,omitempty"`
}

// ToolTimeouts configures tool execution timeouts. Zero means none.
type ToolTimeouts struct {
	DefaultSeconds int            `json:"default_seconds,omitempty"`
	PerToolSeconds map[string]int `json:"per_tool_seconds,omitempty"`
}

// ToolOutputFilters configures sanitization of command output.
type ToolOutputFilters struct {
	MaxChars     int  `json:"max_chars,omitempty"`
	StripANSI    bool `json:"strip_ansi"`
	StripControl bool `json:"strip_control"`
}

type EvaluateSettings struct {
	IncludeOutput bool `json:"include_output"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	limits := tools.DefaultLimits()
	filters := tools.DefaultOutputFilterConfig()
	return &Config{
		ServerName: DefaultServerName,
		ToolLimits: ToolLimits{
			MaxFileSizeBytes:    limits.MaxFileSizeBytes,
			MaxDirectoryEntries: limits.MaxDirectoryEntries,
		},
		ToolOutputFilters: ToolOutputFilters{
			MaxChars:     filters.MaxChars,
			StripANSI:    filters.StripANSI,
			StripControl: filters.StripControl,
		},
	}
}

// LoadConfig loads configuration from a JSON or TOML file and applies
// environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfig, "failed to read config", err)
			}
			if err := decodeInto(config, path, data); err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("invalid config %s", path), err)
			}
		}
	}

	if val := strings.TrimSpace(os.Getenv("TOOLBRIDGE_SERVER_NAME")); val != "" {
		config.ServerName = val
	}
	if strings.TrimSpace(config.ServerName) == "" {
		config.ServerName = DefaultServerName
	}

	return config, nil
}

func decodeInto(config *Config, path string, data []byte) error {
	var raw map[string]interface{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	normalized, err := normalizeConfig(raw)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(strings.NewReader(string(normalized)))
	dec.DisallowUnknownFields()
	return dec.Decode(config)
}

// ToolLimitsConfig returns tool limits for runtime enforcement.
func (c *Config) ToolLimitsConfig() tools.Limits {
	return tools.Limits{
		MaxFileSizeBytes:    c.ToolLimits.MaxFileSizeBytes,
		MaxDirectoryEntries: c.ToolLimits.MaxDirectoryEntries,
	}
}

// ToolTimeoutsConfig returns timeout configuration for tools.
func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	perTool := make(map[string]time.Duration, len(c.ToolTimeouts.PerToolSeconds))
	for name, seconds := range c.ToolTimeouts.PerToolSeconds {
		if seconds <= 0 {
			continue
		}
		perTool[name] = time.Duration(seconds) * time.Second
	}

	var defaultTimeout time.Duration
	if c.ToolTimeouts.DefaultSeconds > 0 {
		defaultTimeout = time.Duration(c.ToolTimeouts.DefaultSeconds) * time.Second
	}

	return tools.TimeoutConfig{
		Default: defaultTimeout,
		PerTool: perTool,
	}
}

// ToolOutputFiltersConfig returns output filter configuration for tools.
func (c *Config) ToolOutputFiltersConfig() tools.OutputFilterConfig {
	return tools.OutputFilterConfig{
		MaxChars:     c.ToolOutputFilters.MaxChars,
		StripANSI:    c.ToolOutputFilters.StripANSI,
		StripControl: c.ToolOutputFilters.StripControl,
	}
}

func (c *Config) BuiltinOptions() tools.BuiltinOptions {
	return tools.BuiltinOptions{IncludeEvaluateOutput: c.Evaluate.IncludeOutput}
}

func (c *Config) BridgeOptions() tools.BridgeOptions {
	maxConcurrent := c.MaxConcurrentInvocations
	if maxConcurrent < 0 {
		maxConcurrent = 0
	}
	return tools.BridgeOptions{
		Timeouts:      c.ToolTimeoutsConfig(),
		MaxConcurrent: maxConcurrent,
	}
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning
	negative := func(field string, value int64) {
		if value < 0 {
			warnings = append(warnings, ValidationWarning{
				Field:   field,
				Message: fmt.Sprintf("%s %d is negative, using default", field, value),
			})
		}
	}

	negative("tool_limits.max_file_size_bytes", c.ToolLimits.MaxFileSizeBytes)
	negative("tool_limits.max_directory_entries", int64(c.ToolLimits.MaxDirectoryEntries))
	negative("tool_timeouts.default_seconds", int64(c.ToolTimeouts.DefaultSeconds))
	negative("tool_output_filters.max_chars", int64(c.ToolOutputFilters.MaxChars))
	negative("max_concurrent_invocations", c.MaxConcurrentInvocations)

	for _, name := range sortedKeys(c.ToolTimeouts.PerToolSeconds) {
		field := "tool_timeouts.per_tool_seconds." + name
		negative(field, int64(c.ToolTimeouts.PerToolSeconds[name]))
		if registry == nil {
			continue
		}
		if _, ok := registry.Descriptor(name); !ok {
			warnings = append(warnings, ValidationWarning{
				Field:   field,
				Message: fmt.Sprintf("timeout set for tool %q, which is not registered", name),
			})
		}
	}

	return warnings
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
