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
	"sort"
)

// SchemaJSON returns the JSON schema for the config file.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns an example config that sets every field.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

// normalizeConfig checks a decoded config document against the known
// fields and re-encodes it as JSON for the typed decode.
func normalizeConfig(raw map[string]interface{}) ([]byte, error) {
	if err := validateConfigMap(raw); err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

func validateConfigMap(raw map[string]interface{}) error {
	allowed := map[string]func(interface{}) error{
		"server_name": func(v interface{}) error { return validateString(v, "server_name") },
		"max_concurrent_invocations": func(v interface{}) error {
			return validateNumber(v, "max_concurrent_invocations")
		},
		"tool_limits":         func(v interface{}) error { return validateToolLimits(v, "tool_limits.") },
		"tool_timeouts":       func(v interface{}) error { return validateToolTimeouts(v, "tool_timeouts.") },
		"tool_output_filters": func(v interface{}) error { return validateToolOutputFilters(v, "tool_output_filters.") },
		"evaluate":            func(v interface{}) error { return validateEvaluate(v, "evaluate.") },
	}
	return validateSection(raw, allowed, "")
}

func validateToolLimits(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("tool_limits must be an object")
	}
	allowed := map[string]func(interface{}) error{
		"max_file_size_bytes":   func(v interface{}) error { return validateNumber(v, prefix+"max_file_size_bytes") },
		"max_directory_entries": func(v interface{}) error { return validateNumber(v, prefix+"max_directory_entries") },
	}
	return validateSection(section, allowed, prefix)
}

func validateToolTimeouts(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("tool_timeouts must be an object")
	}
	allowed := map[string]func(interface{}) error{
		"default_seconds":  func(v interface{}) error { return validateNumber(v, prefix+"default_seconds") },
		"per_tool_seconds": func(v interface{}) error { return validateStringNumberMap(v, prefix+"per_tool_seconds") },
	}
	return validateSection(section, allowed, prefix)
}

func validateToolOutputFilters(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("tool_output_filters must be an object")
	}
	allowed := map[string]func(interface{}) error{
		"max_chars":     func(v interface{}) error { return validateNumber(v, prefix+"max_chars") },
		"strip_ansi":    func(v interface{}) error { return validateBool(v, prefix+"strip_ansi") },
		"strip_control": func(v interface{}) error { return validateBool(v, prefix+"strip_control") },
	}
	return validateSection(section, allowed, prefix)
}

func validateEvaluate(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("evaluate must be an object")
	}
	allowed := map[string]func(interface{}) error{
		"include_output": func(v interface{}) error { return validateBool(v, prefix+"include_output") },
	}
	return validateSection(section, allowed, prefix)
}

func validateSection(section map[string]interface{}, allowed map[string]func(interface{}) error, prefix string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validator(section[key]); err != nil {
			return err
		}
	}
	return nil
}

func validateString(value interface{}, name string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

// isNumber accepts the number types produced by both the JSON and the
// TOML decoders.
func isNumber(value interface{}) bool {
	switch value.(type) {
	case float64, int64:
		return true
	default:
		return false
	}
}

func validateNumber(value interface{}, name string) error {
	if !isNumber(value) {
		return fmt.Errorf("%s must be a number", name)
	}
	return nil
}

func validateBool(value interface{}, name string) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%s must be a boolean", name)
	}
	return nil
}

func validateStringNumberMap(value interface{}, name string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object of number values", name)
	}
	for key, entry := range section {
		if !isNumber(entry) {
			return fmt.Errorf("%s.%s must be a number", name, key)
		}
	}
	return nil
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "toolbridge config",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "server_name": { "type": "string" },
    "max_concurrent_invocations": { "type": "number" },
    "tool_limits": {
      "type": "object",
      "properties": {
        "max_file_size_bytes": { "type": "number" },
        "max_directory_entries": { "type": "number" }
      }
    },
    "tool_timeouts": {
      "type": "object",
      "properties": {
        "default_seconds": { "type": "number" },
        "per_tool_seconds": { "type": "object", "additionalProperties": { "type": "number" } }
      }
    },
    "tool_output_filters": {
      "type": "object",
      "properties": {
        "max_chars": { "type": "number" },
        "strip_ansi": { "type": "boolean" },
        "strip_control": { "type": "boolean" }
      }
    },
    "evaluate": {
      "type": "object",
      "properties": {
        "include_output": { "type": "boolean" }
      }
    }
  }
}`

const exampleConfigJSON = `{
  "server_name": "toolbridge",
  "max_concurrent_invocations": 8,
  "tool_limits": {
    "max_file_size_bytes": 10485760,
    "max_directory_entries": 2000
  },
  "tool_timeouts": {
    "default_seconds": 0,
    "per_tool_seconds": {
      "execute_command": 30
    }
  },
  "tool_output_filters": {
    "max_chars": 4000,
    "strip_ansi": true,
    "strip_control": true
  },
  "evaluate": {
    "include_output": false
  }
}`
