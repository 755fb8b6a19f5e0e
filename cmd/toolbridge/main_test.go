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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"toolbridge/internal/tools"
)

func newTestApp(t *testing.T, configJSON string) *app {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if configJSON != "" {
		if err := os.WriteFile(path, []byte(configJSON), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
	}
	a, err := newApp(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	t.Cleanup(func() {
		tools.ConfigureLimits(tools.DefaultLimits())
		tools.ConfigureOutputFilters(tools.DefaultOutputFilterConfig())
	})
	return a
}

func TestInitLogger(t *testing.T) {
	for _, debug := range []bool{false, true} {
		logger, closer, err := initLogger(debug, "")
		if err != nil {
			t.Fatalf("initLogger failed: %v", err)
		}
		if closer != nil {
			t.Fatal("expected no closer without a log file")
		}
		logger.Info().Msg("This should be discarded")
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", zerolog.GlobalLevel())
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestInitLoggerWithFile(t *testing.T) {
	logFilePath := filepath.Join(t.TempDir(), "test.log")

	logger, closer, err := initLogger(false, logFilePath)
	if err != nil {
		t.Fatalf("initLogger failed: %v", err)
	}
	logger.Info().Msg("Test message")
	if err := closer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	content, err := os.ReadFile(logFilePath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "Test message") {
		t.Errorf("expected message in log file, got %q", content)
	}
}

func TestInitLoggerBadPath(t *testing.T) {
	_, _, err := initLogger(false, filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	if err == nil {
		t.Fatal("expected error for unwritable log path")
	}
}

func TestFlagsDefined(t *testing.T) {
	if debugMode == nil || logFile == nil || configPath == nil || version == nil || listTools == nil || console == nil || printConfig == nil {
		t.Fatal("all flags should be defined")
	}
	if *configPath != "config.json" {
		t.Fatalf("unexpected default config path %q", *configPath)
	}
	if Version == "" {
		t.Error("Version variable should not be empty")
	}
}

func TestNewAppAppliesConfig(t *testing.T) {
	a := newTestApp(t, `{"server_name":"custom","tool_limits":{"max_file_size_bytes":64},"evaluate":{"include_output":true}}`)
	if a.cfg.ServerName != "custom" {
		t.Fatalf("unexpected server name %q", a.cfg.ServerName)
	}
	if tools.CurrentLimits().MaxFileSizeBytes != 64 {
		t.Fatalf("limits not applied: %+v", tools.CurrentLimits())
	}
	res := a.registry.Execute(context.Background(), "evaluate", map[string]interface{}{"expression": `(do (print "hi") 1)`})
	if len(res.Segments) != 2 || res.Segments[1] != "stdout:\nhi" {
		t.Fatalf("expected captured output segment, got %q", res.Segments)
	}
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"nope":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := newApp(path, zerolog.Nop()); err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestServePrintsBannerToErrOut(t *testing.T) {
	a := newTestApp(t, "")
	var out, errOut bytes.Buffer
	if err := a.serve(context.Background(), strings.NewReader(""), &out, &errOut); err != nil {
		t.Fatalf("serve failed: %v", err)
	}
	if !strings.Contains(errOut.String(), "serving 8 tools over stdio") {
		t.Fatalf("expected banner on errOut, got %q", errOut.String())
	}
	if strings.Contains(out.String(), "toolbridge") {
		t.Fatalf("banner leaked onto the protocol stream: %q", out.String())
	}
}

func TestWriteToolList(t *testing.T) {
	a := newTestApp(t, "")

	var buf bytes.Buffer
	if err := writeToolList(&buf, a.registry, "mcp"); err != nil {
		t.Fatalf("mcp list failed: %v", err)
	}
	var descs []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &descs); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(descs) != 8 || descs[0]["name"] != "evaluate" || descs[0]["inputSchema"] == nil {
		t.Fatalf("unexpected mcp listing %v", descs)
	}

	buf.Reset()
	if err := writeToolList(&buf, a.registry, "openai"); err != nil {
		t.Fatalf("openai list failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"type": "function"`) {
		t.Fatalf("unexpected openai listing %s", buf.String())
	}

	if err := writeToolList(&buf, a.registry, "yaml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWriteConfigDoc(t *testing.T) {
	var buf bytes.Buffer
	if err := writeConfigDoc(&buf, "example"); err != nil || !strings.Contains(buf.String(), "server_name") {
		t.Fatalf("unexpected example output %q (%v)", buf.String(), err)
	}
	if err := writeConfigDoc(&buf, "other"); err == nil {
		t.Fatal("expected error for unknown document")
	}
}

func TestParseConsoleLine(t *testing.T) {
	tests := []struct {
		line    string
		name    string
		args    int
		wantErr bool
	}{
		{"greet", "greet", 0, false},
		{`  read_file {"path": "a.txt"}  `, "read_file", 1, false},
		{`write_file {"path": "a"`, "", 0, true},
		{"evaluate [1]", "", 0, true},
		{"   ", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, args, err := parseConsoleLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tt.wantErr {
				return
			}
			if name != tt.name || len(args) != tt.args {
				t.Fatalf("got %q %v", name, args)
			}
		})
	}
}

func TestFormatResult(t *testing.T) {
	if got := formatResult(tools.TextResults("a", "b")); got != "a\nb" {
		t.Fatalf("unexpected %q", got)
	}
	if got := formatResult(tools.FailureResult("bad")); got != "[error] bad" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestConsoleRequiresTerminal(t *testing.T) {
	a := newTestApp(t, "")
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	err = a.runConsole(context.Background(), f, &bytes.Buffer{})
	if !errors.Is(err, errNotTerminal) {
		t.Fatalf("expected errNotTerminal, got %v", err)
	}
}

func TestClassifyReadlineError(t *testing.T) {
	if classifyReadlineError("", nil) != readlineUnhandled {
		t.Fatal("nil error should be unhandled")
	}
	if classifyReadlineError("", errors.New("x")) != readlineUnhandled {
		t.Fatal("unknown errors should be unhandled")
	}
}
