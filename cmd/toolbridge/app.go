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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"toolbridge/internal/capture"
	"toolbridge/internal/config"
	"toolbridge/internal/mcpserver"
	"toolbridge/internal/tools"
)

type app struct {
	cfg      *config.Config
	registry *tools.Registry
	logger   zerolog.Logger
}

func newApp(configPath string, logger zerolog.Logger) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	for _, w := range cfg.Validate(registry) {
		logger.Warn().Str("field", w.Field).Msg(w.Message)
	}
	return &app{cfg: cfg, registry: registry, logger: logger}, nil
}

func buildRegistry(cfg *config.Config, logger zerolog.Logger) (*tools.Registry, error) {
	tools.ConfigureLimits(cfg.ToolLimitsConfig())
	tools.ConfigureOutputFilters(cfg.ToolOutputFiltersConfig())

	opts := cfg.BridgeOptions()
	opts.Logger = logger
	bridge := tools.NewBridge(opts)
	return tools.NewDefaultRegistry(bridge, logger, cfg.BuiltinOptions())
}

// serve speaks MCP on in/out until in closes or ctx is done. out carries
// only protocol messages, so the banner and stray prints go to errOut.
func (a *app) serve(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	capture.SetDefault(capture.Sinks{Stdout: errOut, Stderr: errOut})
	fmt.Fprintf(errOut, "toolbridge %s serving %d tools over stdio\n", Version, a.registry.Len())

	srv := mcpserver.New(a.cfg.ServerName, Version, a.registry, a.logger)
	err := srv.Serve(ctx, in, out)
	a.registry.Bridge().Wait()
	return err
}

func writeToolList(w io.Writer, registry *tools.Registry, format string) error {
	var payload interface{}
	switch format {
	case "mcp":
		payload = registry.Descriptors()
	case "openai":
		payload = registry.OpenAITools()
	default:
		return fmt.Errorf("unknown tool list format %q (use mcp or openai)", format)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writeConfigDoc(w io.Writer, kind string) error {
	switch kind {
	case "schema":
		_, err := fmt.Fprintln(w, config.SchemaJSON())
		return err
	case "example":
		_, err := fmt.Fprintln(w, config.ExampleConfigJSON())
		return err
	default:
		return fmt.Errorf("unknown config document %q (use schema or example)", kind)
	}
}

func initLogger(debug bool, logFilePath string) (zerolog.Logger, io.Closer, error) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var output io.Writer = io.Discard
	var closer io.Closer
	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		output = file
		closer = file
	}

	return zerolog.New(output).With().Timestamp().Logger(), closer, nil
}
