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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"toolbridge/internal/capture"
	"toolbridge/internal/tools"
)

const consoleHistoryFile = ".toolbridge_history"

var errNotTerminal = errors.New("console mode needs an interactive terminal")

type readlineAction int

const (
	readlineContinue readlineAction = iota
	readlineExit
	readlineUnhandled
)

func classifyReadlineError(line string, err error) readlineAction {
	switch {
	case err == nil:
		return readlineUnhandled
	case err == readline.ErrInterrupt:
		return readlineContinue
	case err == io.EOF:
		if strings.TrimSpace(line) == "" {
			return readlineExit
		}
		return readlineContinue
	default:
		return readlineUnhandled
	}
}

// runConsole reads "tool_name {json args}" lines and prints each result.
func (a *app) runConsole(ctx context.Context, in *os.File, out io.Writer) error {
	if !term.IsTerminal(int(in.Fd())) {
		return errNotTerminal
	}
	capture.SetDefault(capture.Sinks{Stdout: os.Stderr, Stderr: os.Stderr})

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "toolbridge> ",
		HistoryFile:     historyPath(),
		AutoComplete:    toolCompleter(a.registry),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          out,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(out, "toolbridge %s console with %d tools\n", Version, a.registry.Len())
	fmt.Fprintln(out, "Type a tool name followed by JSON arguments, help, or quit")

	for {
		if ctx.Err() != nil {
			break
		}
		line, err := rl.Readline()
		switch classifyReadlineError(line, err) {
		case readlineExit:
			a.registry.Bridge().Wait()
			return nil
		case readlineContinue:
			continue
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "quit", "exit":
			a.registry.Bridge().Wait()
			return nil
		case "help":
			writeHelp(out, a.registry)
			continue
		}

		name, args, err := parseConsoleLine(line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		a.logger.Debug().Str("tool", name).Msg("console invocation")
		fmt.Fprintln(out, formatResult(a.registry.Execute(ctx, name, args)))
	}
	a.registry.Bridge().Wait()
	return nil
}

func parseConsoleLine(line string) (string, map[string]interface{}, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil, errors.New("empty input")
	}
	name, rest, _ := strings.Cut(line, " ")
	args := map[string]interface{}{}
	if rest = strings.TrimSpace(rest); rest != "" {
		if err := json.Unmarshal([]byte(rest), &args); err != nil {
			return "", nil, fmt.Errorf("arguments must be a JSON object: %v", err)
		}
	}
	return name, args, nil
}

func formatResult(r *tools.Result) string {
	if r.IsError {
		return "[error] " + r.Text()
	}
	return r.Text()
}

func writeHelp(w io.Writer, registry *tools.Registry) {
	for _, d := range registry.Descriptors() {
		fmt.Fprintf(w, "  %-18s %s\n", d.Name, d.Description)
	}
}

func toolCompleter(registry *tools.Registry) *readline.PrefixCompleter {
	names := registry.Names()
	items := make([]readline.PrefixCompleterInterface, 0, len(names)+2)
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("quit"))
	return readline.NewPrefixCompleter(items...)
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return consoleHistoryFile
	}
	return filepath.Join(home, consoleHistoryFile)
}
