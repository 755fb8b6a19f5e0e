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

package tools

import (
	"regexp"
	"strings"
	"sync"
)

// OutputFilterConfig controls how process output is cleaned before it is
// returned to a client.
type OutputFilterConfig struct {
	MaxChars     int
	StripANSI    bool
	StripControl bool
}

const (
	defaultMaxOutputChars = 4000
	truncatedMarker       = "\n[output truncated]"
)

var (
	outputFiltersMu sync.RWMutex
	outputFilters   = DefaultOutputFilterConfig()
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]|\x1b\][^\x1b\x07]*(?:\x07|\x1b\\)`)
)

func DefaultOutputFilterConfig() OutputFilterConfig {
	return OutputFilterConfig{
		MaxChars:     defaultMaxOutputChars,
		StripANSI:    true,
		StripControl: true,
	}
}

func ConfigureOutputFilters(config OutputFilterConfig) {
	outputFiltersMu.Lock()
	defer outputFiltersMu.Unlock()
	if config.MaxChars <= 0 {
		config.MaxChars = defaultMaxOutputChars
	}
	outputFilters = config
}

func CurrentOutputFilters() OutputFilterConfig {
	outputFiltersMu.RLock()
	defer outputFiltersMu.RUnlock()
	return outputFilters
}

// filterOutput applies the configured filters to one stream of process
// output and marks it when it had to be cut.
func filterOutput(output string) string {
	config := CurrentOutputFilters()
	if config.StripANSI {
		output = ansiPattern.ReplaceAllString(output, "")
	}
	if config.StripControl {
		output = stripControlChars(output)
	}
	if cut, truncated := truncateRunes(output, config.MaxChars); truncated {
		return cut + truncatedMarker
	}
	return output
}

func stripControlChars(input string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, input)
}

func truncateRunes(input string, max int) (string, bool) {
	if max <= 0 || len(input) <= max {
		return input, false
	}
	runes := []rune(input)
	if len(runes) <= max {
		return input, false
	}
	return string(runes[:max]), true
}
