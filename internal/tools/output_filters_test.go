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
	"strings"
	"testing"
)

func TestFilterOutput(t *testing.T) {
	defer ConfigureOutputFilters(DefaultOutputFilterConfig())

	tests := []struct {
		name   string
		config OutputFilterConfig
		input  string
		want   string
	}{
		{
			name:   "strips ansi",
			config: DefaultOutputFilterConfig(),
			input:  "\x1b[31mred\x1b[0m text",
			want:   "red text",
		},
		{
			name:   "strips control but keeps whitespace",
			config: DefaultOutputFilterConfig(),
			input:  "a\x00b\tc\nd\x07",
			want:   "ab\tc\nd",
		},
		{
			name:   "keeps ansi when disabled",
			config: OutputFilterConfig{MaxChars: 100},
			input:  "\x1b[1mbold",
			want:   "\x1b[1mbold",
		},
		{
			name:   "truncates by rune",
			config: OutputFilterConfig{MaxChars: 3},
			input:  "héllo",
			want:   "hél" + truncatedMarker,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ConfigureOutputFilters(tt.config)
			if got := filterOutput(tt.input); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestConfigureOutputFiltersDefaultsMaxChars(t *testing.T) {
	defer ConfigureOutputFilters(DefaultOutputFilterConfig())
	ConfigureOutputFilters(OutputFilterConfig{})
	if got := CurrentOutputFilters().MaxChars; got != defaultMaxOutputChars {
		t.Fatalf("expected default max chars, got %d", got)
	}
	long := strings.Repeat("x", defaultMaxOutputChars+10)
	if !strings.HasSuffix(filterOutput(long), truncatedMarker) {
		t.Fatal("expected long output to be truncated")
	}
}

func TestConfigureLimitsNormalizes(t *testing.T) {
	defer ConfigureLimits(DefaultLimits())
	ConfigureLimits(Limits{MaxFileSizeBytes: -1, MaxDirectoryEntries: 5})
	got := CurrentLimits()
	if got.MaxFileSizeBytes != defaultMaxFileSizeBytes || got.MaxDirectoryEntries != 5 {
		t.Fatalf("unexpected limits %+v", got)
	}
}
