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

package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePathStringRejectsNullByte(t *testing.T) {
	if err := ValidatePathString("bad\x00path", 0); err == nil {
		t.Fatal("expected error for null byte path")
	}
}

func TestValidatePathStringRejectsEmpty(t *testing.T) {
	if err := ValidatePathString("   ", 0); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestValidatePathStringRejectsInvalidUTF8(t *testing.T) {
	if err := ValidatePathString("bad\xffpath", 0); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
}

func TestValidatePathStringLength(t *testing.T) {
	long := strings.Repeat("a", 20)
	if err := ValidatePathString(long, 10); err == nil {
		t.Fatal("expected error for overlong path")
	}
	if err := ValidatePathString(long, 0); err != nil {
		t.Fatalf("expected no limit when maxLen is zero, got %v", err)
	}
}

func TestAbsolute(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	got := Absolute("sub/../file.txt")
	if got != filepath.Join(wd, "file.txt") {
		t.Fatalf("unexpected absolute path %q", got)
	}
}
