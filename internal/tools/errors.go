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
	"errors"
	"fmt"
	"time"

	apperrors "toolbridge/internal/errors"
)

// Common tool errors
var (
	// ErrUnknownTool indicates the requested tool is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrDuplicateTool indicates a tool name was registered twice.
	ErrDuplicateTool = errors.New("duplicate tool")

	// ErrInvalidArguments indicates tool arguments are invalid or malformed.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrToolTimeout indicates a handler exceeded its configured timeout.
	ErrToolTimeout = errors.New("tool timed out")
)

// NewUnknownToolError reports a dispatch to an unregistered name.
func NewUnknownToolError(name string) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeUnknownTool, "", fmt.Errorf("%w: %s", ErrUnknownTool, name))
}

// NewDuplicateToolError reports a second registration under the same name.
func NewDuplicateToolError(name string) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeDuplicateTool, "", fmt.Errorf("%w: %s", ErrDuplicateTool, name))
}

// NewHandlerFault wraps an error raised while a handler ran.
func NewHandlerFault(toolName string, err error) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeToolExecution, fmt.Sprintf("tool %s failed", toolName), err)
}

// NewTimeoutError reports a handler that outlived its timeout.
func NewTimeoutError(toolName string, timeout time.Duration) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeTimeout, "", fmt.Errorf("%w: %s exceeded %s", ErrToolTimeout, toolName, timeout))
}

func invalidArgument(field, reason string) error {
	if reason == "" {
		return apperrors.Wrap(apperrors.CodeInvalidArguments, "", fmt.Errorf("%w: missing or invalid '%s' parameter", ErrInvalidArguments, field))
	}
	return apperrors.Wrap(apperrors.CodeInvalidArguments, "", fmt.Errorf("%w: missing or invalid '%s' parameter (%s)", ErrInvalidArguments, field, reason))
}
