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
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	coremkdir "github.com/u-root/u-root/pkg/core/mkdir"

	"toolbridge/internal/capture"
	"toolbridge/internal/eval"
	"toolbridge/internal/paths"
)

const maxPathLength = 4096

// BuiltinOptions tunes the built-in handlers.
type BuiltinOptions struct {
	// IncludeEvaluateOutput appends what an evaluation printed to its result.
	IncludeEvaluateOutput bool
}

type evaluateArgs struct {
	Expression string `json:"expression" jsonschema:"description=Expression to evaluate,required" validate:"required"`
}

type readFileArgs struct {
	Path string `json:"path" jsonschema:"description=Path of the file to read,required" validate:"required"`
}

type writeFileArgs struct {
	Path    string  `json:"path" jsonschema:"description=Path of the file to write,required" validate:"required"`
	Content *string `json:"content" jsonschema:"description=Text to write,required" validate:"required"`
	Append  bool    `json:"append,omitempty" jsonschema:"description=Append instead of truncating,default=false"`
}

type listDirectoryArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory to list,default=."`
}

type executeCommandArgs struct {
	Command string   `json:"command" jsonschema:"description=Program to run,required" validate:"required"`
	Args    []string `json:"args,omitempty" jsonschema:"description=Arguments passed to the program"`
	Dir     string   `json:"dir,omitempty" jsonschema:"description=Working directory for the program"`
}

type fileInfoArgs struct {
	Path string `json:"path" jsonschema:"description=Path to inspect,required" validate:"required"`
}

type createDirectoryArgs struct {
	Path    string `json:"path" jsonschema:"description=Directory to create,required" validate:"required"`
	Parents bool   `json:"parents,omitempty" jsonschema:"description=Create missing parent directories,default=false"`
}

type greetArgs struct {
	Name string `json:"name,omitempty" jsonschema:"description=Who to greet,default=World"`
}

// RegisterBuiltins adds the built-in tools to r in their listing order.
func RegisterBuiltins(r *Registry, opts BuiltinOptions) error {
	builtins := []Tool{
		{
			Descriptor: Descriptor{
				Name:        "evaluate",
				Description: "Evaluate an s-expression and return its printed value",
				InputSchema: mustSchemaParametersFor[evaluateArgs](),
			},
			Handler: evaluateHandler(opts.IncludeEvaluateOutput),
		},
		{
			Descriptor: Descriptor{
				Name:        "read_file",
				Description: "Read a text file and return its contents",
				InputSchema: mustSchemaParametersFor[readFileArgs](),
			},
			Handler: HandlerFunc(readFile),
		},
		{
			Descriptor: Descriptor{
				Name:        "write_file",
				Description: "Write text to a file, truncating it unless append is set",
				InputSchema: mustSchemaParametersFor[writeFileArgs](),
			},
			Handler: HandlerFunc(writeFile),
		},
		{
			Descriptor: Descriptor{
				Name:        "list_directory",
				Description: "List the entries of a directory with their sizes",
				InputSchema: mustSchemaParametersFor[listDirectoryArgs](),
			},
			Handler: HandlerFunc(listDirectory),
		},
		{
			Descriptor: Descriptor{
				Name:        "execute_command",
				Description: "Run a program without a shell and report its exit code and output",
				InputSchema: mustSchemaParametersFor[executeCommandArgs](),
			},
			Handler: HandlerFunc(executeCommand),
		},
		{
			Descriptor: Descriptor{
				Name:        "file_info",
				Description: "Describe a path: existence, type, size, mode and modification time",
				InputSchema: mustSchemaParametersFor[fileInfoArgs](),
			},
			Handler: HandlerFunc(fileInfo),
		},
		{
			Descriptor: Descriptor{
				Name:        "create_directory",
				Description: "Create a directory, optionally with its parents",
				InputSchema: mustSchemaParametersFor[createDirectoryArgs](),
			},
			Handler: HandlerFunc(createDirectory),
		},
		{
			Descriptor: Descriptor{
				Name:        "greet",
				Description: "Return a greeting as two text segments",
				InputSchema: mustSchemaParametersFor[greetArgs](),
			},
			Handler: HandlerFunc(greet),
		},
	}
	for _, tool := range builtins {
		if err := r.RegisterTool(tool); err != nil {
			return err
		}
	}
	return nil
}

func evaluateHandler(includeOutput bool) HandlerFunc {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		in, err := unmarshalAndValidate[evaluateArgs](args)
		if err != nil {
			return nil, err
		}
		out := capture.Run(ctx, func(ctx context.Context) (string, error) {
			v, err := eval.Eval(ctx, in.Expression)
			if err != nil {
				return "", err
			}
			return eval.Display(v), nil
		})
		if out.Err != nil {
			return nil, out.Err
		}
		if !includeOutput {
			return out, nil
		}
		result := TextResult(out.Value)
		if out.Stdout != "" {
			result.Segments = append(result.Segments, "stdout:\n"+out.Stdout)
		}
		if out.Stderr != "" {
			result.Segments = append(result.Segments, "stderr:\n"+out.Stderr)
		}
		return result, nil
	}
}

func readFile(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	in, err := unmarshalAndValidate[readFileArgs](args)
	if err != nil {
		return nil, err
	}
	if err := checkPath(in.Path); err != nil {
		return nil, err
	}
	info, err := os.Stat(in.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path '%s' is a directory, not a file", in.Path)
	}
	limits := CurrentLimits()
	if info.Size() > limits.MaxFileSizeBytes {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", limits.MaxFileSizeBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return string(content), nil
}

func writeFile(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	in, err := unmarshalAndValidate[writeFileArgs](args)
	if err != nil {
		return nil, err
	}
	if err := checkPath(in.Path); err != nil {
		return nil, err
	}
	content := *in.Content
	limits := CurrentLimits()
	if int64(len(content)) > limits.MaxFileSizeBytes {
		return nil, fmt.Errorf("content exceeds maximum size of %d bytes", limits.MaxFileSizeBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	verb := "wrote"
	if in.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		verb = "appended"
	}
	f, err := os.OpenFile(in.Path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Successfully %s %d bytes to %s", verb, len(content), in.Path), nil
}

func listDirectory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	in, err := unmarshalAndValidate[listDirectoryArgs](args)
	if err != nil {
		return nil, err
	}
	path := in.Path
	if path == "" {
		path = "."
	}
	if err := checkPath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("path not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path '%s' is not a directory", path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	if len(entries) == 0 {
		return "Directory is empty", nil
	}
	limits := CurrentLimits()
	if len(entries) > limits.MaxDirectoryEntries {
		return nil, fmt.Errorf("directory has %d entries, more than the limit of %d", len(entries), limits.MaxDirectoryEntries)
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			lines = append(lines, e.Name()+"/ (directory)")
			continue
		}
		var size int64
		if fi, err := e.Info(); err == nil {
			size = fi.Size()
		}
		lines = append(lines, fmt.Sprintf("%s (%d bytes)", e.Name(), size))
	}
	return strings.Join(lines, "\n"), nil
}

func executeCommand(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	in, err := unmarshalAndValidate[executeCommandArgs](args)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Command) == "" {
		return nil, invalidArgument("command", "")
	}
	if in.Dir != "" {
		if err := checkPath(in.Dir); err != nil {
			return nil, err
		}
	}

	var stdout, stderr strings.Builder
	cmd := exec.CommandContext(ctx, in.Command, in.Args...)
	cmd.Dir = in.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", in.Command, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return fmt.Sprintf("Exit code: %d\n\nSTDOUT:\n%s\n\nSTDERR:\n%s",
		exitCode, filterOutput(stdout.String()), filterOutput(stderr.String())), nil
}

func fileInfo(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	in, err := unmarshalAndValidate[fileInfoArgs](args)
	if err != nil {
		return nil, err
	}
	if err := checkPath(in.Path); err != nil {
		return nil, err
	}

	lines := []string{"path: " + paths.Absolute(in.Path)}
	info, err := os.Lstat(in.Path)
	if err != nil {
		lines = append(lines, "exists: false")
		return strings.Join(lines, "\n"), nil
	}
	lines = append(lines,
		"exists: true",
		"type: "+fileType(info.Mode()),
		fmt.Sprintf("size: %d", info.Size()),
		"mode: "+info.Mode().String(),
		"modified: "+info.ModTime().Format(time.RFC3339),
	)
	lines = append(lines, ownershipLines(in.Path)...)
	return strings.Join(lines, "\n"), nil
}

func fileType(mode os.FileMode) string {
	switch {
	case mode.IsRegular():
		return "file"
	case mode.IsDir():
		return "directory"
	case mode&os.ModeSymlink != 0:
		return "symlink"
	default:
		return "other"
	}
}

func createDirectory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	in, err := unmarshalAndValidate[createDirectoryArgs](args)
	if err != nil {
		return nil, err
	}
	if err := checkPath(in.Path); err != nil {
		return FailureResult(fmt.Sprintf("Failed to create directory '%s': %v", in.Path, err)), nil
	}

	if !in.Parents {
		if _, err := os.Lstat(in.Path); err == nil {
			return FailureResult(fmt.Sprintf("Failed to create directory '%s': already exists", in.Path)), nil
		}
	}

	cmdArgs := []string{}
	if in.Parents {
		cmdArgs = append(cmdArgs, "-p")
	}
	cmdArgs = append(cmdArgs, filepath.Clean(in.Path))
	if _, err := runCoreCommand(ctx, coremkdir.New(), cmdArgs); err != nil {
		return FailureResult(fmt.Sprintf("Failed to create directory '%s': %v", in.Path, err)), nil
	}
	if info, err := os.Stat(in.Path); err != nil || !info.IsDir() {
		return FailureResult(fmt.Sprintf("Failed to create directory '%s': not created", in.Path)), nil
	}
	return fmt.Sprintf("Created directory %s", in.Path), nil
}

func greet(_ context.Context, args map[string]interface{}) (interface{}, error) {
	in, err := unmarshalAndValidate[greetArgs](args)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "World"
	}
	return TextResults(
		fmt.Sprintf("Hello, %s!", name),
		"This greeting is returned as two separate text segments.",
	), nil
}

func checkPath(path string) error {
	if err := paths.ValidatePathString(path, maxPathLength); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
