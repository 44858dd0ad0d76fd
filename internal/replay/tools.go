package replay

import (
	"fmt"

	"github.com/roach88/rewind/internal/temporal"
	"github.com/roach88/rewind/internal/tree"
	"github.com/roach88/rewind/internal/val"
)

// ToolContext is the execution scope for one replayed tool call: the
// reconstructed workspace plus the injected time and randomness
// capabilities. Tools read time and randomness only through the scope.
type ToolContext struct {
	Tree  *tree.Tree
	Clock temporal.Clock
	Rand  RandomSource
}

// toolFunc executes one tool against the scope. Tool failures are
// values, not errors: a missing file or a bad argument becomes part of
// the returned output, exactly as the recorded tool reported it.
type toolFunc func(scope ToolContext, args val.Object) val.Value

// builtinTools maps recorded tool names to their replay
// implementations.
var builtinTools = map[string]toolFunc{
	"read_file":      replayReadFile,
	"write_file":     replayWriteFile,
	"list_directory": replayListDirectory,
}

// executeTool dispatches one call through the tool table. An unknown
// name yields a marker output rather than an engine failure, so the
// comparison still runs and the report stays structured.
func executeTool(scope ToolContext, name string, args val.Object) val.Value {
	fn, ok := builtinTools[name]
	if !ok {
		return errorOutput("replay not implemented for tool: " + name)
	}
	return fn(scope, args)
}

// replayReadFile handles read_file {path} -> {"content": ...}.
func replayReadFile(scope ToolContext, args val.Object) val.Value {
	path, err := stringArg(args, "path")
	if err != nil {
		return errorOutput(err.Error())
	}
	content, err := scope.Tree.ReadFile(path)
	if err != nil {
		return errorOutput(err.Error())
	}
	return val.Object{"content": val.String(content)}
}

// replayWriteFile handles write_file {path, content} -> {"success": true}.
// The write stamps the file with the scope clock's now, which during
// replay is the recorded call's valid time.
func replayWriteFile(scope ToolContext, args val.Object) val.Value {
	path, err := stringArg(args, "path")
	if err != nil {
		return writeFailure(err)
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return writeFailure(err)
	}
	if err := scope.Tree.WriteFile(path, content, scope.Clock.Now()); err != nil {
		return writeFailure(err)
	}
	return val.Object{"success": val.Bool(true)}
}

// replayListDirectory handles list_directory {path} -> {"entries": [...]}.
// Entries come back sorted from the tree, so the output is stable.
func replayListDirectory(scope ToolContext, args val.Object) val.Value {
	path, err := stringArg(args, "path")
	if err != nil {
		return errorOutput(err.Error())
	}
	names, err := scope.Tree.ReadDir(path)
	if err != nil {
		return errorOutput(err.Error())
	}
	entries := make(val.Array, len(names))
	for i, name := range names {
		entries[i] = val.String(name)
	}
	return val.Object{"entries": entries}
}

// errorOutput is the failure shape shared by read_file and
// list_directory.
func errorOutput(msg string) val.Object {
	return val.Object{"error": val.String(msg)}
}

// writeFailure is write_file's failure shape, which carries an
// explicit success flag alongside the reason.
func writeFailure(err error) val.Object {
	return val.Object{
		"success": val.Bool(false),
		"error":   val.String(err.Error()),
	}
}

// stringArg extracts a required string argument.
func stringArg(args val.Object, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(val.String)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return string(s), nil
}
