// Package patch parses unified diff text and applies it to an
// in-memory workspace tree.
//
// Application is strict: context and deletion lines must match the
// target exactly, with no fuzz. The only tolerated absence is a
// missing target file when the patch is a pure addition, which
// creates the file. All failures surface as *ApplyError so callers
// replaying recorded history can decide whether to skip or abort.
package patch
