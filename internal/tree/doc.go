// Package tree implements the in-memory workspace: a hierarchy of
// files and directories reconstructed from snapshots and diffs.
//
// A Tree is owned by exactly one reconstruction or replay at a time
// and is discarded afterwards; nothing here persists. All operations
// take absolute-style paths ("/src/main.go") and reject traversal
// segments outright, so no path can resolve outside the root.
//
// The snapshot codec (EncodeSnapshot/DecodeSnapshot) defines the wire
// format: gzip-compressed JSON of {"root": <node>}, with a legacy
// uncompressed variant accepted on read.
package tree
