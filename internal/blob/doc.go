// Package blob stores snapshot payloads outside the database,
// addressed by content hash. A ref is "sha256:" plus the hex digest
// of the payload under a domain-separated hash, so identical payloads
// share one blob and refs from other hash domains never collide.
package blob
