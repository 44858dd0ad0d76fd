// Package val models JSON values as a closed type.
//
// Replay comparison needs true structural equality over whatever JSON
// a historical tool call recorded, so the value space is sealed: only
// Null, Bool, Int, Float, String, Array, and Object implement Value.
// Equality is defined on the structure (Equal), never on serialized
// bytes, which makes key order irrelevant by construction.
//
// MarshalCanonical produces a deterministic wire form (RFC 8785 key
// ordering, NFC-normalized strings, no HTML escaping) used for golden
// files, archive lines, and content addressing.
package val
