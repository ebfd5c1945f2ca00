// Package value provides the typed property values carried by instance nodes
// and their canonical tagged-value JSON encoding.
//
// This package contains value definitions and encoders only. It imports
// nothing internal, so every other package can depend on it.
//
// Every externalized value is written as a tagged pair:
//
//	{"type":"vector3","value":[1,2,3]}
//
// The tag keeps type information unambiguous across a write/read round
// trip: a bare array of three numbers could otherwise be a vector, a color
// or some other 3-tuple.
//
// Key constraints:
//   - Object keys are sorted by UTF-16 code units (RFC 8785 ordering)
//   - Strings are written byte for byte, never normalized or HTML escaped;
//     invalid UTF-8 has no encoding and is rejected
//   - Non-finite floats have no encoding and are rejected
//   - float32 payloads are printed with float32 precision so they parse back
//     to the identical bit pattern
package value
