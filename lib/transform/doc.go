// Package transform implements the optional content filters an endpoint
// applies to outgoing messages before they enter a ring buffer.
//
// Three independent filters exist and are always evaluated in this order:
//
//   - Reverse: the source message is traversed from its last byte to its first.
//   - Rot13: every traversed ASCII letter is rotated by 13 places.
//   - Base64: the traversed bytes are grouped by three and each group is
//     written as four symbols of the standard alphabet, padded with '='.
//
// The filters are obfuscation helpers for demos, not security primitives.
//
// The numeric values of Kind match the control request numbers of the
// original character device, so the same numbers can be carried over RPC.
package transform
