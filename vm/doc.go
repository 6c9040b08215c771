// Package vm implements the Macaw call machinery.
//
// This package contains:
//   - Tagged cell representation for call arguments and returns
//   - The Signature aggregate: positional store, named store, call metadata
//   - A two-tier cell allocator with pooled fixed-size blocks
//   - The object model: classes with function-valued dispatch slots
//   - A mark-sweep heap for strings and objects
//   - The autoboxing coercion engine between the four cell kinds
package vm
