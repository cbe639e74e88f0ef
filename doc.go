// Package tablepb is a table-driven protobuf runtime: a single decoder and
// a single encoder, shared by every message type, dispatching through a
// compiled table rather than per-type generated code. Records live in an
// arena and are addressed by raw offset; presence is tracked by a has-bits
// prefix; decoding suspends and resumes at arbitrary chunk boundaries.
//
// Compile a descriptor into a [Type], mint a [Message] from an [arena.Arena],
// and decode into it with a [Decoder] (push-mode) or [Type.Unmarshal] (flat
// buffer). cmd/tablepb-gen turns a descriptor set into a source file binding
// named Go identifiers to the same compiled tables, for callers who want
// symbols instead of strings and field numbers.
package tablepb
