// Package dlep implements the core DLEP (RFC 8175) session engine: the
// wire codec, the extension registry, the TLV parser/writer, the
// local-neighbor table, and the per-peer session state machine.
//
// DLEP exchanges link-layer metrics between a router process and an
// attached radio over UDP discovery plus a TCP session. This package
// models both roles with a shared session skeleton (fsm.go, session.go)
// and leaves everything protocol-extensible — new signals and TLVs are
// contributed by Extension implementations registered into a Registry
// before any Session is created.
package dlep
