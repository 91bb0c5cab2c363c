// Package session implements the bounded, compressible context store that
// backs every orchestrator session and every isolated sub-execution. A Store
// owns an append-only sequence of context entries, a goals side channel, a
// shared key/value memory and an overflow archive.
//
// Contract:
//   - Entries are immutable once appended; only compression removes them, by
//     archiving the removed span verbatim to the session directory.
//   - Messages() yields all system entries (append order) before all
//     non-system entries (append order); thought entries never reach the
//     model; goals are concatenated as a final synthesized message.
//   - Tool errors are additionally journaled to an append-only file and are
//     never discarded.
//   - Persistence is debounced by a minimum save interval with an explicit
//     Save() for checkpoints.
package session
