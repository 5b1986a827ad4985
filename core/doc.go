// Package core provides the foundational conversation types shared across
// voicemesh. It defines:
//
//   - ChatMessage (immutable, uniquely identified conversation turns)
//   - ChatContext (ordered, append-only history with duplicate-safe merging)
//   - Role constants used by tasks, models and the turn loop
//
// The package intentionally keeps orchestration concerns (tasks, speech,
// model providers) out of scope so higher layers can depend on it without
// cycles.
package core
