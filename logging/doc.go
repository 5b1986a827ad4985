// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer VoiceMeshLogger with contextual
// helpers (session, task, speech) and domain specific logging helpers for
// tools, models and task delegation.
package logging
