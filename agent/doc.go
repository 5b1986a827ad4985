// Package agent implements the conversational orchestrator that binds
// tasks, tools, models and speech output into a turn loop. The agent owns
// the current-task slot that inline sub-tasks swap during delegation and
// plays finished replies out in completion order.
package agent
