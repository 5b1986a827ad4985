// Package model defines the minimal language model boundary consumed by the
// turn loop: a normalized Request (chat history, tool definitions),
// streaming Response chunks with optional tool calls, and the
// Model interface. Provider adapters live in the openai and anthropic
// subpackages; MockModel supports tests and examples without network access.
package model
