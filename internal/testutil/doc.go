// Package testutil provides shared fakes and builders for tests: an
// in-memory task runtime and speech unit that record interactions without a
// model or audio pipeline.
package testutil
