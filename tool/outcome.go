package tool

// Outcome tags a tool's return value with voicing guidance for the turn
// loop. Bookkeeping calls (for example the terminal operations of an inline
// task) return a silent outcome so the orchestrator does not synthesize a
// spoken reply purely for them; regular tools may return plain values, which
// the loop treats as spoken.
type Outcome struct {
	Value  any  `json:"value,omitempty"`
	Silent bool `json:"silent"`
}

// Silent wraps v in an outcome that suppresses reply synthesis.
func Silent(v any) Outcome { return Outcome{Value: v, Silent: true} }

// Spoken wraps v in an outcome that allows reply synthesis.
func Spoken(v any) Outcome { return Outcome{Value: v, Silent: false} }

// IsSilent reports whether a tool result requests the turn loop to stay quiet.
func IsSilent(result any) bool {
	o, ok := result.(Outcome)
	return ok && o.Silent
}

// Unwrap returns the underlying value of an Outcome, or the result itself
// when it is not tagged.
func Unwrap(result any) any {
	if o, ok := result.(Outcome); ok {
		return o.Value
	}
	return result
}
