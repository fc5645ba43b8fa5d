package intent

import "fmt"

// HandlerResult is the discriminated outcome of processing one intent.
// Expected domain failures are carried here, never as returned errors.
//
// Invariants:
//   - Deferred implies !Success (the intent will be retried in a later
//     pass with an updated temporary id map).
//   - Skipped implies Success (nothing needed to happen).
type HandlerResult struct {
	Type     Type   `json:"type"`
	Success  bool   `json:"success"`
	Deferred bool   `json:"deferred,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Staged   bool   `json:"staged,omitempty"`
	Error    string `json:"error,omitempty"`
	Warning  string `json:"warning,omitempty"`

	// Preview describes what a staged (dry-run) execution would have
	// done.
	Preview string `json:"preview,omitempty"`

	// URL and Number identify the entity the handler touched or
	// created, when there is one.
	URL    string `json:"url,omitempty"`
	Number int    `json:"number,omitempty"`
}

// Succeeded builds a plain success result.
func Succeeded(t Type) HandlerResult {
	return HandlerResult{Type: t, Success: true}
}

// Failed builds a fatal per-intent failure.
func Failed(t Type, format string, args ...any) HandlerResult {
	return HandlerResult{Type: t, Error: fmt.Sprintf(format, args...)}
}

// Deferred signals an unresolved temporary id dependency; the caller
// may retry the intent on a later pass.
func Deferred(t Type, ref string) HandlerResult {
	return HandlerResult{
		Type:     t,
		Deferred: true,
		Error:    fmt.Sprintf("temporary id %q not yet resolved", ref),
	}
}

// Skipped builds a success result for an intent that required no
// action, surfacing why as a warning.
func Skipped(t Type, format string, args ...any) HandlerResult {
	return HandlerResult{
		Type:    t,
		Success: true,
		Skipped: true,
		Warning: fmt.Sprintf(format, args...),
	}
}

// Staged builds the uniform dry-run result: validation passed and the
// mutating call was withheld.
func Staged(t Type, format string, args ...any) HandlerResult {
	return HandlerResult{
		Type:    t,
		Success: true,
		Staged:  true,
		Preview: fmt.Sprintf(format, args...),
	}
}

// Fatal reports whether the result is a hard per-intent failure (not
// deferred, not skipped).
func (r HandlerResult) Fatal() bool {
	return !r.Success && !r.Deferred
}
