package platform

import (
	"errors"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v66/github"
)

// Class is the bounded taxonomy every platform error collapses into.
type Class int

const (
	// ClassFatal: the intent failed; the message is preserved
	// verbatim and never auto-retried.
	ClassFatal Class = iota
	// ClassWarning: the target vanished between workflow start and
	// safe-output processing. Treated as success with skipped=true.
	ClassWarning
)

// IsNotFound reports whether err is a definitive "target does not
// exist" answer: an explicit 404 status, or a message containing
// "404" or "not found" in any letter case.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil &&
		ghErr.Response.StatusCode == http.StatusNotFound {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}

// Classify maps a platform call error into the taxonomy.
func Classify(err error) Class {
	if IsNotFound(err) {
		return ClassWarning
	}
	return ClassFatal
}
