// Package enforce validates aggregate properties of outgoing text
// against fixed policy limits. Every violation is self-describing
// (code, actual, limit) so an automated caller can correct itself
// without extra context.
package enforce

import (
	"fmt"
	"strings"

	"github.com/outpost-ci/outpost/internal/sanitize"
)

// Policy limits. Fixed constants, not configurable per intent.
const (
	MaxLength   = 65536
	MaxMentions = 10
	MaxLinks    = 50
)

// Error codes surfaced in violation messages.
const (
	CodeLength   = "E006"
	CodeMentions = "E007"
	CodeLinks    = "E008"
)

// Violation is one failed constraint. Its message carries the code,
// the measured value and the limit.
type Violation struct {
	Code   string
	Actual int
	Limit  int
}

func (v *Violation) Error() string {
	switch v.Code {
	case CodeLength:
		return fmt.Sprintf("%s: content length %d exceeds maximum %d", v.Code, v.Actual, v.Limit)
	case CodeMentions:
		return fmt.Sprintf("%s: content contains %d mentions, maximum is %d", v.Code, v.Actual, v.Limit)
	case CodeLinks:
		return fmt.Sprintf("%s: content contains %d links, maximum is %d", v.Code, v.Actual, v.Limit)
	default:
		return fmt.Sprintf("%s: value %d exceeds limit %d", v.Code, v.Actual, v.Limit)
	}
}

// Enforce checks text against every policy limit and returns the
// first violation. Handlers call it twice: on the raw body before any
// platform work, and again on the fully composed text (markers and
// footer included) before publishing.
func Enforce(text string) error {
	if n := len(text); n > MaxLength {
		return &Violation{Code: CodeLength, Actual: n, Limit: MaxLength}
	}
	if n := sanitize.CountMentionTokens(text); n > MaxMentions {
		return &Violation{Code: CodeMentions, Actual: n, Limit: MaxMentions}
	}
	if n := CountLinks(text); n > MaxLinks {
		return &Violation{Code: CodeLinks, Actual: n, Limit: MaxLinks}
	}
	return nil
}

// CountLinks counts http:// and https:// occurrences together,
// case-insensitively.
func CountLinks(text string) int {
	lower := strings.ToLower(text)
	return strings.Count(lower, "http://") + strings.Count(lower, "https://")
}
