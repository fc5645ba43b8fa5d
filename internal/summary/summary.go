// Package summary renders the batch outcome as markdown for the
// workflow step summary.
package summary

import (
	"fmt"
	"strings"

	"github.com/outpost-ci/outpost/internal/intent"
)

type bucket struct {
	heading string
	keep    func(intent.HandlerResult) bool
	line    func(intent.HandlerResult) string
}

var buckets = []bucket{
	{
		heading: "Completed",
		keep: func(r intent.HandlerResult) bool {
			return r.Success && !r.Skipped && !r.Staged
		},
		line: func(r intent.HandlerResult) string {
			s := fmt.Sprintf("`%s`", r.Type)
			if r.Number > 0 {
				s += fmt.Sprintf(" #%d", r.Number)
			}
			if r.URL != "" {
				s += " " + r.URL
			}
			return s
		},
	},
	{
		heading: "Staged (dry run)",
		keep:    func(r intent.HandlerResult) bool { return r.Staged },
		line: func(r intent.HandlerResult) string {
			return fmt.Sprintf("`%s`: %s", r.Type, r.Preview)
		},
	},
	{
		heading: "Skipped",
		keep:    func(r intent.HandlerResult) bool { return r.Skipped },
		line: func(r intent.HandlerResult) string {
			return fmt.Sprintf("`%s`: %s", r.Type, r.Warning)
		},
	},
	{
		heading: "Unresolved",
		keep:    func(r intent.HandlerResult) bool { return r.Deferred },
		line: func(r intent.HandlerResult) string {
			return fmt.Sprintf("`%s`: %s", r.Type, r.Error)
		},
	},
	{
		heading: "Failed",
		keep:    func(r intent.HandlerResult) bool { return r.Fatal() },
		line: func(r intent.HandlerResult) string {
			return fmt.Sprintf("`%s`: %s", r.Type, r.Error)
		},
	},
}

// Render produces the markdown summary for one processed batch.
func Render(results []intent.HandlerResult) string {
	var b strings.Builder
	b.WriteString("## Agent output processing\n\n")
	b.WriteString(countsLine(results))

	for _, bk := range buckets {
		var lines []string
		for _, r := range results {
			if bk.keep(r) {
				lines = append(lines, "- "+bk.line(r))
			}
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n%s\n", bk.heading, strings.Join(lines, "\n"))
	}
	return b.String()
}

func countsLine(results []intent.HandlerResult) string {
	var ok, staged, skipped, deferred, failed int
	for _, r := range results {
		switch {
		case r.Staged:
			staged++
		case r.Skipped:
			skipped++
		case r.Deferred:
			deferred++
		case r.Fatal():
			failed++
		default:
			ok++
		}
	}
	return fmt.Sprintf("%d completed, %d staged, %d skipped, %d unresolved, %d failed (%d total)\n",
		ok, staged, skipped, deferred, failed, len(results))
}

// AnyFatal reports whether at least one result is a hard failure.
// Drives the process exit code.
func AnyFatal(results []intent.HandlerResult) bool {
	for _, r := range results {
		if r.Fatal() {
			return true
		}
	}
	return false
}
