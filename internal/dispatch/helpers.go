package dispatch

import (
	"strings"

	"github.com/outpost-ci/outpost/internal/enforce"
	"github.com/outpost-ci/outpost/internal/intent"
	"github.com/outpost-ci/outpost/internal/resolve"
	"github.com/outpost-ci/outpost/internal/sanitize"
)

// targetKind records what kind of entity a resolved target is known
// to be. The comment handler routes on it.
type targetKind int

const (
	// kindUnknown: an explicit number; the platform has to
	// disambiguate issue/PR from discussion.
	kindUnknown targetKind = iota
	kindIssue
	kindDiscussion
)

// target is the outcome of resolving an intent's target reference.
type target struct {
	ref  *resolve.Reference
	kind targetKind

	// fail is non-nil when resolution produced a terminal or deferred
	// result the handler should return as-is.
	fail *intent.HandlerResult
}

// resolveTarget applies the target-resolution rules shared by every
// item-addressed handler: pinned number, explicit number (gated by
// target mode), temporary id, or the ambient triggering item.
func (d *Dispatcher) resolveTarget(it *intent.Intent, m *resolve.Map) target {
	owner, repo := d.exec.Owner, d.exec.Repo
	if it.Repo != "" {
		o, r, ok := intent.SplitRepo(it.Repo)
		if !ok {
			res := intent.Failed(it.Type, "invalid repo slug %q", it.Repo)
			return target{fail: &res}
		}
		owner, repo = o, r
	}

	if pinned, ok := d.cfg.PinnedTarget(); ok {
		return target{ref: &resolve.Reference{Owner: owner, Repo: repo, Number: pinned}, kind: kindUnknown}
	}

	raw := it.ItemNumber.String()
	if raw == "" {
		if d.exec.TriggeringNumber <= 0 {
			res := intent.Failed(it.Type, "no target: intent has no item_number and the workflow was not item-triggered")
			return target{fail: &res}
		}
		kind := kindIssue
		if d.exec.IsDiscussion {
			kind = kindDiscussion
		}
		return target{ref: &resolve.Reference{Owner: owner, Repo: repo, Number: d.exec.TriggeringNumber}, kind: kind}
	}

	r := resolve.Resolve(raw, m, owner, repo)
	if r.Err != nil {
		res := intent.Failed(it.Type, "invalid target reference: %v", r.Err)
		return target{fail: &res}
	}
	if r.Resolved == nil {
		res := intent.Deferred(it.Type, raw)
		return target{fail: &res}
	}

	// Temporary ids always address batch-created entities; explicit
	// numbers are only honored when the target mode allows them.
	if !r.WasTemporaryID && d.cfg.Target == "triggering" && r.Resolved.Number != d.exec.TriggeringNumber {
		res := intent.Failed(it.Type, "explicit target #%d not permitted in triggering mode", r.Resolved.Number)
		return target{fail: &res}
	}

	// A temporary id binding knows what it created; an explicit number
	// does not say what it names.
	kind := kindUnknown
	if r.WasTemporaryID {
		kind = kindIssue
		if r.Resolved.IsDiscussion {
			kind = kindDiscussion
		}
	}
	return target{ref: r.Resolved, kind: kind}
}

// composeBody runs the shared text pipeline in its required order:
// constraint check on the raw text (fail fast, before any platform
// work), sanitization, temporary id substitution, marker and footer
// append, then a second constraint check on the final composed text.
func (d *Dispatcher) composeBody(t intent.Type, raw string, m *resolve.Map) (string, *intent.HandlerResult) {
	if err := enforce.Enforce(raw); err != nil {
		res := intent.Failed(t, "body rejected: %v", err)
		return "", &res
	}

	body := d.sanitizer.Sanitize(raw)
	body = resolve.ReplaceReferences(body, m, d.exec.Slug())

	if d.footerWanted(body) {
		body = sanitize.AppendFooter(body, sanitize.Footer(d.cfg.Footer.Template, d.exec.RunURL))
	}
	body = sanitize.AppendMarkers(body, d.cfg.Tracker, d.exec.RunID)

	if err := enforce.Enforce(body); err != nil {
		res := intent.Failed(t, "composed body rejected: %v", err)
		return "", &res
	}
	return body, nil
}

func (d *Dispatcher) footerWanted(body string) bool {
	switch strings.ToLower(d.cfg.Footer.Mode) {
	case "always":
		return true
	case "never":
		return false
	default:
		return body != ""
	}
}

// allowed reports whether value passes an allow-list. An empty list
// allows everything.
func allowed(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}

// filterAllowed keeps the values present on the allow-list, in input
// order. An empty list keeps everything.
func filterAllowed(list []string, values []string) []string {
	if len(list) == 0 {
		return values
	}
	var kept []string
	for _, v := range values {
		if allowed(list, v) {
			kept = append(kept, v)
		}
	}
	return kept
}
