// Package resolve turns agent-authored target references into concrete
// platform coordinates. A reference is either a permanent number or a
// temporary id ("aw_" placeholder) naming an entity a create-type
// intent earlier in the same batch was asked to produce.
package resolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Temporary ids are aw_ followed by 3-8 alphanumerics, matched
// case-insensitively, with an optional leading '#'.
var (
	tempIDPattern     = regexp.MustCompile(`(?i)^aw_[a-z0-9]{3,8}$`)
	tempIDLoosePrefix = regexp.MustCompile(`(?i)^#?aw_`)
	tempIDInText      = regexp.MustCompile(`(?i)#(aw_[a-z0-9]{3,8})\b`)
)

// Reference is a resolved target: either an issue/PR coordinate, a
// discussion coordinate, or a project draft item id.
type Reference struct {
	Owner       string
	Repo        string
	Number      int
	DraftItemID string

	// IsDiscussion records the entity kind at registration time, so a
	// later intent addressing the id is routed to the discussion API
	// instead of the issues endpoint.
	IsDiscussion bool
}

// Slug returns the "owner/repo" form of the coordinate.
func (r Reference) Slug() string { return r.Owner + "/" + r.Repo }

// Map is the batch-scoped temporary id map. Keys are normalized to
// lowercase. The map only grows during a batch; bindings are never
// overwritten or removed until the run ends.
type Map struct {
	entries map[string]Reference
}

// NewMap returns an empty batch-scoped map.
func NewMap() *Map {
	return &Map{entries: make(map[string]Reference)}
}

// Register binds id to ref. The first binding wins; re-registering an
// already-bound id is reported as an error because it means two create
// intents claimed the same placeholder.
func (m *Map) Register(id string, ref Reference) error {
	key, ok := normalize(id)
	if !ok {
		return fmt.Errorf("invalid temporary id %q", id)
	}
	if _, exists := m.entries[key]; exists {
		return fmt.Errorf("temporary id %q already bound", id)
	}
	m.entries[key] = ref
	return nil
}

// Lookup returns the binding for id, if present. id may carry a
// leading '#' and any letter case.
func (m *Map) Lookup(id string) (Reference, bool) {
	key, ok := normalize(id)
	if !ok {
		return Reference{}, false
	}
	ref, found := m.entries[key]
	return ref, found
}

// Len reports how many ids are bound.
func (m *Map) Len() int { return len(m.entries) }

func normalize(id string) (string, bool) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "#")
	if !tempIDPattern.MatchString(id) {
		return "", false
	}
	return strings.ToLower(id), true
}

// Result is the outcome of resolving one reference.
//
// The three shapes are:
//   - Resolved != nil: the target is known.
//   - Resolved == nil, WasTemporaryID, Err == nil: a well-formed
//     temporary id that is not bound yet — the deferral signal.
//   - Err != nil: the reference is malformed (distinct from
//     unresolved; never eligible for a later pass).
type Result struct {
	Resolved       *Reference
	WasTemporaryID bool
	Err            error
}

// Resolve interprets ref against m. Plain numbers resolve directly to
// the fallback owner/repo. Anything else must be a well-formed
// temporary id; a well-formed id absent from the map yields the
// deferral shape rather than an error.
func Resolve(ref string, m *Map, fallbackOwner, fallbackRepo string) Result {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Result{Err: fmt.Errorf("empty target reference")}
	}

	if n, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		if n <= 0 {
			return Result{Err: fmt.Errorf("target number %d out of range", n)}
		}
		return Result{Resolved: &Reference{Owner: fallbackOwner, Repo: fallbackRepo, Number: n}}
	}

	stripped := strings.TrimPrefix(ref, "#")
	if !tempIDPattern.MatchString(stripped) {
		if tempIDLoosePrefix.MatchString(ref) {
			return Result{Err: fmt.Errorf("malformed temporary id %q: want aw_ followed by 3-8 alphanumerics", ref)}
		}
		return Result{Err: fmt.Errorf("unrecognized target reference %q", ref)}
	}

	resolved, found := m.Lookup(stripped)
	if !found {
		return Result{WasTemporaryID: true}
	}
	if resolved.Owner == "" {
		resolved.Owner = fallbackOwner
	}
	if resolved.Repo == "" {
		resolved.Repo = fallbackRepo
	}
	return Result{Resolved: &resolved, WasTemporaryID: true}
}

// ReplaceReferences rewrites every "#aw_xxx" occurrence in text whose
// id is bound in m to the resolved number: "#N" for the active repo,
// "owner/repo#N" across repos. Unbound ids are left as literal text —
// this substitution is cosmetic; number-field resolution is what gates
// deferral.
func ReplaceReferences(text string, m *Map, repoSlug string) string {
	if text == "" || m == nil || m.Len() == 0 {
		return text
	}
	return tempIDInText.ReplaceAllStringFunc(text, func(match string) string {
		ref, found := m.Lookup(match)
		if !found || ref.Number == 0 {
			return match
		}
		if ref.Owner != "" && ref.Slug() != repoSlug {
			return fmt.Sprintf("%s#%d", ref.Slug(), ref.Number)
		}
		return fmt.Sprintf("#%d", ref.Number)
	})
}
