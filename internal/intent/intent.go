package intent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Type discriminates the closed set of intent variants an agent may emit.
type Type string

const (
	TypeCreateIssue         Type = "create_issue"
	TypeCreateDiscussion    Type = "create_discussion"
	TypeAddComment          Type = "add_comment"
	TypeCloseIssue          Type = "close_issue"
	TypeClosePullRequest    Type = "close_pull_request"
	TypeLinkSubIssue        Type = "link_sub_issue"
	TypeCreateReviewComment Type = "create_pull_request_review_comment"
	TypeSubmitReview        Type = "submit_pull_request_review"
	TypeUpdateProject       Type = "update_project"
	TypeAssignMilestone     Type = "assign_milestone"
	TypeAddReviewer         Type = "add_reviewer"
	TypeAddLabels           Type = "add_labels"
	TypeHideComment         Type = "hide_comment"

	// TypeUnknown is assigned to any discriminator value outside the closed set.
	TypeUnknown Type = "unknown"
	// TypeMalformed marks a line that did not parse as JSON at all.
	TypeMalformed Type = "malformed"
)

var knownTypes = map[Type]bool{
	TypeCreateIssue:         true,
	TypeCreateDiscussion:    true,
	TypeAddComment:          true,
	TypeCloseIssue:          true,
	TypeClosePullRequest:    true,
	TypeLinkSubIssue:        true,
	TypeCreateReviewComment: true,
	TypeSubmitReview:        true,
	TypeUpdateProject:       true,
	TypeAssignMilestone:     true,
	TypeAddReviewer:         true,
	TypeAddLabels:           true,
	TypeHideComment:         true,
}

// Known reports whether t is part of the closed intent type set.
func Known(t Type) bool { return knownTypes[t] }

// ItemRef is a target reference that arrives either as a JSON number
// (a permanent issue/PR number) or as a string (a numeric string or a
// temporary id like "aw_k3x9"). The raw text form is preserved so the
// resolver can decide what it is.
type ItemRef struct {
	raw string
}

// NewItemRef builds a reference from its text form. Used by tests and
// by handlers that synthesize references.
func NewItemRef(s string) ItemRef { return ItemRef{raw: strings.TrimSpace(s)} }

// NumberRef builds a reference to a permanent number.
func NumberRef(n int) ItemRef { return ItemRef{raw: strconv.Itoa(n)} }

func (r ItemRef) String() string { return r.raw }

// IsZero reports whether the reference is absent from the intent.
func (r ItemRef) IsZero() bool { return r.raw == "" }

// Number returns the permanent number if the reference is plainly
// numeric.
func (r ItemRef) Number() (int, bool) {
	n, err := strconv.Atoi(r.raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (r *ItemRef) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		r.raw = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.raw = strings.TrimSpace(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("item reference must be a number or string: %w", err)
	}
	r.raw = n.String()
	return nil
}

func (r ItemRef) MarshalJSON() ([]byte, error) {
	if r.raw == "" {
		return []byte("null"), nil
	}
	if n, ok := r.Number(); ok {
		return []byte(strconv.Itoa(n)), nil
	}
	return json.Marshal(r.raw)
}

// Intent is one structured instruction emitted by the agent. The
// variant fields are flattened; each handler reads only the fields its
// type defines and validates their presence itself.
type Intent struct {
	Type Type `json:"type"`

	// Common optional fields.
	ItemNumber  ItemRef `json:"item_number,omitempty"`
	Repo        string  `json:"repo,omitempty"`
	Body        string  `json:"body,omitempty"`
	TemporaryID string  `json:"temporary_id,omitempty"`

	// create_issue / create_discussion / add_labels
	Title    string   `json:"title,omitempty"`
	Labels   []string `json:"labels,omitempty"`
	Category string   `json:"category,omitempty"`

	// close_issue / close_pull_request / hide_comment
	Reason string `json:"reason,omitempty"`

	// link_sub_issue
	Parent ItemRef `json:"parent,omitempty"`
	Child  ItemRef `json:"child,omitempty"`

	// create_pull_request_review_comment
	Path      string `json:"path,omitempty"`
	Line      int    `json:"line,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	Side      string `json:"side,omitempty"`

	// submit_pull_request_review
	Event string `json:"event,omitempty"`

	// update_project
	Project string `json:"project,omitempty"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`

	// assign_milestone
	Milestone string `json:"milestone,omitempty"`

	// add_reviewer
	Reviewers []string `json:"reviewers,omitempty"`

	// hide_comment (GraphQL node id of the comment to minimize)
	CommentID string `json:"comment_id,omitempty"`

	// ParseError is set by the loader when the line was not valid
	// JSON; the dispatcher turns it into a validation failure.
	ParseError string `json:"-"`

	// RawType preserves the original discriminator when Type was
	// collapsed to TypeUnknown.
	RawType string `json:"-"`
}

// SplitRepo splits an "owner/name" slug. ok is false when the slug is
// absent or malformed.
func SplitRepo(slug string) (owner, name string, ok bool) {
	parts := strings.Split(slug, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
