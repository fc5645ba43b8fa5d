package dispatch

import (
	"context"
	"strings"

	"github.com/outpost-ci/outpost/internal/intent"
	"github.com/outpost-ci/outpost/internal/platform"
	"github.com/outpost-ci/outpost/internal/resolve"
)

// closeIssueHandler closes an issue with an optional state reason.
type closeIssueHandler struct {
	d *Dispatcher
}

var closeReasons = map[string]string{
	"completed":   "completed",
	"not_planned": "not_planned",
	"duplicate":   "not_planned",
}

func (h *closeIssueHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	tgt := d.resolveTarget(it, m)
	if tgt.fail != nil {
		return *tgt.fail
	}

	reason := ""
	if raw := strings.ToLower(strings.TrimSpace(it.Reason)); raw != "" {
		mapped, ok := closeReasons[raw]
		if !ok {
			return intent.Failed(it.Type, "unsupported close reason %q", it.Reason)
		}
		if !allowed(d.cfg.Allow.Reasons, raw) {
			return intent.Failed(it.Type, "close reason %q not on the allow-list", raw)
		}
		reason = mapped
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would close issue %s/%s#%d", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number)
	}

	if err := d.client.CloseIssue(ctx, tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, reason); err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "issue %s/%s#%d no longer exists: %v", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, err)
		}
		return intent.Failed(it.Type, "close issue %s/%s#%d: %v", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, err)
	}

	res := intent.Succeeded(it.Type)
	res.Number = tgt.ref.Number
	return res
}

// closePullRequestHandler closes a pull request without merging.
type closePullRequestHandler struct {
	d *Dispatcher
}

func (h *closePullRequestHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	tgt := d.resolveTarget(it, m)
	if tgt.fail != nil {
		return *tgt.fail
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would close pull request %s/%s#%d", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number)
	}

	if err := d.client.ClosePullRequest(ctx, tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number); err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "pull request %s/%s#%d no longer exists: %v", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, err)
		}
		return intent.Failed(it.Type, "close pull request %s/%s#%d: %v", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, err)
	}

	res := intent.Succeeded(it.Type)
	res.Number = tgt.ref.Number
	return res
}

// linkSubIssueHandler attaches a child issue to a parent. Both sides
// may be temporary ids; the intent defers until both resolve.
type linkSubIssueHandler struct {
	d *Dispatcher
}

func (h *linkSubIssueHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	if it.Parent.IsZero() || it.Child.IsZero() {
		return intent.Failed(it.Type, "link_sub_issue requires parent and child")
	}

	owner, repo, fail := d.targetRepo(it)
	if fail != nil {
		return *fail
	}

	parent := resolve.Resolve(it.Parent.String(), m, owner, repo)
	if parent.Err != nil {
		return intent.Failed(it.Type, "invalid parent reference: %v", parent.Err)
	}
	if parent.Resolved == nil {
		return intent.Deferred(it.Type, it.Parent.String())
	}

	child := resolve.Resolve(it.Child.String(), m, owner, repo)
	if child.Err != nil {
		return intent.Failed(it.Type, "invalid child reference: %v", child.Err)
	}
	if child.Resolved == nil {
		return intent.Deferred(it.Type, it.Child.String())
	}

	if parent.Resolved.Slug() != child.Resolved.Slug() {
		return intent.Failed(it.Type, "parent and child must live in the same repository (%s vs %s)",
			parent.Resolved.Slug(), child.Resolved.Slug())
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would link %s#%d under %s#%d",
			child.Resolved.Slug(), child.Resolved.Number, parent.Resolved.Slug(), parent.Resolved.Number)
	}

	err := d.client.LinkSubIssue(ctx, parent.Resolved.Owner, parent.Resolved.Repo, parent.Resolved.Number, child.Resolved.Number)
	if err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "parent or child issue no longer exists: %v", err)
		}
		return intent.Failed(it.Type, "link sub-issue: %v", err)
	}

	res := intent.Succeeded(it.Type)
	res.Number = parent.Resolved.Number
	return res
}

// assignMilestoneHandler sets an issue's milestone by title.
type assignMilestoneHandler struct {
	d *Dispatcher
}

func (h *assignMilestoneHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	title := strings.TrimSpace(it.Milestone)
	if title == "" {
		return intent.Failed(it.Type, "assign_milestone requires a milestone title")
	}
	if !allowed(d.cfg.Allow.Milestones, title) {
		return intent.Failed(it.Type, "milestone %q not on the allow-list", title)
	}

	tgt := d.resolveTarget(it, m)
	if tgt.fail != nil {
		return *tgt.fail
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would assign milestone %q to %s/%s#%d", title, tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number)
	}

	milestones, err := d.client.ListMilestones(ctx, tgt.ref.Owner, tgt.ref.Repo)
	if err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "repository %s/%s not accessible: %v", tgt.ref.Owner, tgt.ref.Repo, err)
		}
		return intent.Failed(it.Type, "list milestones: %v", err)
	}
	number := 0
	for _, ms := range milestones {
		if strings.EqualFold(ms.Title, title) {
			number = ms.Number
			break
		}
	}
	if number == 0 {
		return intent.Failed(it.Type, "milestone %q not found in %s/%s", title, tgt.ref.Owner, tgt.ref.Repo)
	}

	if err := d.client.SetMilestone(ctx, tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, number); err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "issue %s/%s#%d no longer exists: %v", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, err)
		}
		return intent.Failed(it.Type, "assign milestone: %v", err)
	}

	res := intent.Succeeded(it.Type)
	res.Number = tgt.ref.Number
	return res
}

// addLabelsHandler applies labels to an existing issue or pull
// request, filtered by the label allow-list.
type addLabelsHandler struct {
	d *Dispatcher
}

func (h *addLabelsHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	if len(it.Labels) == 0 {
		return intent.Failed(it.Type, "add_labels requires at least one label")
	}
	labels := filterAllowed(d.cfg.Allow.Labels, it.Labels)
	if len(labels) == 0 {
		return intent.Failed(it.Type, "none of the requested labels are on the allow-list")
	}

	tgt := d.resolveTarget(it, m)
	if tgt.fail != nil {
		return *tgt.fail
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would add %d label(s) to %s/%s#%d",
			len(labels), tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number)
	}

	if err := d.client.AddLabels(ctx, tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, labels); err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "target %s/%s#%d no longer exists: %v", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, err)
		}
		return intent.Failed(it.Type, "add labels to %s/%s#%d: %v", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, err)
	}

	res := intent.Succeeded(it.Type)
	res.Number = tgt.ref.Number
	return res
}

// addReviewerHandler requests reviews on a pull request, filtered by
// the reviewer allow-list.
type addReviewerHandler struct {
	d *Dispatcher
}

func (h *addReviewerHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	if len(it.Reviewers) == 0 {
		return intent.Failed(it.Type, "add_reviewer requires at least one reviewer")
	}
	reviewers := filterAllowed(d.cfg.Allow.Reviewers, it.Reviewers)
	if len(reviewers) == 0 {
		return intent.Failed(it.Type, "none of the requested reviewers are on the allow-list")
	}

	tgt := d.resolveTarget(it, m)
	if tgt.fail != nil {
		return *tgt.fail
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would request %d reviewer(s) on %s/%s#%d",
			len(reviewers), tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number)
	}

	if err := d.client.RequestReviewers(ctx, tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, reviewers); err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "pull request %s/%s#%d no longer exists: %v", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, err)
		}
		return intent.Failed(it.Type, "request reviewers: %v", err)
	}

	res := intent.Succeeded(it.Type)
	res.Number = tgt.ref.Number
	return res
}
