package dispatch

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/outpost-ci/outpost/internal/intent"
	"github.com/outpost-ci/outpost/internal/platform"
	"github.com/outpost-ci/outpost/internal/resolve"
)

// addCommentHandler posts a comment on an issue, pull request or
// discussion.
type addCommentHandler struct {
	d *Dispatcher
}

func (h *addCommentHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	if strings.TrimSpace(it.Body) == "" {
		return intent.Failed(it.Type, "add_comment requires a body")
	}

	tgt := d.resolveTarget(it, m)
	if tgt.fail != nil {
		return *tgt.fail
	}

	body, fail := d.composeBody(it.Type, it.Body, m)
	if fail != nil {
		return *fail
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would comment on %s/%s#%d (%d bytes)",
			tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, len(body))
	}

	// A target known to be a discussion (the triggering item, or one
	// this batch created) posts straight to the discussion API; the
	// issue-comment endpoint does not apply.
	if tgt.kind == kindDiscussion {
		return h.postToDiscussion(ctx, it, tgt.ref, body)
	}

	created, err := d.client.CreateComment(ctx, tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, body)
	if err == nil {
		res := intent.Succeeded(it.Type)
		res.URL = created.URL
		res.Number = tgt.ref.Number
		return res
	}
	if platform.Classify(err) != platform.ClassWarning {
		return intent.Failed(it.Type, "create comment on %s/%s#%d: %v", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, err)
	}

	// The issue/PR is gone. An explicit number may actually name a
	// discussion, so try that interpretation exactly once. A target
	// whose kind is already known is simply gone.
	if tgt.kind == kindIssue {
		return intent.Skipped(it.Type, "target %s/%s#%d no longer exists: %v", tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, err)
	}
	log.Debug().Int("number", tgt.ref.Number).Msg("Comment target not an issue or PR, retrying as discussion")
	return h.postToDiscussion(ctx, it, tgt.ref, body)
}

// postToDiscussion resolves the number as a discussion and posts
// there. A not-found here means neither entity kind exists and the
// intent is skipped; any other error is fatal.
func (h *addCommentHandler) postToDiscussion(ctx context.Context, it *intent.Intent, ref *resolve.Reference, body string) intent.HandlerResult {
	d := h.d

	nodeID, err := d.client.GetDiscussion(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "no issue, PR or discussion at %s/%s#%d", ref.Owner, ref.Repo, ref.Number)
		}
		return intent.Failed(it.Type, "resolve discussion %s/%s#%d: %v", ref.Owner, ref.Repo, ref.Number, err)
	}

	url, err := d.client.AddDiscussionComment(ctx, nodeID, body)
	if err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "discussion %s/%s#%d vanished: %v", ref.Owner, ref.Repo, ref.Number, err)
		}
		return intent.Failed(it.Type, "comment on discussion %s/%s#%d: %v", ref.Owner, ref.Repo, ref.Number, err)
	}

	res := intent.Succeeded(it.Type)
	res.URL = url
	res.Number = ref.Number
	return res
}

// hideCommentHandler minimizes a comment, removing it from the default
// conversation view.
type hideCommentHandler struct {
	d *Dispatcher
}

// Classifiers the platform accepts for minimization.
var hideReasons = map[string]string{
	"spam":      "SPAM",
	"abuse":     "ABUSE",
	"off_topic": "OFF_TOPIC",
	"outdated":  "OUTDATED",
	"resolved":  "RESOLVED",
	"duplicate": "DUPLICATE",
}

func (h *hideCommentHandler) Handle(ctx context.Context, it *intent.Intent, _ *resolve.Map) intent.HandlerResult {
	d := h.d

	if it.CommentID == "" {
		return intent.Failed(it.Type, "hide_comment requires a comment_id")
	}

	reason := strings.ToLower(strings.TrimSpace(it.Reason))
	if reason == "" {
		reason = "outdated"
	}
	classifier, ok := hideReasons[reason]
	if !ok {
		return intent.Failed(it.Type, "unsupported hide reason %q", it.Reason)
	}
	if !allowed(d.cfg.Allow.Reasons, reason) {
		return intent.Failed(it.Type, "hide reason %q not on the allow-list", reason)
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would minimize comment %s as %s", it.CommentID, classifier)
	}

	if err := d.client.MinimizeComment(ctx, it.CommentID, classifier); err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "comment %s no longer exists: %v", it.CommentID, err)
		}
		return intent.Failed(it.Type, "minimize comment %s: %v", it.CommentID, err)
	}
	return intent.Succeeded(it.Type)
}
