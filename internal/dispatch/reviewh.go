package dispatch

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/outpost-ci/outpost/internal/enforce"
	"github.com/outpost-ci/outpost/internal/intent"
	"github.com/outpost-ci/outpost/internal/platform"
	"github.com/outpost-ci/outpost/internal/resolve"
	"github.com/outpost-ci/outpost/internal/review"
)

// reviewCommentHandler buffers one inline review comment. Nothing is
// posted here; the buffer flushes as a single review after the last
// pass.
type reviewCommentHandler struct {
	d *Dispatcher
}

func (h *reviewCommentHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	if strings.TrimSpace(it.Body) == "" {
		return intent.Failed(it.Type, "review comment requires a body")
	}
	if strings.TrimSpace(it.Path) == "" {
		return intent.Failed(it.Type, "review comment requires a path")
	}
	if it.Line <= 0 {
		return intent.Failed(it.Type, "review comment requires a positive line")
	}
	if it.StartLine > 0 && it.StartLine > it.Line {
		return intent.Failed(it.Type, "start_line %d is past line %d", it.StartLine, it.Line)
	}

	tgt := d.resolveTarget(it, m)
	if tgt.fail != nil {
		return *tgt.fail
	}

	body, fail := d.composeInline(it.Type, it.Body, m)
	if fail != nil {
		return *fail
	}

	side := strings.ToUpper(strings.TrimSpace(it.Side))
	switch side {
	case "", "LEFT", "RIGHT":
	default:
		return intent.Failed(it.Type, "unsupported side %q", it.Side)
	}

	err := d.buffer.AddComment(
		review.Context{Owner: tgt.ref.Owner, Repo: tgt.ref.Repo, Number: tgt.ref.Number, HeadSHA: d.reviewAnchor(ctx, tgt.ref)},
		platform.DraftReviewComment{Path: it.Path, Line: it.Line, StartLine: it.StartLine, Side: side, Body: body},
	)
	if err != nil {
		return intent.Failed(it.Type, "buffer review comment: %v", err)
	}

	// Buffering mutates nothing, but the dry-run contract is uniform:
	// every staged result says so and previews what would happen.
	if d.cfg.Staged {
		return intent.Staged(it.Type, "would attach review comment to %s/%s#%d at %s:%d",
			tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number, it.Path, it.Line)
	}

	res := intent.Succeeded(it.Type)
	res.Number = tgt.ref.Number
	return res
}

// Review dispositions accepted from intents, mapped to the platform's
// event names.
var reviewEvents = map[string]string{
	"approve":         "APPROVE",
	"request_changes": "REQUEST_CHANGES",
	"comment":         "COMMENT",
}

// submitReviewHandler records the overall review body and disposition.
// Like inline comments it only mutates the buffer; the single platform
// call happens at flush.
type submitReviewHandler struct {
	d *Dispatcher
}

func (h *submitReviewHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	event := "COMMENT"
	if raw := strings.ToLower(strings.TrimSpace(it.Event)); raw != "" {
		mapped, ok := reviewEvents[raw]
		if !ok {
			return intent.Failed(it.Type, "unsupported review event %q", it.Event)
		}
		event = mapped
	}

	tgt := d.resolveTarget(it, m)
	if tgt.fail != nil {
		return *tgt.fail
	}

	body := ""
	if strings.TrimSpace(it.Body) != "" {
		composed, fail := d.composeInline(it.Type, it.Body, m)
		if fail != nil {
			return *fail
		}
		body = composed
	}

	err := d.buffer.SetMetadata(
		review.Context{Owner: tgt.ref.Owner, Repo: tgt.ref.Repo, Number: tgt.ref.Number, HeadSHA: d.reviewAnchor(ctx, tgt.ref)},
		review.Metadata{Body: body, Event: event},
	)
	if err != nil {
		return intent.Failed(it.Type, "record review metadata: %v", err)
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would submit %s review on %s/%s#%d",
			event, tgt.ref.Owner, tgt.ref.Repo, tgt.ref.Number)
	}

	res := intent.Succeeded(it.Type)
	res.Number = tgt.ref.Number
	return res
}

// reviewAnchor picks the commit a buffered review pins to. A workflow
// context without a head SHA gets it from the pull request, fetched
// once before the buffer binds; after binding the first anchor wins.
func (d *Dispatcher) reviewAnchor(ctx context.Context, ref *resolve.Reference) string {
	if d.exec.HeadSHA != "" {
		return d.exec.HeadSHA
	}
	if _, bound := d.buffer.Bound(); bound {
		return ""
	}
	if d.cfg.Staged {
		return ""
	}
	pr, err := d.client.GetPullRequest(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		log.Debug().Err(err).Int("pr", ref.Number).Msg("Could not resolve pull request head, submitting unanchored")
		return ""
	}
	return pr.HeadSHA
}

// composeInline is the body pipeline for text that lands inside a
// buffered review: constraints and sanitization apply, but footer and
// markers do not (the buffer appends the footer once at submit).
func (d *Dispatcher) composeInline(t intent.Type, raw string, m *resolve.Map) (string, *intent.HandlerResult) {
	if err := enforce.Enforce(raw); err != nil {
		res := intent.Failed(t, "body rejected: %v", err)
		return "", &res
	}
	body := d.sanitizer.Sanitize(raw)
	body = resolve.ReplaceReferences(body, m, d.exec.Slug())
	if err := enforce.Enforce(body); err != nil {
		res := intent.Failed(t, "composed body rejected: %v", err)
		return "", &res
	}
	return body, nil
}
