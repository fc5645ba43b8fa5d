package dispatch

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/outpost-ci/outpost/internal/intent"
	"github.com/outpost-ci/outpost/internal/platform"
	"github.com/outpost-ci/outpost/internal/resolve"
)

// createIssueHandler opens a new issue and, on success, registers the
// intent's temporary id so later intents in the batch can reference
// the created number.
type createIssueHandler struct {
	d *Dispatcher
}

func (h *createIssueHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	title := strings.TrimSpace(it.Title)
	if title == "" {
		return intent.Failed(it.Type, "create_issue requires a title")
	}

	owner, repo, fail := h.d.targetRepo(it)
	if fail != nil {
		return *fail
	}

	body, failRes := d.composeBody(it.Type, it.Body, m)
	if failRes != nil {
		return *failRes
	}
	labels := filterAllowed(d.cfg.Allow.Labels, it.Labels)

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would create issue %q in %s/%s with %d labels", title, owner, repo, len(labels))
	}

	item, err := d.client.CreateIssue(ctx, owner, repo, title, body, labels)
	if err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "repository %s/%s not accessible: %v", owner, repo, err)
		}
		return intent.Failed(it.Type, "create issue in %s/%s: %v", owner, repo, err)
	}

	registerTemporaryID(m, it.TemporaryID, resolve.Reference{Owner: owner, Repo: repo, Number: item.Number})

	res := intent.Succeeded(it.Type)
	res.URL = item.URL
	res.Number = item.Number
	return res
}

// createDiscussionHandler opens a discussion in the named category.
type createDiscussionHandler struct {
	d *Dispatcher
}

func (h *createDiscussionHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	title := strings.TrimSpace(it.Title)
	if title == "" {
		return intent.Failed(it.Type, "create_discussion requires a title")
	}

	owner, repo, fail := h.d.targetRepo(it)
	if fail != nil {
		return *fail
	}

	body, failRes := d.composeBody(it.Type, it.Body, m)
	if failRes != nil {
		return *failRes
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would create discussion %q in %s/%s", title, owner, repo)
	}

	item, err := d.client.CreateDiscussion(ctx, owner, repo, it.Category, title, body)
	if err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "repository %s/%s not accessible: %v", owner, repo, err)
		}
		return intent.Failed(it.Type, "create discussion in %s/%s: %v", owner, repo, err)
	}

	registerTemporaryID(m, it.TemporaryID, resolve.Reference{Owner: owner, Repo: repo, Number: item.Number, IsDiscussion: true})

	res := intent.Succeeded(it.Type)
	res.URL = item.URL
	res.Number = item.Number
	return res
}

// targetRepo picks the repository a create-type intent acts on.
func (d *Dispatcher) targetRepo(it *intent.Intent) (string, string, *intent.HandlerResult) {
	if it.Repo == "" {
		return d.exec.Owner, d.exec.Repo, nil
	}
	owner, repo, ok := intent.SplitRepo(it.Repo)
	if !ok {
		res := intent.Failed(it.Type, "invalid repo slug %q", it.Repo)
		return "", "", &res
	}
	return owner, repo, nil
}

// registerTemporaryID binds the id the agent attached to a create
// intent. A rebinding attempt is logged and ignored: the first
// created entity keeps the id, per the map's no-shrink/no-overwrite
// contract.
func registerTemporaryID(m *resolve.Map, id string, ref resolve.Reference) {
	if id == "" {
		return
	}
	if err := m.Register(id, ref); err != nil {
		log.Warn().Str("temporary_id", id).Err(err).Msg("Temporary id not registered")
	}
}
