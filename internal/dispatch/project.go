package dispatch

import (
	"context"
	"strings"

	"github.com/outpost-ci/outpost/internal/intent"
	"github.com/outpost-ci/outpost/internal/platform"
	"github.com/outpost-ci/outpost/internal/resolve"
)

// updateProjectHandler adds a draft item to a ProjectV2 board or
// updates a field on an item created earlier in the batch. Draft
// items are addressed by temporary id only; their platform ids are
// opaque node ids, not numbers.
type updateProjectHandler struct {
	d *Dispatcher
}

func (h *updateProjectHandler) Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	d := h.d

	projectTitle := strings.TrimSpace(it.Project)
	if projectTitle == "" {
		return intent.Failed(it.Type, "update_project requires a project title")
	}

	owner, _, fail := d.targetRepo(it)
	if fail != nil {
		return *fail
	}

	// An item reference means "update a field on that item"; no
	// reference means "add a new draft item".
	if raw := it.ItemNumber.String(); raw != "" {
		return h.updateField(ctx, it, m, owner, projectTitle, raw)
	}
	return h.addDraftItem(ctx, it, m, owner, projectTitle)
}

func (h *updateProjectHandler) updateField(ctx context.Context, it *intent.Intent, m *resolve.Map, owner, projectTitle, raw string) intent.HandlerResult {
	d := h.d

	if strings.TrimSpace(it.Field) == "" {
		return intent.Failed(it.Type, "update_project with an item reference requires a field")
	}

	r := resolve.Resolve(raw, m, owner, d.exec.Repo)
	if r.Err != nil {
		return intent.Failed(it.Type, "invalid item reference: %v", r.Err)
	}
	if !r.WasTemporaryID {
		return intent.Failed(it.Type, "project items are addressed by temporary id, got %q", raw)
	}
	if r.Resolved == nil {
		return intent.Deferred(it.Type, raw)
	}
	if r.Resolved.DraftItemID == "" {
		return intent.Failed(it.Type, "%q is bound to %s#%d, not a project item", raw, r.Resolved.Slug(), r.Resolved.Number)
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would set %q to %q on a %q item", it.Field, it.Value, projectTitle)
	}

	projectID, res := h.findProject(ctx, it, owner, projectTitle)
	if res != nil {
		return *res
	}
	if err := d.client.UpdateProjectItemField(ctx, projectID, r.Resolved.DraftItemID, it.Field, it.Value); err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "project item for %q no longer exists: %v", raw, err)
		}
		return intent.Failed(it.Type, "update project field %q: %v", it.Field, err)
	}
	return intent.Succeeded(it.Type)
}

func (h *updateProjectHandler) addDraftItem(ctx context.Context, it *intent.Intent, m *resolve.Map, owner, projectTitle string) intent.HandlerResult {
	d := h.d

	title := strings.TrimSpace(it.Title)
	if title == "" {
		return intent.Failed(it.Type, "update_project without an item reference requires a title for the new draft item")
	}

	body := ""
	if strings.TrimSpace(it.Body) != "" {
		composed, fail := d.composeInline(it.Type, it.Body, m)
		if fail != nil {
			return *fail
		}
		body = composed
	}

	if d.cfg.Staged {
		return intent.Staged(it.Type, "would add draft item %q to project %q", title, projectTitle)
	}

	projectID, res := h.findProject(ctx, it, owner, projectTitle)
	if res != nil {
		return *res
	}
	itemID, err := d.client.AddProjectDraftItem(ctx, projectID, title, body)
	if err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			return intent.Skipped(it.Type, "project %q vanished: %v", projectTitle, err)
		}
		return intent.Failed(it.Type, "add draft item to %q: %v", projectTitle, err)
	}

	registerTemporaryID(m, it.TemporaryID, resolve.Reference{DraftItemID: itemID})

	// Field on a creation applies to the item just added.
	if strings.TrimSpace(it.Field) != "" {
		if err := d.client.UpdateProjectItemField(ctx, projectID, itemID, it.Field, it.Value); err != nil {
			if platform.Classify(err) != platform.ClassWarning {
				return intent.Failed(it.Type, "set %q on new draft item: %v", it.Field, err)
			}
		}
	}
	return intent.Succeeded(it.Type)
}

func (h *updateProjectHandler) findProject(ctx context.Context, it *intent.Intent, owner, title string) (string, *intent.HandlerResult) {
	id, err := h.d.client.FindProject(ctx, owner, title)
	if err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			res := intent.Skipped(it.Type, "project %q not found for %s: %v", title, owner, err)
			return "", &res
		}
		res := intent.Failed(it.Type, "find project %q: %v", title, err)
		return "", &res
	}
	return id, nil
}
