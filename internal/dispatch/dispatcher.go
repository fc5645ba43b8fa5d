// Package dispatch routes each intent in a batch to its type-specific
// handler, enforcing per-type budgets, staged-mode dry-run and the
// multi-pass deferral contract.
package dispatch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/outpost-ci/outpost/internal/config"
	"github.com/outpost-ci/outpost/internal/intent"
	"github.com/outpost-ci/outpost/internal/platform"
	"github.com/outpost-ci/outpost/internal/resolve"
	"github.com/outpost-ci/outpost/internal/review"
	"github.com/outpost-ci/outpost/internal/sanitize"
)

// Handler executes one intent type. Implementations return
// discriminated results for every expected condition; a returned
// panic-worthy defect is the only thing allowed to escape.
type Handler interface {
	Handle(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult
}

// Dispatcher owns the batch-scoped mutable state: per-type counters
// and the review buffer. Construct one per batch; never reuse across
// runs or share across goroutines.
type Dispatcher struct {
	cfg       *config.Config
	client    platform.Client
	exec      ExecutionContext
	sanitizer *sanitize.Sanitizer
	buffer    *review.Buffer

	handlers map[intent.Type]Handler
	counts   map[intent.Type]int
}

// New wires a dispatcher with one stateful handler per intent type.
func New(cfg *config.Config, client platform.Client, exec ExecutionContext) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		client:    client,
		exec:      exec,
		sanitizer: sanitize.New(cfg.Allow.Mentions, cfg.Domains.Deny),
		buffer:    review.NewBuffer(sanitize.Footer(cfg.Footer.Template, exec.RunURL), review.ParseFooterMode(cfg.Footer.Mode)),
		counts:    make(map[intent.Type]int),
	}
	d.handlers = map[intent.Type]Handler{
		intent.TypeCreateIssue:         &createIssueHandler{d},
		intent.TypeCreateDiscussion:    &createDiscussionHandler{d},
		intent.TypeAddComment:          &addCommentHandler{d},
		intent.TypeCloseIssue:          &closeIssueHandler{d},
		intent.TypeClosePullRequest:    &closePullRequestHandler{d},
		intent.TypeLinkSubIssue:        &linkSubIssueHandler{d},
		intent.TypeCreateReviewComment: &reviewCommentHandler{d},
		intent.TypeSubmitReview:        &submitReviewHandler{d},
		intent.TypeUpdateProject:       &updateProjectHandler{d},
		intent.TypeAssignMilestone:     &assignMilestoneHandler{d},
		intent.TypeAddReviewer:         &addReviewerHandler{d},
		intent.TypeAddLabels:           &addLabelsHandler{d},
		intent.TypeHideComment:         &hideCommentHandler{d},
	}
	return d
}

// Process executes one pass over the batch in supplied order. The
// returned results are positional (one per intent). stillDeferred
// holds the indexes of intents whose temporary id dependencies were
// not resolvable this pass; the caller re-invokes Process with the
// (by then fuller) map, bounding the number of passes itself.
func (d *Dispatcher) Process(ctx context.Context, batch []intent.Intent, m *resolve.Map) ([]intent.HandlerResult, []int) {
	results := make([]intent.HandlerResult, len(batch))
	var stillDeferred []int

	for i := range batch {
		it := &batch[i]
		res := d.processOne(ctx, it, m)
		results[i] = res
		if res.Deferred {
			stillDeferred = append(stillDeferred, i)
		}
	}
	return results, stillDeferred
}

func (d *Dispatcher) processOne(ctx context.Context, it *intent.Intent, m *resolve.Map) intent.HandlerResult {
	switch it.Type {
	case intent.TypeMalformed:
		return intent.Failed(it.Type, "invalid intent: %s", it.ParseError)
	case intent.TypeUnknown:
		log.Warn().Str("type", it.RawType).Msg("No handler for intent type")
		return intent.Failed(it.Type, "unhandled intent type %q", it.RawType)
	}

	handler, ok := d.handlers[it.Type]
	if !ok {
		return intent.Failed(it.Type, "unhandled intent type %q", it.Type)
	}

	// Budget check happens before invoking the handler, bounding total
	// side effects per type no matter how many intents the agent
	// emits.
	if max, bounded := d.cfg.MaxFor(string(it.Type)); bounded && d.counts[it.Type] >= max {
		return intent.Failed(it.Type, "max count reached for %s (%d)", it.Type, max)
	}

	res := handler.Handle(ctx, it, m)

	// Deferred intents come back on a later pass; only completed
	// invocations consume budget.
	if !res.Deferred {
		d.counts[it.Type]++
	}
	return res
}

// Flush submits whatever the review buffer accumulated, exactly once
// per batch, after the final pass. Returns nil when the buffer never
// bound a context.
func (d *Dispatcher) Flush(ctx context.Context) *intent.HandlerResult {
	if _, bound := d.buffer.Bound(); !bound {
		return nil
	}
	if d.cfg.Staged {
		res := intent.Staged(intent.TypeSubmitReview, "%s", d.buffer.Preview())
		return &res
	}
	res := d.buffer.Submit(ctx, d.client)
	return &res
}

// Count reports how much of a type's budget one batch consumed.
func (d *Dispatcher) Count(t intent.Type) int { return d.counts[t] }
