// Package review accumulates inline review comments and review
// metadata for one pull request into a single atomic submission.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/outpost-ci/outpost/internal/intent"
	"github.com/outpost-ci/outpost/internal/platform"
)

// FooterMode controls whether the generated footer is appended to the
// overall review body.
type FooterMode int

const (
	FooterIfBodyNonempty FooterMode = iota
	FooterAlways
	FooterNever
)

// ParseFooterMode maps a config string to a FooterMode; unknown
// values fall back to the only-if-body-nonempty default.
func ParseFooterMode(s string) FooterMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always":
		return FooterAlways
	case "never":
		return FooterNever
	default:
		return FooterIfBodyNonempty
	}
}

// Context pins the single pull request a buffer serves. It is bound
// by the first buffered comment or metadata call and immutable
// thereafter.
type Context struct {
	Owner   string
	Repo    string
	Number  int
	HeadSHA string
}

func (c Context) slug() string { return fmt.Sprintf("%s/%s#%d", c.Owner, c.Repo, c.Number) }

// ErrContextMismatch is returned when a buffered call targets a
// different pull request than the one the buffer is bound to.
var ErrContextMismatch = errors.New("review buffer already bound to a different pull request")

type state int

const (
	stateEmpty state = iota
	stateAccumulating
	stateSubmitted
)

// Metadata is the overall review body and disposition, set at most
// once per buffer.
type Metadata struct {
	Body  string
	Event string // APPROVE, REQUEST_CHANGES or COMMENT
}

// Buffer is the batch-scoped accumulator. Single-writer; never shared
// across batches.
type Buffer struct {
	state    state
	bound    Context
	comments []platform.DraftReviewComment
	meta     *Metadata

	footer     string
	footerMode FooterMode
}

// NewBuffer returns an empty buffer. footer is the rendered footer
// text appended according to mode.
func NewBuffer(footer string, mode FooterMode) *Buffer {
	return &Buffer{footer: footer, footerMode: mode}
}

// Len reports how many inline comments are buffered.
func (b *Buffer) Len() int { return len(b.comments) }

// Bound returns the pinned context and whether one is set.
func (b *Buffer) Bound() (Context, bool) {
	return b.bound, b.state != stateEmpty
}

func (b *Buffer) bind(c Context) error {
	if b.state == stateEmpty {
		b.bound = c
		b.state = stateAccumulating
		return nil
	}
	if b.bound.Owner != c.Owner || b.bound.Repo != c.Repo || b.bound.Number != c.Number {
		return fmt.Errorf("%w: bound to %s, got %s", ErrContextMismatch, b.bound.slug(), c.slug())
	}
	if b.bound.HeadSHA == "" && c.HeadSHA != "" {
		b.bound.HeadSHA = c.HeadSHA
	}
	return nil
}

// AddComment buffers one inline comment. The first call binds the
// buffer's context; later calls must target the same pull request or
// they are rejected with the bound context unchanged.
func (b *Buffer) AddComment(c Context, comment platform.DraftReviewComment) error {
	if comment.Path == "" {
		return fmt.Errorf("review comment requires a file path")
	}
	if comment.Line <= 0 {
		return fmt.Errorf("review comment requires a positive line")
	}
	if err := b.bind(c); err != nil {
		return err
	}
	b.comments = append(b.comments, comment)
	return nil
}

// SetMetadata binds the overall body and disposition. Also binds the
// context when it is the first call. A second metadata call replaces
// the first; review intents are throttled to one per batch upstream.
func (b *Buffer) SetMetadata(c Context, meta Metadata) error {
	if err := b.bind(c); err != nil {
		return err
	}
	b.meta = &meta
	return nil
}

// Preview describes what Submit would do, for staged mode.
func (b *Buffer) Preview() string {
	if b.state == stateEmpty {
		return "no review to submit"
	}
	event := "COMMENT"
	if b.meta != nil && b.meta.Event != "" {
		event = b.meta.Event
	}
	return fmt.Sprintf("would submit %s review on %s with %d inline comments", event, b.bound.slug(), len(b.comments))
}

// Submit flushes the buffer in exactly one platform call. An empty
// buffer is a skipped success with zero calls. Submission is
// all-or-nothing: either every buffered comment posts or none do. A
// failed submit leaves the buffer intact so the caller may retry.
func (b *Buffer) Submit(ctx context.Context, client platform.Client) intent.HandlerResult {
	if b.state == stateEmpty || (len(b.comments) == 0 && b.meta == nil) {
		return intent.Skipped(intent.TypeSubmitReview, "review buffer empty, nothing to submit")
	}
	if b.state == stateSubmitted {
		return intent.Skipped(intent.TypeSubmitReview, "review already submitted")
	}

	body := ""
	event := "COMMENT"
	if b.meta != nil {
		body = b.meta.Body
		if b.meta.Event != "" {
			event = b.meta.Event
		}
	}
	switch b.footerMode {
	case FooterAlways:
		body = appendFooter(body, b.footer)
	case FooterIfBodyNonempty:
		if body != "" {
			body = appendFooter(body, b.footer)
		}
	}

	url, err := client.CreateReview(ctx, b.bound.Owner, b.bound.Repo, b.bound.Number, platform.ReviewRequest{
		CommitID: b.bound.HeadSHA,
		Body:     body,
		Event:    event,
		Comments: b.comments,
	})
	if err != nil {
		if platform.Classify(err) == platform.ClassWarning {
			b.state = stateSubmitted
			return intent.Skipped(intent.TypeSubmitReview, "pull request vanished before review submit: %v", err)
		}
		log.Error().Err(err).Str("pr", b.bound.slug()).Msg("Review submission failed")
		return intent.Failed(intent.TypeSubmitReview, "submit review on %s: %v", b.bound.slug(), err)
	}

	b.state = stateSubmitted
	res := intent.Succeeded(intent.TypeSubmitReview)
	res.URL = url
	res.Number = b.bound.Number
	return res
}

func appendFooter(body, footer string) string {
	if footer == "" {
		return body
	}
	if body == "" {
		return footer
	}
	return strings.TrimRight(body, "\n") + "\n\n" + footer
}
