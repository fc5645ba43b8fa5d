package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outpost-ci/outpost/internal/platform"
)

func prCtx(number int) Context {
	return Context{Owner: "octo", Repo: "widgets", Number: number, HeadSHA: "abc123"}
}

func inline(path string, line int, body string) platform.DraftReviewComment {
	return platform.DraftReviewComment{Path: path, Line: line, Body: body}
}

func TestSubmit_EmptyBufferSkipsWithZeroCalls(t *testing.T) {
	fake := platform.NewFake()
	b := NewBuffer("", FooterNever)

	res := b.Submit(context.Background(), fake)

	assert.True(t, res.Success)
	assert.True(t, res.Skipped)
	assert.Empty(t, fake.Calls)
}

func TestAddComment_BindsContextOnce(t *testing.T) {
	b := NewBuffer("", FooterNever)

	require.NoError(t, b.AddComment(prCtx(5), inline("main.go", 3, "nit")))
	err := b.AddComment(prCtx(6), inline("main.go", 9, "other PR"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContextMismatch)

	bound, ok := b.Bound()
	require.True(t, ok)
	assert.Equal(t, 5, bound.Number)
	assert.Equal(t, 1, b.Len())
}

func TestSubmit_SingleAtomicCall(t *testing.T) {
	fake := platform.NewFake()
	b := NewBuffer("", FooterNever)

	require.NoError(t, b.AddComment(prCtx(5), inline("a.go", 1, "first")))
	require.NoError(t, b.AddComment(prCtx(5), inline("b.go", 2, "second")))
	require.NoError(t, b.SetMetadata(prCtx(5), Metadata{Body: "overall", Event: "REQUEST_CHANGES"}))

	res := b.Submit(context.Background(), fake)

	require.True(t, res.Success)
	assert.Equal(t, 1, fake.CallCount("CreateReview"))
	require.Len(t, fake.Reviews, 1)
	review := fake.Reviews[0]
	assert.Equal(t, "REQUEST_CHANGES", review.Event)
	assert.Equal(t, "overall", review.Body)
	assert.Equal(t, "abc123", review.CommitID)
	assert.Len(t, review.Comments, 2)
}

func TestSubmit_DefaultsToCommentDisposition(t *testing.T) {
	fake := platform.NewFake()
	b := NewBuffer("", FooterNever)

	require.NoError(t, b.AddComment(prCtx(5), inline("a.go", 1, "only inline")))

	res := b.Submit(context.Background(), fake)

	require.True(t, res.Success)
	require.Len(t, fake.Reviews, 1)
	assert.Equal(t, "COMMENT", fake.Reviews[0].Event)
}

func TestSubmit_FooterModes(t *testing.T) {
	cases := []struct {
		name     string
		mode     FooterMode
		body     string
		wantText string
		absent   bool
	}{
		{"always with empty body", FooterAlways, "", "generated", false},
		{"never", FooterNever, "overall", "generated", true},
		{"if-nonempty with body", FooterIfBodyNonempty, "overall", "generated", false},
		{"if-nonempty without body", FooterIfBodyNonempty, "", "generated", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := platform.NewFake()
			b := NewBuffer("> generated", tc.mode)
			require.NoError(t, b.AddComment(prCtx(5), inline("a.go", 1, "x")))
			if tc.body != "" {
				require.NoError(t, b.SetMetadata(prCtx(5), Metadata{Body: tc.body}))
			}

			res := b.Submit(context.Background(), fake)
			require.True(t, res.Success)
			require.Len(t, fake.Reviews, 1)
			if tc.absent {
				assert.NotContains(t, fake.Reviews[0].Body, tc.wantText)
			} else {
				assert.Contains(t, fake.Reviews[0].Body, tc.wantText)
			}
		})
	}
}

func TestSubmit_FailureLeavesBufferRetryable(t *testing.T) {
	fake := platform.NewFake()
	fake.Errors["CreateReview"] = errors.New("500 server error")
	b := NewBuffer("", FooterNever)
	require.NoError(t, b.AddComment(prCtx(5), inline("a.go", 1, "x")))

	res := b.Submit(context.Background(), fake)
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "500")

	// Clearing the fault and retrying succeeds with the same comments.
	delete(fake.Errors, "CreateReview")
	res = b.Submit(context.Background(), fake)
	require.True(t, res.Success)
	require.Len(t, fake.Reviews, 1)
	assert.Len(t, fake.Reviews[0].Comments, 1)
}

func TestSubmit_VanishedPullRequestIsWarning(t *testing.T) {
	fake := platform.NewFake()
	fake.Errors["CreateReview"] = platform.NotFoundError("pr gone")
	b := NewBuffer("", FooterNever)
	require.NoError(t, b.AddComment(prCtx(5), inline("a.go", 1, "x")))

	res := b.Submit(context.Background(), fake)

	assert.True(t, res.Success)
	assert.True(t, res.Skipped)
	assert.Contains(t, res.Warning, "vanished")
}

func TestAddComment_Validation(t *testing.T) {
	b := NewBuffer("", FooterNever)

	assert.Error(t, b.AddComment(prCtx(5), platform.DraftReviewComment{Line: 1, Body: "no path"}))
	assert.Error(t, b.AddComment(prCtx(5), platform.DraftReviewComment{Path: "a.go", Body: "no line"}))

	_, bound := b.Bound()
	assert.False(t, bound)
}

func TestParseFooterMode(t *testing.T) {
	assert.Equal(t, FooterAlways, ParseFooterMode("Always"))
	assert.Equal(t, FooterNever, ParseFooterMode("never"))
	assert.Equal(t, FooterIfBodyNonempty, ParseFooterMode(""))
	assert.Equal(t, FooterIfBodyNonempty, ParseFooterMode("banana"))
}
