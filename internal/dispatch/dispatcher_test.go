package dispatch

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outpost-ci/outpost/internal/config"
	"github.com/outpost-ci/outpost/internal/intent"
	"github.com/outpost-ci/outpost/internal/platform"
	"github.com/outpost-ci/outpost/internal/resolve"
)

func baseConfig() *config.Config {
	cfg := &config.Config{Passes: 3, Target: "*", Max: map[string]int{}}
	cfg.Footer.Mode = "never"
	return cfg
}

func baseExec() ExecutionContext {
	return ExecutionContext{Owner: "octo", Repo: "demo", TriggeringNumber: 12, HeadSHA: "abc123"}
}

func TestAddCommentRewritesTemporaryReferences(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())

	m := resolve.NewMap()
	require.NoError(t, m.Register("aw_x1", resolve.Reference{Owner: "octo", Repo: "demo", Number: 7}))

	batch := []intent.Intent{{
		Type:       intent.TypeAddComment,
		ItemNumber: intent.NumberRef(42),
		Body:       "hi #aw_x1",
	}}
	results, deferred := d.Process(context.Background(), batch, m)

	require.Empty(t, deferred)
	require.True(t, results[0].Success)
	require.Len(t, fake.Comments, 1)
	assert.Contains(t, fake.Comments[0], "hi #7")
	assert.NotContains(t, fake.Comments[0], "aw_x1")
	assert.Equal(t, 1, fake.CallCount("CreateComment"))
	assert.Contains(t, fake.Calls[0], "octo/demo#42")
}

func TestAddCommentAmbientTarget(t *testing.T) {
	cfg := baseConfig()
	cfg.Target = "triggering"
	fake := platform.NewFake()
	d := New(cfg, fake, baseExec())

	batch := []intent.Intent{{Type: intent.TypeAddComment, Body: "status update"}}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	assert.Equal(t, 12, results[0].Number)
	assert.Contains(t, fake.Calls[0], "octo/demo#12")
}

func TestExplicitTargetRejectedInTriggeringMode(t *testing.T) {
	cfg := baseConfig()
	cfg.Target = "triggering"
	fake := platform.NewFake()
	d := New(cfg, fake, baseExec())

	batch := []intent.Intent{{Type: intent.TypeAddComment, ItemNumber: intent.NumberRef(42), Body: "x"}}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Fatal())
	assert.Contains(t, results[0].Error, "not permitted")
	assert.Empty(t, fake.Calls)
}

func TestPinnedTargetOverridesEverything(t *testing.T) {
	cfg := baseConfig()
	cfg.Target = "99"
	fake := platform.NewFake()
	d := New(cfg, fake, baseExec())

	batch := []intent.Intent{{Type: intent.TypeAddComment, ItemNumber: intent.NumberRef(42), Body: "x"}}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	assert.Contains(t, fake.Calls[0], "octo/demo#99")
}

func TestDiscussionFallbackOnExplicitTarget(t *testing.T) {
	fake := platform.NewFake()
	fake.Errors["CreateComment"] = platform.NotFoundError("issue")
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{{Type: intent.TypeAddComment, ItemNumber: intent.NumberRef(42), Body: "hello"}}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	assert.Equal(t, 1, fake.CallCount("CreateComment"))
	assert.Equal(t, 1, fake.CallCount("GetDiscussion"))
	require.Len(t, fake.DiscussionComments, 1)
	assert.Contains(t, fake.DiscussionComments[0], "hello")
}

func TestAmbientNotFoundSkipsWithoutFallback(t *testing.T) {
	cfg := baseConfig()
	cfg.Target = "triggering"
	fake := platform.NewFake()
	fake.Errors["CreateComment"] = platform.NotFoundError("issue")
	d := New(cfg, fake, baseExec())

	batch := []intent.Intent{{Type: intent.TypeAddComment, Body: "hello"}}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, 0, fake.CallCount("GetDiscussion"))
}

func TestDiscussionFallbackBothMissing(t *testing.T) {
	fake := platform.NewFake()
	fake.Errors["CreateComment"] = platform.NotFoundError("issue")
	fake.Errors["GetDiscussion"] = platform.NotFoundError("discussion")
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{{Type: intent.TypeAddComment, ItemNumber: intent.NumberRef(42), Body: "hello"}}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Skipped)
	assert.Contains(t, results[0].Warning, "no issue, PR or discussion")
	assert.Equal(t, 1, fake.CallCount("GetDiscussion"))
	assert.Equal(t, 0, fake.CallCount("AddDiscussionComment"))
}

func TestDiscussionTriggeredPostsDirectly(t *testing.T) {
	cfg := baseConfig()
	cfg.Target = "triggering"
	exec := baseExec()
	exec.IsDiscussion = true
	fake := platform.NewFake()
	d := New(cfg, fake, exec)

	batch := []intent.Intent{{Type: intent.TypeAddComment, Body: "answer"}}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	assert.Equal(t, 0, fake.CallCount("CreateComment"))
	assert.Equal(t, 1, fake.CallCount("GetDiscussion"))
	assert.Equal(t, 1, fake.CallCount("AddDiscussionComment"))
}

func TestCommentOnBatchCreatedDiscussionRoutesDirectly(t *testing.T) {
	fake := platform.NewFake()
	fake.Errors["CreateComment"] = platform.NotFoundError("issue")
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeCreateDiscussion, Title: "ideas", Body: "seed", TemporaryID: "aw_d1x"},
		{Type: intent.TypeAddComment, ItemNumber: intent.NewItemRef("aw_d1x"), Body: "first reply"},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	require.True(t, results[1].Success, results[1].Error)
	assert.False(t, results[1].Skipped)
	assert.Equal(t, 0, fake.CallCount("CreateComment"))
	assert.Equal(t, 1, fake.CallCount("AddDiscussionComment"))
	require.Len(t, fake.DiscussionComments, 1)
	assert.Contains(t, fake.DiscussionComments[0], "first reply")
}

func TestCommentOnBatchCreatedIssueInDiscussionWorkflow(t *testing.T) {
	exec := baseExec()
	exec.IsDiscussion = true
	fake := platform.NewFake()
	d := New(baseConfig(), fake, exec)

	batch := []intent.Intent{
		{Type: intent.TypeCreateIssue, Title: "bug", Body: "details", TemporaryID: "aw_i1"},
		{Type: intent.TypeAddComment, ItemNumber: intent.NewItemRef("aw_i1"), Body: "triaged"},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	require.True(t, results[1].Success, results[1].Error)
	assert.Equal(t, 1, fake.CallCount("CreateComment"))
	assert.Equal(t, 0, fake.CallCount("GetDiscussion"))
}

func TestThrottlePerType(t *testing.T) {
	cfg := baseConfig()
	cfg.Max["add_comment"] = 2
	fake := platform.NewFake()
	d := New(cfg, fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeAddComment, ItemNumber: intent.NumberRef(1), Body: "a"},
		{Type: intent.TypeAddComment, ItemNumber: intent.NumberRef(2), Body: "b"},
		{Type: intent.TypeAddComment, ItemNumber: intent.NumberRef(3), Body: "c"},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	require.True(t, results[2].Fatal())
	assert.Contains(t, results[2].Error, "max count reached")
	assert.Equal(t, 2, fake.CallCount("CreateComment"))
}

func TestDeferredDoesNotConsumeBudget(t *testing.T) {
	cfg := baseConfig()
	cfg.Max["add_comment"] = 1
	fake := platform.NewFake()
	d := New(cfg, fake, baseExec())

	batch := []intent.Intent{{Type: intent.TypeAddComment, ItemNumber: intent.NewItemRef("aw_later"), Body: "x"}}
	results, deferred := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Deferred)
	assert.False(t, results[0].Success)
	assert.Equal(t, []int{0}, deferred)
	assert.Equal(t, 0, d.Count(intent.TypeAddComment))
	assert.Empty(t, fake.Calls)
}

func TestStagedMakesNoCalls(t *testing.T) {
	cfg := baseConfig()
	cfg.Staged = true
	fake := platform.NewFake()
	d := New(cfg, fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeAddComment, ItemNumber: intent.NumberRef(5), Body: "a"},
		{Type: intent.TypeCloseIssue, ItemNumber: intent.NumberRef(5)},
		{Type: intent.TypeCreateIssue, Title: "new bug", Body: "details"},
		{Type: intent.TypeCreateReviewComment, ItemNumber: intent.NumberRef(5), Path: "a.go", Line: 1, Body: "nit"},
		{Type: intent.TypeSubmitReview, ItemNumber: intent.NumberRef(5), Event: "approve"},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	for i, res := range results {
		assert.True(t, res.Staged, "result %d", i)
		assert.True(t, res.Success, "result %d", i)
		assert.NotEmpty(t, res.Preview, "result %d", i)
	}
	assert.Empty(t, fake.Calls)

	flushed := d.Flush(context.Background())
	require.NotNil(t, flushed)
	assert.True(t, flushed.Staged)
	assert.Contains(t, flushed.Preview, "APPROVE")
	assert.Empty(t, fake.Calls)
}

func TestMalformedAndUnknownDoNotAbort(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeMalformed, ParseError: "unexpected end of JSON input"},
		{Type: intent.TypeUnknown, RawType: "delete_repository"},
		{Type: intent.TypeAddComment, ItemNumber: intent.NumberRef(5), Body: "still works"},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	assert.True(t, results[0].Fatal())
	assert.True(t, results[1].Fatal())
	assert.Contains(t, results[1].Error, "delete_repository")
	assert.True(t, results[2].Success)
	assert.Equal(t, 1, fake.CallCount("CreateComment"))
}

func TestDeferralResolvesOnLaterPass(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())
	m := resolve.NewMap()
	ctx := context.Background()

	batch := []intent.Intent{
		{Type: intent.TypeAddComment, ItemNumber: intent.NewItemRef("aw_new"), Body: "follow-up"},
		{Type: intent.TypeCreateIssue, Title: "tracking issue", Body: "details", TemporaryID: "aw_new"},
	}
	results, stillDeferred := d.Process(ctx, batch, m)

	require.True(t, results[0].Deferred)
	require.True(t, results[1].Success)
	require.Equal(t, []int{0}, stillDeferred)
	require.Equal(t, 1, m.Len())

	retry := []intent.Intent{batch[0]}
	results, stillDeferred = d.Process(ctx, retry, m)

	require.Empty(t, stillDeferred)
	require.True(t, results[0].Success)
	assert.Equal(t, 101, results[0].Number)
	require.Len(t, fake.Comments, 1)
	assert.Contains(t, fake.Calls[len(fake.Calls)-1], "octo/demo#101")
}

func TestReviewBufferFlushesOnce(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())
	m := resolve.NewMap()
	ctx := context.Background()

	batch := []intent.Intent{
		{Type: intent.TypeCreateReviewComment, ItemNumber: intent.NumberRef(5), Path: "main.go", Line: 10, Body: "nit"},
		{Type: intent.TypeCreateReviewComment, ItemNumber: intent.NumberRef(5), Path: "main.go", Line: 20, StartLine: 15, Body: "refactor this"},
		{Type: intent.TypeSubmitReview, ItemNumber: intent.NumberRef(5), Event: "request_changes", Body: "overall"},
	}
	results, _ := d.Process(ctx, batch, m)

	for i, res := range results {
		assert.True(t, res.Success, "result %d: %s", i, res.Error)
	}
	assert.Equal(t, 0, fake.CallCount("CreateReview"), "nothing submitted before flush")

	flushed := d.Flush(ctx)
	require.NotNil(t, flushed)
	require.True(t, flushed.Success)
	require.Len(t, fake.Reviews, 1)
	want := platform.ReviewRequest{
		CommitID: "abc123",
		Body:     "overall",
		Event:    "REQUEST_CHANGES",
		Comments: []platform.DraftReviewComment{
			{Path: "main.go", Line: 10, Body: "nit"},
			{Path: "main.go", Line: 20, StartLine: 15, Body: "refactor this"},
		},
	}
	if diff := cmp.Diff(want, fake.Reviews[0]); diff != "" {
		t.Errorf("submitted review mismatch (-want +got):\n%s", diff)
	}
}

func TestReviewCommentsRejectSecondPullRequest(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeCreateReviewComment, ItemNumber: intent.NumberRef(5), Path: "a.go", Line: 1, Body: "x"},
		{Type: intent.TypeCreateReviewComment, ItemNumber: intent.NumberRef(6), Path: "b.go", Line: 2, Body: "y"},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	assert.True(t, results[0].Success)
	require.True(t, results[1].Fatal())
	assert.Contains(t, results[1].Error, "already bound")
}

func TestHideCommentReasonMapping(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeHideComment, CommentID: "IC_1", Reason: "spam"},
		{Type: intent.TypeHideComment, CommentID: "IC_2"},
		{Type: intent.TypeHideComment, CommentID: "IC_3", Reason: "rude"},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	require.True(t, results[2].Fatal())
	assert.Equal(t, []string{"IC_1", "IC_2"}, fake.MinimizedIDs)
	assert.Contains(t, fake.Calls[0], "reason=SPAM")
	assert.Contains(t, fake.Calls[1], "reason=OUTDATED")
}

func TestAssignMilestoneLooksUpByTitle(t *testing.T) {
	fake := platform.NewFake()
	fake.Milestones = []platform.Milestone{{Number: 3, Title: "v1.0"}, {Number: 4, Title: "v2.0"}}
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeAssignMilestone, ItemNumber: intent.NumberRef(8), Milestone: "v2.0"},
		{Type: intent.TypeAssignMilestone, ItemNumber: intent.NumberRef(8), Milestone: "v9.9"},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	assert.Contains(t, fake.Calls, "SetMilestone octo/demo#8 milestone=4")
	require.True(t, results[1].Fatal())
	assert.Contains(t, results[1].Error, "not found")
}

func TestAddReviewerFiltersByAllowList(t *testing.T) {
	cfg := baseConfig()
	cfg.Allow.Reviewers = []string{"alice", "bob"}
	fake := platform.NewFake()
	d := New(cfg, fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeAddReviewer, ItemNumber: intent.NumberRef(5), Reviewers: []string{"alice", "mallory"}},
		{Type: intent.TypeAddReviewer, ItemNumber: intent.NumberRef(5), Reviewers: []string{"mallory"}},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	require.Len(t, fake.ReviewersRequested, 1)
	assert.Equal(t, []string{"alice"}, fake.ReviewersRequested[0])
	require.True(t, results[1].Fatal())
	assert.Contains(t, results[1].Error, "allow-list")
}

func TestReviewAnchorsToPullRequestHead(t *testing.T) {
	exec := baseExec()
	exec.HeadSHA = ""
	fake := platform.NewFake()
	d := New(baseConfig(), fake, exec)
	ctx := context.Background()

	batch := []intent.Intent{
		{Type: intent.TypeCreateReviewComment, ItemNumber: intent.NumberRef(5), Path: "a.go", Line: 1, Body: "nit"},
		{Type: intent.TypeSubmitReview, ItemNumber: intent.NumberRef(5), Event: "approve"},
	}
	results, _ := d.Process(ctx, batch, resolve.NewMap())
	require.True(t, results[0].Success, results[0].Error)
	require.True(t, results[1].Success, results[1].Error)

	// One lookup binds the anchor; later buffered calls reuse it.
	assert.Equal(t, 1, fake.CallCount("GetPullRequest"))

	flushed := d.Flush(ctx)
	require.NotNil(t, flushed)
	require.True(t, flushed.Success)
	require.Len(t, fake.Reviews, 1)
	assert.Equal(t, "head5", fake.Reviews[0].CommitID)
}

func TestAddLabelsFiltersByAllowList(t *testing.T) {
	cfg := baseConfig()
	cfg.Allow.Labels = []string{"bug", "needs-triage"}
	fake := platform.NewFake()
	d := New(cfg, fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeAddLabels, ItemNumber: intent.NumberRef(8), Labels: []string{"bug", "wontfix"}},
		{Type: intent.TypeAddLabels, ItemNumber: intent.NumberRef(8), Labels: []string{"wontfix"}},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success, results[0].Error)
	require.Len(t, fake.LabelsAdded, 1)
	assert.Equal(t, []string{"bug"}, fake.LabelsAdded[0])
	require.True(t, results[1].Fatal())
	assert.Contains(t, results[1].Error, "allow-list")
}

func TestAddLabelsVanishedTargetSkips(t *testing.T) {
	fake := platform.NewFake()
	fake.Errors["AddLabels"] = platform.NotFoundError("issue")
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeAddLabels, ItemNumber: intent.NumberRef(8), Labels: []string{"bug"}},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	assert.True(t, results[0].Skipped)
}

func TestLinkSubIssueDefersUntilBothResolve(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())
	m := resolve.NewMap()
	ctx := context.Background()

	batch := []intent.Intent{
		{Type: intent.TypeLinkSubIssue, Parent: intent.NumberRef(1), Child: intent.NewItemRef("aw_kid")},
	}
	results, _ := d.Process(ctx, batch, m)
	require.True(t, results[0].Deferred)

	require.NoError(t, m.Register("aw_kid", resolve.Reference{Owner: "octo", Repo: "demo", Number: 33}))
	results, _ = d.Process(ctx, batch, m)
	require.True(t, results[0].Success)
	assert.Equal(t, [][2]int{{1, 33}}, fake.LinkedPairs)
}

func TestLinkSubIssueRejectsCrossRepo(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())
	m := resolve.NewMap()
	require.NoError(t, m.Register("aw_far", resolve.Reference{Owner: "other", Repo: "place", Number: 2}))

	batch := []intent.Intent{
		{Type: intent.TypeLinkSubIssue, Parent: intent.NumberRef(1), Child: intent.NewItemRef("aw_far")},
	}
	results, _ := d.Process(context.Background(), batch, m)

	require.True(t, results[0].Fatal())
	assert.Contains(t, results[0].Error, "same repository")
}

func TestCloseIssueReasonNormalization(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeCloseIssue, ItemNumber: intent.NumberRef(5), Reason: "duplicate"},
		{Type: intent.TypeCloseIssue, ItemNumber: intent.NumberRef(6), Reason: "because"},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	assert.Contains(t, fake.Calls[0], "reason=not_planned")
	require.True(t, results[1].Fatal())
}

func TestProjectDraftItemThenFieldUpdate(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())
	m := resolve.NewMap()
	ctx := context.Background()

	batch := []intent.Intent{
		{Type: intent.TypeUpdateProject, Project: "Roadmap", Title: "ship it", TemporaryID: "aw_card"},
		{Type: intent.TypeUpdateProject, Project: "Roadmap", ItemNumber: intent.NewItemRef("aw_card"), Field: "Status", Value: "Done"},
	}
	results, _ := d.Process(ctx, batch, m)

	require.True(t, results[0].Success, results[0].Error)
	require.True(t, results[1].Success, results[1].Error)
	require.Len(t, fake.FieldUpdates, 1)
	assert.Equal(t, "PVTI_item1:Status=Done", fake.FieldUpdates[0])
}

func TestProjectFieldUpdateOnNumericTargetFails(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{
		{Type: intent.TypeUpdateProject, Project: "Roadmap", ItemNumber: intent.NumberRef(42), Field: "Status", Value: "Done"},
	}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Fatal())
	assert.Contains(t, results[0].Error, "temporary id")
}

func TestCreateIssueSanitizesAndMarks(t *testing.T) {
	cfg := baseConfig()
	cfg.Footer.Mode = "always"
	cfg.Tracker = "trk1"
	fake := platform.NewFake()
	exec := baseExec()
	exec.RunID = "run9"
	exec.RunURL = "https://ci.example.test/runs/9"
	d := New(cfg, fake, exec)

	batch := []intent.Intent{{
		Type:  intent.TypeCreateIssue,
		Title: "found a bug",
		Body:  "details <script>alert(1)</script> here",
	}}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Success)
	require.Len(t, fake.IssueBodies, 1)
	body := fake.IssueBodies[0]
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "<!-- outpost-tracker: trk1 -->")
	assert.Contains(t, body, "<!-- outpost-run: run9 -->")
	assert.Contains(t, body, "https://ci.example.test/runs/9")
}

func TestBodyOverLimitFailsBeforeAnyCall(t *testing.T) {
	fake := platform.NewFake()
	d := New(baseConfig(), fake, baseExec())

	batch := []intent.Intent{{
		Type:       intent.TypeAddComment,
		ItemNumber: intent.NumberRef(5),
		Body:       strings.Repeat("x", 65537),
	}}
	results, _ := d.Process(context.Background(), batch, resolve.NewMap())

	require.True(t, results[0].Fatal())
	assert.Contains(t, results[0].Error, "E006")
	assert.Empty(t, fake.Calls)
}
