package platform

import (
	"context"
	"fmt"
	"strings"
)

// Fake is a recording in-memory Client for handler tests. Every call
// is appended to Calls as "Method owner/repo#n"; per-method errors are
// programmable through Errors.
type Fake struct {
	Calls  []string
	Errors map[string]error

	NextNumber   int
	DiscussionID string
	ProjectID    string
	DraftItemID  string

	Comments           []string
	DiscussionComments []string
	Reviews            []ReviewRequest
	Milestones         []Milestone
	CreatedIssues      []*Item
	MinimizedIDs       []string
	IssueTitles        []string
	IssueBodies        []string
	LinkedPairs        [][2]int
	ReviewersRequested [][]string
	LabelsAdded        [][]string
	FieldUpdates       []string
}

// NewFake returns a Fake with benign defaults.
func NewFake() *Fake {
	return &Fake{
		Errors:       make(map[string]error),
		NextNumber:   100,
		DiscussionID: "D_disc1",
		ProjectID:    "PVT_proj1",
		DraftItemID:  "PVTI_item1",
	}
}

// NotFoundError builds an error the classifier treats as a vanished
// target.
func NotFoundError(what string) error {
	return fmt.Errorf("404 Not Found: %s", what)
}

func (f *Fake) record(format string, args ...any) {
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

// CallCount reports how many recorded calls were made to method.
func (f *Fake) CallCount(method string) int {
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, method+" ") || c == method {
			n++
		}
	}
	return n
}

func (f *Fake) err(method string) error { return f.Errors[method] }

func (f *Fake) CreateComment(_ context.Context, owner, repo string, number int, body string) (*Comment, error) {
	f.record("CreateComment %s/%s#%d", owner, repo, number)
	if err := f.err("CreateComment"); err != nil {
		return nil, err
	}
	f.Comments = append(f.Comments, body)
	return &Comment{
		ID:  int64(len(f.Comments)),
		URL: fmt.Sprintf("https://example.test/%s/%s/issues/%d#comment", owner, repo, number),
	}, nil
}

func (f *Fake) CreateIssue(_ context.Context, owner, repo, title, body string, labels []string) (*Item, error) {
	f.record("CreateIssue %s/%s", owner, repo)
	if err := f.err("CreateIssue"); err != nil {
		return nil, err
	}
	f.NextNumber++
	item := &Item{
		Number: f.NextNumber,
		NodeID: fmt.Sprintf("I_node%d", f.NextNumber),
		State:  "open",
		URL:    fmt.Sprintf("https://example.test/%s/%s/issues/%d", owner, repo, f.NextNumber),
	}
	f.CreatedIssues = append(f.CreatedIssues, item)
	f.IssueTitles = append(f.IssueTitles, title)
	f.IssueBodies = append(f.IssueBodies, body)
	if len(labels) > 0 {
		f.LabelsAdded = append(f.LabelsAdded, labels)
	}
	return item, nil
}

func (f *Fake) GetIssue(_ context.Context, owner, repo string, number int) (*Item, error) {
	f.record("GetIssue %s/%s#%d", owner, repo, number)
	if err := f.err("GetIssue"); err != nil {
		return nil, err
	}
	return &Item{Number: number, NodeID: fmt.Sprintf("I_node%d", number), State: "open"}, nil
}

func (f *Fake) CloseIssue(_ context.Context, owner, repo string, number int, reason string) error {
	f.record("CloseIssue %s/%s#%d reason=%s", owner, repo, number, reason)
	return f.err("CloseIssue")
}

func (f *Fake) GetPullRequest(_ context.Context, owner, repo string, number int) (*Item, error) {
	f.record("GetPullRequest %s/%s#%d", owner, repo, number)
	if err := f.err("GetPullRequest"); err != nil {
		return nil, err
	}
	return &Item{
		Number:  number,
		NodeID:  fmt.Sprintf("PR_node%d", number),
		State:   "open",
		IsPull:  true,
		HeadSHA: fmt.Sprintf("head%d", number),
	}, nil
}

func (f *Fake) ClosePullRequest(_ context.Context, owner, repo string, number int) error {
	f.record("ClosePullRequest %s/%s#%d", owner, repo, number)
	return f.err("ClosePullRequest")
}

func (f *Fake) RequestReviewers(_ context.Context, owner, repo string, number int, reviewers []string) error {
	f.record("RequestReviewers %s/%s#%d", owner, repo, number)
	if err := f.err("RequestReviewers"); err != nil {
		return err
	}
	f.ReviewersRequested = append(f.ReviewersRequested, reviewers)
	return nil
}

func (f *Fake) ListMilestones(_ context.Context, owner, repo string) ([]Milestone, error) {
	f.record("ListMilestones %s/%s", owner, repo)
	if err := f.err("ListMilestones"); err != nil {
		return nil, err
	}
	return f.Milestones, nil
}

func (f *Fake) SetMilestone(_ context.Context, owner, repo string, number, milestone int) error {
	f.record("SetMilestone %s/%s#%d milestone=%d", owner, repo, number, milestone)
	return f.err("SetMilestone")
}

func (f *Fake) AddLabels(_ context.Context, owner, repo string, number int, labels []string) error {
	f.record("AddLabels %s/%s#%d", owner, repo, number)
	if err := f.err("AddLabels"); err != nil {
		return err
	}
	f.LabelsAdded = append(f.LabelsAdded, labels)
	return nil
}

func (f *Fake) CreateReview(_ context.Context, owner, repo string, number int, review ReviewRequest) (string, error) {
	f.record("CreateReview %s/%s#%d", owner, repo, number)
	if err := f.err("CreateReview"); err != nil {
		return "", err
	}
	f.Reviews = append(f.Reviews, review)
	return fmt.Sprintf("https://example.test/%s/%s/pull/%d#review", owner, repo, number), nil
}

func (f *Fake) GetDiscussion(_ context.Context, owner, repo string, number int) (string, error) {
	f.record("GetDiscussion %s/%s#%d", owner, repo, number)
	if err := f.err("GetDiscussion"); err != nil {
		return "", err
	}
	return f.DiscussionID, nil
}

func (f *Fake) AddDiscussionComment(_ context.Context, discussionNodeID, body string) (string, error) {
	f.record("AddDiscussionComment %s", discussionNodeID)
	if err := f.err("AddDiscussionComment"); err != nil {
		return "", err
	}
	f.DiscussionComments = append(f.DiscussionComments, body)
	return "https://example.test/discussion#comment", nil
}

func (f *Fake) CreateDiscussion(_ context.Context, owner, repo, category, title, body string) (*Item, error) {
	f.record("CreateDiscussion %s/%s category=%s", owner, repo, category)
	if err := f.err("CreateDiscussion"); err != nil {
		return nil, err
	}
	f.NextNumber++
	f.IssueTitles = append(f.IssueTitles, title)
	f.IssueBodies = append(f.IssueBodies, body)
	return &Item{
		Number: f.NextNumber,
		NodeID: fmt.Sprintf("D_node%d", f.NextNumber),
		URL:    fmt.Sprintf("https://example.test/%s/%s/discussions/%d", owner, repo, f.NextNumber),
	}, nil
}

func (f *Fake) LinkSubIssue(_ context.Context, owner, repo string, parentNumber, childNumber int) error {
	f.record("LinkSubIssue %s/%s parent=%d child=%d", owner, repo, parentNumber, childNumber)
	if err := f.err("LinkSubIssue"); err != nil {
		return err
	}
	f.LinkedPairs = append(f.LinkedPairs, [2]int{parentNumber, childNumber})
	return nil
}

func (f *Fake) MinimizeComment(_ context.Context, commentNodeID, reason string) error {
	f.record("MinimizeComment %s reason=%s", commentNodeID, reason)
	if err := f.err("MinimizeComment"); err != nil {
		return err
	}
	f.MinimizedIDs = append(f.MinimizedIDs, commentNodeID)
	return nil
}

func (f *Fake) FindProject(_ context.Context, owner, title string) (string, error) {
	f.record("FindProject %s title=%s", owner, title)
	if err := f.err("FindProject"); err != nil {
		return "", err
	}
	return f.ProjectID, nil
}

func (f *Fake) AddProjectDraftItem(_ context.Context, projectID, title, body string) (string, error) {
	f.record("AddProjectDraftItem %s", projectID)
	if err := f.err("AddProjectDraftItem"); err != nil {
		return "", err
	}
	f.IssueTitles = append(f.IssueTitles, title)
	f.IssueBodies = append(f.IssueBodies, body)
	return f.DraftItemID, nil
}

func (f *Fake) UpdateProjectItemField(_ context.Context, projectID, itemID, field, value string) error {
	f.record("UpdateProjectItemField %s field=%s", projectID, field)
	if err := f.err("UpdateProjectItemField"); err != nil {
		return err
	}
	f.FieldUpdates = append(f.FieldUpdates, fmt.Sprintf("%s:%s=%s", itemID, field, value))
	return nil
}

var _ Client = (*Fake)(nil)
