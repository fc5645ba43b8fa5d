// Package platform wraps the collaborative tracking platform (REST +
// GraphQL) behind one capability interface, and classifies the errors
// those calls produce into the pipeline's bounded taxonomy.
package platform

import (
	"context"
	"fmt"
	"time"

	gogithub "github.com/google/go-github/v66/github"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Comment identifies a created comment.
type Comment struct {
	ID  int64
	URL string
}

// Item is an issue or pull request as the pipeline sees it.
type Item struct {
	Number  int
	NodeID  string
	State   string
	URL     string
	IsPull  bool
	HeadSHA string // pull requests only
}

// Milestone pairs a milestone title with its API number.
type Milestone struct {
	Number int
	Title  string
}

// DraftReviewComment is one buffered inline review comment in a
// review submission.
type DraftReviewComment struct {
	Path      string
	Line      int
	StartLine int
	Side      string
	Body      string
}

// ReviewRequest is the single atomic review submission: every inline
// comment plus one overall body and disposition.
type ReviewRequest struct {
	CommitID string
	Body     string
	Event    string // APPROVE, REQUEST_CHANGES or COMMENT
	Comments []DraftReviewComment
}

// Client is the platform capability set the handlers depend on. The
// production implementation talks to GitHub; tests use the recording
// Fake.
type Client interface {
	// REST surface.
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error)
	CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*Item, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*Item, error)
	CloseIssue(ctx context.Context, owner, repo string, number int, reason string) error
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*Item, error)
	ClosePullRequest(ctx context.Context, owner, repo string, number int) error
	RequestReviewers(ctx context.Context, owner, repo string, number int, reviewers []string) error
	ListMilestones(ctx context.Context, owner, repo string) ([]Milestone, error)
	SetMilestone(ctx context.Context, owner, repo string, number, milestone int) error
	AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error
	CreateReview(ctx context.Context, owner, repo string, number int, review ReviewRequest) (string, error)

	// GraphQL surface.
	GetDiscussion(ctx context.Context, owner, repo string, number int) (nodeID string, err error)
	AddDiscussionComment(ctx context.Context, discussionNodeID, body string) (url string, err error)
	CreateDiscussion(ctx context.Context, owner, repo, category, title, body string) (*Item, error)
	LinkSubIssue(ctx context.Context, owner, repo string, parentNumber, childNumber int) error
	MinimizeComment(ctx context.Context, commentNodeID, reason string) error
	FindProject(ctx context.Context, owner, title string) (projectID string, err error)
	AddProjectDraftItem(ctx context.Context, projectID, title, body string) (itemID string, err error)
	UpdateProjectItemField(ctx context.Context, projectID, itemID, field, value string) error
}

// TokenProvider yields an API token scoped to a repository. AppAuth
// and StaticToken both satisfy it.
type TokenProvider interface {
	Token(repo string) (string, error)
}

// StaticToken is a plain personal-access-token provider.
type StaticToken string

func (t StaticToken) Token(string) (string, error) {
	if t == "" {
		return "", fmt.Errorf("empty token")
	}
	return string(t), nil
}

// GitHubClient is the production Client backed by go-github for REST
// and a minimal GraphQL POST client for the rest. Mutating calls are
// paced by a shared limiter and retried on transient faults.
type GitHubClient struct {
	rest    *gogithub.Client
	gql     *graphQLClient
	limiter *rate.Limiter
}

// NewGitHubClient builds the production client. repo is the
// triggering "owner/name" slug used to scope the token.
func NewGitHubClient(auth TokenProvider, repo string) (*GitHubClient, error) {
	token, err := auth.Token(repo)
	if err != nil {
		return nil, fmt.Errorf("resolve platform token: %w", err)
	}
	return &GitHubClient{
		rest:    gogithub.NewClient(nil).WithAuthToken(token),
		gql:     newGraphQLClient(token),
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}, nil
}

// WithBaseURL redirects REST and GraphQL traffic, for tests against a
// local server.
func (c *GitHubClient) WithBaseURL(restURL, gqlURL string) *GitHubClient {
	if restURL != "" {
		u, err := gogithub.NewClient(nil).BaseURL.Parse(restURL)
		if err == nil {
			c.rest.BaseURL = u
		}
	}
	if gqlURL != "" {
		c.gql.endpoint = gqlURL
	}
	return c
}

func (c *GitHubClient) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (c *GitHubClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var out *Comment
	err := withRetry(ctx, func() error {
		created, _, err := c.rest.Issues.CreateComment(ctx, owner, repo, number, &gogithub.IssueComment{
			Body: gogithub.String(body),
		})
		if err != nil {
			return err
		}
		out = &Comment{ID: created.GetID(), URL: created.GetHTMLURL()}
		return nil
	})
	return out, err
}

func (c *GitHubClient) CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*Item, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var out *Item
	err := withRetry(ctx, func() error {
		req := &gogithub.IssueRequest{Title: gogithub.String(title), Body: gogithub.String(body)}
		if len(labels) > 0 {
			req.Labels = &labels
		}
		issue, _, err := c.rest.Issues.Create(ctx, owner, repo, req)
		if err != nil {
			return err
		}
		out = itemFromIssue(issue)
		return nil
	})
	return out, err
}

func (c *GitHubClient) GetIssue(ctx context.Context, owner, repo string, number int) (*Item, error) {
	var out *Item
	err := withRetry(ctx, func() error {
		issue, _, err := c.rest.Issues.Get(ctx, owner, repo, number)
		if err != nil {
			return err
		}
		out = itemFromIssue(issue)
		return nil
	})
	return out, err
}

func (c *GitHubClient) CloseIssue(ctx context.Context, owner, repo string, number int, reason string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return withRetry(ctx, func() error {
		req := &gogithub.IssueRequest{State: gogithub.String("closed")}
		if reason != "" {
			req.StateReason = gogithub.String(reason)
		}
		_, _, err := c.rest.Issues.Edit(ctx, owner, repo, number, req)
		return err
	})
}

func (c *GitHubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*Item, error) {
	var out *Item
	err := withRetry(ctx, func() error {
		pr, _, err := c.rest.PullRequests.Get(ctx, owner, repo, number)
		if err != nil {
			return err
		}
		out = &Item{
			Number:  pr.GetNumber(),
			NodeID:  pr.GetNodeID(),
			State:   pr.GetState(),
			URL:     pr.GetHTMLURL(),
			IsPull:  true,
			HeadSHA: pr.GetHead().GetSHA(),
		}
		return nil
	})
	return out, err
}

func (c *GitHubClient) ClosePullRequest(ctx context.Context, owner, repo string, number int) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return withRetry(ctx, func() error {
		_, _, err := c.rest.PullRequests.Edit(ctx, owner, repo, number, &gogithub.PullRequest{
			State: gogithub.String("closed"),
		})
		return err
	})
}

func (c *GitHubClient) RequestReviewers(ctx context.Context, owner, repo string, number int, reviewers []string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return withRetry(ctx, func() error {
		_, _, err := c.rest.PullRequests.RequestReviewers(ctx, owner, repo, number, gogithub.ReviewersRequest{
			Reviewers: reviewers,
		})
		return err
	})
}

func (c *GitHubClient) ListMilestones(ctx context.Context, owner, repo string) ([]Milestone, error) {
	var out []Milestone
	err := withRetry(ctx, func() error {
		ms, _, err := c.rest.Issues.ListMilestones(ctx, owner, repo, &gogithub.MilestoneListOptions{
			State:       "open",
			ListOptions: gogithub.ListOptions{PerPage: 100},
		})
		if err != nil {
			return err
		}
		out = out[:0]
		for _, m := range ms {
			out = append(out, Milestone{Number: m.GetNumber(), Title: m.GetTitle()})
		}
		return nil
	})
	return out, err
}

func (c *GitHubClient) SetMilestone(ctx context.Context, owner, repo string, number, milestone int) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return withRetry(ctx, func() error {
		_, _, err := c.rest.Issues.Edit(ctx, owner, repo, number, &gogithub.IssueRequest{
			Milestone: gogithub.Int(milestone),
		})
		return err
	})
}

func (c *GitHubClient) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return withRetry(ctx, func() error {
		_, _, err := c.rest.Issues.AddLabelsToIssue(ctx, owner, repo, number, labels)
		return err
	})
}

func (c *GitHubClient) CreateReview(ctx context.Context, owner, repo string, number int, review ReviewRequest) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	var url string
	err := withRetry(ctx, func() error {
		req := &gogithub.PullRequestReviewRequest{
			Body:  gogithub.String(review.Body),
			Event: gogithub.String(review.Event),
		}
		if review.CommitID != "" {
			req.CommitID = gogithub.String(review.CommitID)
		}
		for _, dc := range review.Comments {
			comment := &gogithub.DraftReviewComment{
				Path: gogithub.String(dc.Path),
				Body: gogithub.String(dc.Body),
				Line: gogithub.Int(dc.Line),
			}
			if dc.StartLine > 0 {
				comment.StartLine = gogithub.Int(dc.StartLine)
			}
			if dc.Side != "" {
				comment.Side = gogithub.String(dc.Side)
			}
			req.Comments = append(req.Comments, comment)
		}
		created, _, err := c.rest.PullRequests.CreateReview(ctx, owner, repo, number, req)
		if err != nil {
			return err
		}
		url = created.GetHTMLURL()
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Debug().Str("repo", owner+"/"+repo).Int("pr", number).
		Int("comments", len(review.Comments)).Msg("Submitted pull request review")
	return url, nil
}

func itemFromIssue(issue *gogithub.Issue) *Item {
	return &Item{
		Number: issue.GetNumber(),
		NodeID: issue.GetNodeID(),
		State:  issue.GetState(),
		URL:    issue.GetHTMLURL(),
		IsPull: issue.IsPullRequest(),
	}
}
