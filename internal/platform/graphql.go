package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// graphQLClient is a thin GraphQL POST client for the operations the
// REST API does not cover: discussions, sub-issue linking, comment
// minimization and project mutations.
type graphQLClient struct {
	httpClient *http.Client
	endpoint   string
	token      string
}

func newGraphQLClient(token string) *graphQLClient {
	return &graphQLClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		endpoint:   "https://api.github.com/graphql",
		token:      token,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// do executes a GraphQL POST and decodes the data envelope into out.
// A GraphQL-level error becomes a Go error carrying the first message,
// with NOT_FOUND surfaced in the text so the failure classifier can
// treat it as a vanished target.
func (c *graphQLClient) do(ctx context.Context, query string, variables map[string]any, out any) error {
	reqBody := graphQLRequest{Query: query, Variables: variables}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(reqBody); err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphql http error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql status %d: %s", resp.StatusCode, string(body))
	}

	var wrapper struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return fmt.Errorf("decode graphql envelope: %w", err)
	}
	if len(wrapper.Errors) > 0 {
		first := wrapper.Errors[0]
		if first.Type == "NOT_FOUND" {
			return fmt.Errorf("graphql not found: %s", first.Message)
		}
		return fmt.Errorf("graphql error: %s", first.Message)
	}
	if out != nil {
		if len(wrapper.Data) == 0 {
			wrapper.Data = json.RawMessage("null")
		}
		if err := json.Unmarshal(wrapper.Data, out); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}

func (c *GitHubClient) GetDiscussion(ctx context.Context, owner, repo string, number int) (string, error) {
	const query = `query($owner: String!, $repo: String!, $number: Int!) {
		repository(owner: $owner, name: $repo) {
			discussion(number: $number) { id }
		}
	}`
	var data struct {
		Repository struct {
			Discussion *struct {
				ID string `json:"id"`
			} `json:"discussion"`
		} `json:"repository"`
	}
	err := c.gql.do(ctx, query, map[string]any{"owner": owner, "repo": repo, "number": number}, &data)
	if err != nil {
		return "", err
	}
	if data.Repository.Discussion == nil {
		return "", fmt.Errorf("discussion %s/%s#%d not found", owner, repo, number)
	}
	return data.Repository.Discussion.ID, nil
}

func (c *GitHubClient) AddDiscussionComment(ctx context.Context, discussionNodeID, body string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	const mutation = `mutation($discussionId: ID!, $body: String!) {
		addDiscussionComment(input: {discussionId: $discussionId, body: $body}) {
			comment { url }
		}
	}`
	var data struct {
		AddDiscussionComment struct {
			Comment struct {
				URL string `json:"url"`
			} `json:"comment"`
		} `json:"addDiscussionComment"`
	}
	err := c.gql.do(ctx, mutation, map[string]any{"discussionId": discussionNodeID, "body": body}, &data)
	if err != nil {
		return "", err
	}
	return data.AddDiscussionComment.Comment.URL, nil
}

func (c *GitHubClient) CreateDiscussion(ctx context.Context, owner, repo, category, title, body string) (*Item, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	// Resolve repository and category ids first.
	const lookup = `query($owner: String!, $repo: String!) {
		repository(owner: $owner, name: $repo) {
			id
			discussionCategories(first: 25) {
				nodes { id name }
			}
		}
	}`
	var repoData struct {
		Repository struct {
			ID                   string `json:"id"`
			DiscussionCategories struct {
				Nodes []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"nodes"`
			} `json:"discussionCategories"`
		} `json:"repository"`
	}
	if err := c.gql.do(ctx, lookup, map[string]any{"owner": owner, "repo": repo}, &repoData); err != nil {
		return nil, err
	}
	categoryID := ""
	for _, node := range repoData.Repository.DiscussionCategories.Nodes {
		if category == "" || node.Name == category {
			categoryID = node.ID
			break
		}
	}
	if categoryID == "" {
		return nil, fmt.Errorf("discussion category %q not found in %s/%s", category, owner, repo)
	}

	const mutation = `mutation($repositoryId: ID!, $categoryId: ID!, $title: String!, $body: String!) {
		createDiscussion(input: {repositoryId: $repositoryId, categoryId: $categoryId, title: $title, body: $body}) {
			discussion { id number url }
		}
	}`
	var data struct {
		CreateDiscussion struct {
			Discussion struct {
				ID     string `json:"id"`
				Number int    `json:"number"`
				URL    string `json:"url"`
			} `json:"discussion"`
		} `json:"createDiscussion"`
	}
	vars := map[string]any{
		"repositoryId": repoData.Repository.ID,
		"categoryId":   categoryID,
		"title":        title,
		"body":         body,
	}
	if err := c.gql.do(ctx, mutation, vars, &data); err != nil {
		return nil, err
	}
	d := data.CreateDiscussion.Discussion
	return &Item{Number: d.Number, NodeID: d.ID, URL: d.URL}, nil
}

func (c *GitHubClient) LinkSubIssue(ctx context.Context, owner, repo string, parentNumber, childNumber int) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	parent, err := c.GetIssue(ctx, owner, repo, parentNumber)
	if err != nil {
		return err
	}
	child, err := c.GetIssue(ctx, owner, repo, childNumber)
	if err != nil {
		return err
	}

	const mutation = `mutation($parentId: ID!, $childId: ID!) {
		addSubIssue(input: {issueId: $parentId, subIssueId: $childId}) {
			issue { id }
		}
	}`
	return c.gql.do(ctx, mutation, map[string]any{"parentId": parent.NodeID, "childId": child.NodeID}, nil)
}

func (c *GitHubClient) MinimizeComment(ctx context.Context, commentNodeID, reason string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	const mutation = `mutation($id: ID!, $classifier: ReportedContentClassifiers!) {
		minimizeComment(input: {subjectId: $id, classifier: $classifier}) {
			minimizedComment { isMinimized }
		}
	}`
	return c.gql.do(ctx, mutation, map[string]any{"id": commentNodeID, "classifier": reason}, nil)
}

// FindProject locates a ProjectV2 board by title. Boards can hang off
// an organization or a user account; the organization lookup runs
// first and a miss falls back to the user field.
func (c *GitHubClient) FindProject(ctx context.Context, owner, title string) (string, error) {
	id, err := c.findOwnerProject(ctx, "organization", owner, title)
	if err == nil {
		return id, nil
	}
	if !IsNotFound(err) {
		return "", err
	}
	return c.findOwnerProject(ctx, "user", owner, title)
}

func (c *GitHubClient) findOwnerProject(ctx context.Context, ownerField, owner, title string) (string, error) {
	query := fmt.Sprintf(`query($owner: String!, $title: String!) {
		%s(login: $owner) {
			projectsV2(first: 10, query: $title) {
				nodes { id title }
			}
		}
	}`, ownerField)
	var data map[string]struct {
		ProjectsV2 struct {
			Nodes []struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"nodes"`
		} `json:"projectsV2"`
	}
	if err := c.gql.do(ctx, query, map[string]any{"owner": owner, "title": title}, &data); err != nil {
		return "", err
	}
	for _, node := range data[ownerField].ProjectsV2.Nodes {
		if node.Title == title {
			return node.ID, nil
		}
	}
	return "", fmt.Errorf("project %q not found for %s %s", title, ownerField, owner)
}

func (c *GitHubClient) AddProjectDraftItem(ctx context.Context, projectID, title, body string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	const mutation = `mutation($projectId: ID!, $title: String!, $body: String!) {
		addProjectV2DraftIssue(input: {projectId: $projectId, title: $title, body: $body}) {
			projectItem { id }
		}
	}`
	var data struct {
		AddProjectV2DraftIssue struct {
			ProjectItem struct {
				ID string `json:"id"`
			} `json:"projectItem"`
		} `json:"addProjectV2DraftIssue"`
	}
	if err := c.gql.do(ctx, mutation, map[string]any{"projectId": projectID, "title": title, "body": body}, &data); err != nil {
		return "", err
	}
	return data.AddProjectV2DraftIssue.ProjectItem.ID, nil
}

func (c *GitHubClient) UpdateProjectItemField(ctx context.Context, projectID, itemID, field, value string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	// Field names map to ids per project; resolve then update.
	const fieldQuery = `query($projectId: ID!) {
		node(id: $projectId) {
			... on ProjectV2 {
				fields(first: 50) {
					nodes {
						... on ProjectV2FieldCommon { id name }
					}
				}
			}
		}
	}`
	var fieldData struct {
		Node struct {
			Fields struct {
				Nodes []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"nodes"`
			} `json:"fields"`
		} `json:"node"`
	}
	if err := c.gql.do(ctx, fieldQuery, map[string]any{"projectId": projectID}, &fieldData); err != nil {
		return err
	}
	fieldID := ""
	for _, node := range fieldData.Node.Fields.Nodes {
		if node.Name == field {
			fieldID = node.ID
			break
		}
	}
	if fieldID == "" {
		return fmt.Errorf("project field %q not found", field)
	}

	const mutation = `mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $value: String!) {
		updateProjectV2ItemFieldValue(input: {projectId: $projectId, itemId: $itemId, fieldId: $fieldId, value: {text: $value}}) {
			projectV2Item { id }
		}
	}`
	vars := map[string]any{
		"projectId": projectID,
		"itemId":    itemID,
		"fieldId":   fieldID,
		"value":     value,
	}
	return c.gql.do(ctx, mutation, vars, nil)
}
