package dispatch

import "fmt"

// ExecutionContext is the ambient workflow context handlers resolve
// "triggering" targets against. It is a value object built once per
// run; handlers receive it explicitly instead of reading globals.
type ExecutionContext struct {
	Owner string
	Repo  string

	// TriggeringNumber is the issue, PR or discussion the workflow
	// ran for; zero when the workflow was not item-triggered.
	TriggeringNumber int

	// IsDiscussion marks the triggering item as a discussion, which
	// changes how comments are posted.
	IsDiscussion bool

	// HeadSHA anchors inline review comments.
	HeadSHA string

	RunID  string
	RunURL string
}

// Slug returns "owner/repo".
func (e ExecutionContext) Slug() string { return e.Owner + "/" + e.Repo }

// Ref renders "owner/repo#number".
func (e ExecutionContext) Ref(number int) string {
	return fmt.Sprintf("%s#%d", e.Slug(), number)
}
