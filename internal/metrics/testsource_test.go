package metrics

import (
	"context"
	"fmt"

	"madad/internal/clickup"
)

// fakeTaskSource serves canned tasks per list and comments per task,
// counting comment fetches so budget behavior can be asserted.
type fakeTaskSource struct {
	tasksByList    map[string][]clickup.Task
	commentsByTask map[string][]clickup.Comment
	failComments   map[string]bool
	commentFetches int
}

func (f *fakeTaskSource) ListTasks(_ context.Context, p clickup.ListTasksParams) ([]clickup.Task, error) {
	return f.tasksByList[p.ListID], nil
}

func (f *fakeTaskSource) GetTaskComments(_ context.Context, taskID string) ([]clickup.Comment, error) {
	f.commentFetches++
	if f.failComments[taskID] {
		return nil, fmt.Errorf("comments for %s: boom", taskID)
	}
	return f.commentsByTask[taskID], nil
}
