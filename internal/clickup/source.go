package clickup

import "context"

// ListTasksParams controls a task list fetch.
type ListTasksParams struct {
	ListID        string
	IncludeClosed bool
	PageSize      int
}

// TaskSource is the port the metric engine pulls raw records through.
// Implementations own pagination and retry; the engine is agnostic to both.
type TaskSource interface {
	ListTasks(ctx context.Context, p ListTasksParams) ([]Task, error)
	GetTaskComments(ctx context.Context, taskID string) ([]Comment, error)
}
