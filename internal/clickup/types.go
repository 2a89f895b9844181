// Package clickup defines the wire types of the work-management API and
// the TaskSource port the metric engine pulls raw records through.
package clickup

import "strconv"

// Task is the raw task shape returned by the API. All date fields are
// epoch-millisecond strings, as delivered on the wire.
type Task struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Status       *TaskStatus   `json:"status,omitempty"`
	DateCreated  string        `json:"date_created,omitempty"`
	DateUpdated  string        `json:"date_updated,omitempty"`
	DateClosed   string        `json:"date_closed,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
}

type TaskStatus struct {
	Status string `json:"status"`
}

// CustomField is a loosely typed field attached to a task. Value can be
// a string, a number or absent depending on the field type.
type CustomField struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Comment is one task comment. Date is an epoch-millisecond string.
type Comment struct {
	CommentText string       `json:"comment_text,omitempty"`
	User        *CommentUser `json:"user,omitempty"`
	Date        string       `json:"date,omitempty"`
}

type CommentUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// StatusName returns the task's current status label, empty if unset.
func (t Task) StatusName() string {
	if t.Status == nil {
		return ""
	}
	return t.Status.Status
}

// ParseMs parses an epoch-millisecond string field. Returns 0, false for
// empty or malformed values.
func ParseMs(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

// TimestampMs returns the comment's epoch-ms timestamp, 0 if missing.
func (c Comment) TimestampMs() int64 {
	ms, _ := ParseMs(c.Date)
	return ms
}
