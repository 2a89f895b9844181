package amqp

import (
	"encoding/json"
	"time"
)

// RefreshMessage asks the worker to bring the snapshot chain up to
// Month. Force recomputes the target month even when a record exists.
type RefreshMessage struct {
	Month     string    `json:"month"`
	Force     bool      `json:"force"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRefreshMessage(month string, force bool) *RefreshMessage {
	return &RefreshMessage{
		Month:     month,
		Force:     force,
		Timestamp: time.Now(),
	}
}

func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
