package amqp

import (
	"encoding/json"
	"time"
)

// Expense event actions carried on the wire.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ExpenseEventMessage notifies downstream consumers that an expense
// changed. It carries only identifiers; consumers that need row data fetch
// it from the database, so a deleted expense is simply absent.
type ExpenseEventMessage struct {
	ID        int64     `json:"id"`
	TripID    int64     `json:"trip_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEventMessage(id, tripID int64, action string) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		ID:        id,
		TripID:    tripID,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
