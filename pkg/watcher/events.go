package watcher

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventAccountUpdated  EventType = "account_updated"
	EventMetadataUpdated EventType = "metadata_updated"
	EventBalanceUpdated  EventType = "balance_updated"
	EventHistoryUpdated  EventType = "history_updated"
	EventWriteUpdated    EventType = "write_updated"
	EventDraftUpdated    EventType = "draft_updated"
)

// Event represents a state change in the watcher.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
