package events

import "time"

// NotificationIngested is raised after a notification batch is committed.
type NotificationIngested struct {
	EventID    string    `json:"event_id"`
	EntityIDs  []string  `json:"entity_ids"`
	Records    int       `json:"records"`
	OccurredAt time.Time `json:"occurred_at"`
}
