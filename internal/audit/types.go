package audit

import "time"

// Entry is one recorded security event.
type Entry struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	ActorID   string         `json:"actor_id,omitempty"`
	ActorName string         `json:"actor_name,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DefaultListLimit caps List queries that don't specify one.
const DefaultListLimit = 200
