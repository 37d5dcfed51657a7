package model

import "time"

// QuarantineRecord holds a source record that failed validation, together
// with why, so operators can inspect and extend the mapping tables. A
// quarantined record never blocks the rest of its batch.
type QuarantineRecord struct {
	ID        string     `json:"id"` // uuid
	League    League     `json:"league"`
	Source    string     `json:"source"`
	Kind      EntityKind `json:"kind"`
	Payload   []byte     `json:"payload"` // raw source record, JSON
	Field     string     `json:"field,omitempty"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
}
