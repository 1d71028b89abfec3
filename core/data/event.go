package data

import (
	"encoding/json"
	"time"
)

// ProgressEvent records one processed profile so downstream consumers can
// follow the backfill without polling the database.
type ProgressEvent struct {
	CRDNumber int64     `json:"crd_number"`
	Stage     string    `json:"stage"`
	Source    string    `json:"source"`
	At        time.Time `json:"at"`
}

func (e ProgressEvent) String() string {
	encoded, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func ParseProgressEvent(raw string) (ProgressEvent, error) {
	var event ProgressEvent
	err := json.Unmarshal([]byte(raw), &event)
	return event, err
}
