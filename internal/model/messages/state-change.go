package messages

import (
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
)

// StateChangeEvent is published by a controller when a zone valve opens or closes.
type StateChangeEvent struct {
	ZoneID    int                 `json:"zone_id"`
	NewState  entities.ValveState `json:"new_state"`
	Duration  time.Duration       `json:"duration"`
	Timestamp time.Time           `json:"timestamp"`
}
