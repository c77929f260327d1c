package irrigation

import (
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// UpdateProgramRequest replaces the single program held by the controller for a zone.
type UpdateProgramRequest struct {
	ZoneId   int32                  `json:"zone_id"`
	Start    *timestamppb.Timestamp `json:"start"`
	Duration *durationpb.Duration   `json:"duration"`
}

func NewUpdateProgramRequest(zoneID int, start time.Time, d time.Duration) *UpdateProgramRequest {
	return &UpdateProgramRequest{ZoneId: int32(zoneID), Start: timestamppb.New(start), Duration: durationpb.New(d)}
}

func (x *UpdateProgramRequest) GetZoneId() int32 {
	if x == nil {
		return 0
	}
	return x.ZoneId
}

func (x *UpdateProgramRequest) GetStart() time.Time {
	if x == nil || x.Start == nil {
		return time.Time{}
	}
	return x.Start.AsTime()
}

func (x *UpdateProgramRequest) GetDuration() time.Duration {
	if x == nil || x.Duration == nil {
		return 0
	}
	return x.Duration.AsDuration()
}

type DisableProgramRequest struct {
	ZoneId int32 `json:"zone_id"`
}

func (x *DisableProgramRequest) GetZoneId() int32 {
	if x == nil {
		return 0
	}
	return x.ZoneId
}

type CommandResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (x *CommandResponse) GetSuccess() bool { return x != nil && x.Success }

func (x *CommandResponse) GetMessage() string {
	if x == nil {
		return ""
	}
	return x.Message
}

type RunHistoryRequest struct {
	ZoneIds []int32                `json:"zone_ids"`
	Start   *timestamppb.Timestamp `json:"start"`
	End     *timestamppb.Timestamp `json:"end"`
}

func (x *RunHistoryRequest) GetWindow() (time.Time, time.Time) {
	if x == nil || x.Start == nil || x.End == nil {
		return time.Time{}, time.Time{}
	}
	return x.Start.AsTime(), x.End.AsTime()
}

type ZoneRunHistory struct {
	ZoneId         int32                  `json:"zone_id"`
	RuntimeSeconds float64                `json:"runtime_seconds"`
	LastRun        *timestamppb.Timestamp `json:"last_run,omitempty"`
}

type RunHistoryResponse struct {
	Zones []*ZoneRunHistory `json:"zones"`
}

func (x *RunHistoryResponse) GetZones() []*ZoneRunHistory {
	if x == nil {
		return nil
	}
	return x.Zones
}
