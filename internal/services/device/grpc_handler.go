package device

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/timestamppb"

	pb "github.com/apogeecmb/smartSprinkler/grpc/irrigation"
)

// GrpcHandler exposes the simulator as a DeviceService.
type GrpcHandler struct {
	pb.UnimplementedDeviceServiceServer
	sim *Simulator
}

func NewGrpcHandler(sim *Simulator) *GrpcHandler {
	return &GrpcHandler{sim: sim}
}

func (h *GrpcHandler) UpdateProgram(_ context.Context, req *pb.UpdateProgramRequest) (*pb.CommandResponse, error) {
	zone := int(req.GetZoneId())
	d := req.GetDuration()
	if zone <= 0 {
		return &pb.CommandResponse{Success: false, Message: fmt.Sprintf("invalid zone %d", zone)}, nil
	}
	if d <= 0 {
		return &pb.CommandResponse{Success: false, Message: "duration must be positive"}, nil
	}
	p := h.sim.UpdateProgram(zone, req.GetStart(), d)
	return &pb.CommandResponse{Success: true, Message: fmt.Sprintf("program %s set for zone %d", p.ID, zone)}, nil
}

func (h *GrpcHandler) DisableProgram(_ context.Context, req *pb.DisableProgramRequest) (*pb.CommandResponse, error) {
	zone := int(req.GetZoneId())
	if h.sim.DisableProgram(zone) {
		return &pb.CommandResponse{Success: true, Message: fmt.Sprintf("zone %d disabled", zone)}, nil
	}
	return &pb.CommandResponse{Success: true, Message: fmt.Sprintf("zone %d already disabled", zone)}, nil
}

func (h *GrpcHandler) GetRunHistory(_ context.Context, req *pb.RunHistoryRequest) (*pb.RunHistoryResponse, error) {
	start, end := req.GetWindow()
	ids := make([]int, 0, len(req.ZoneIds))
	for _, id := range req.ZoneIds {
		ids = append(ids, int(id))
	}
	resp := &pb.RunHistoryResponse{}
	for zone, hist := range h.sim.History(ids, start, end) {
		z := &pb.ZoneRunHistory{ZoneId: int32(zone), RuntimeSeconds: hist.RuntimeSeconds}
		if !hist.LastRun.IsZero() {
			z.LastRun = timestamppb.New(hist.LastRun)
		}
		resp.Zones = append(resp.Zones, z)
	}
	return resp, nil
}
