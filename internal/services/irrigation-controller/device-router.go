package irrigation_controller

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/timestamppb"

	pb "github.com/apogeecmb/smartSprinkler/grpc/irrigation"
	"github.com/apogeecmb/smartSprinkler/internal/fault"
	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
	"github.com/apogeecmb/smartSprinkler/internal/services/aggregator"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

// DeviceController programs the sprinkler controller. Both commands are idempotent.
type DeviceController interface {
	UpdateProgram(ctx context.Context, zoneID int, start time.Time, d time.Duration) error
	DisableProgram(ctx context.Context, zoneID int) error
}

// DeviceClient talks to a controller over gRPC. Each call is retried once.
type DeviceClient struct {
	conn    *grpc.ClientConn
	cli     pb.DeviceServiceClient
	timeout time.Duration
	log     logx.Logger
}

var (
	_ DeviceController         = (*DeviceClient)(nil)
	_ aggregator.HistorySource = (*DeviceClient)(nil)
)

// DialDevice creates a lazy client connection; nothing is sent until the first call.
func DialDevice(addr string, timeout time.Duration, log logx.Logger) (*DeviceClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial controller %s: %w", addr, err)
	}
	return NewDeviceClient(conn, pb.NewDeviceServiceClient(conn), timeout, log), nil
}

// NewDeviceClient wraps an existing client. conn may be nil when the caller owns it.
func NewDeviceClient(conn *grpc.ClientConn, cli pb.DeviceServiceClient, timeout time.Duration, log logx.Logger) *DeviceClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DeviceClient{conn: conn, cli: cli, timeout: timeout, log: log.With(logx.String("component", "device"))}
}

func (d *DeviceClient) UpdateProgram(ctx context.Context, zoneID int, start time.Time, dur time.Duration) error {
	req := pb.NewUpdateProgramRequest(zoneID, start, dur)
	err := d.command(ctx, "update_program", func(cctx context.Context) (*pb.CommandResponse, error) {
		return d.cli.UpdateProgram(cctx, req)
	})
	if err != nil {
		return fault.New(fault.Fatal, fmt.Sprintf("controller.update_program zone=%d", zoneID), err)
	}
	d.log.Info("program updated", logx.Int("zone", zoneID), logx.Time("start", start), logx.Duration("duration", dur))
	return nil
}

func (d *DeviceClient) DisableProgram(ctx context.Context, zoneID int) error {
	req := &pb.DisableProgramRequest{ZoneId: int32(zoneID)}
	err := d.command(ctx, "disable_program", func(cctx context.Context) (*pb.CommandResponse, error) {
		return d.cli.DisableProgram(cctx, req)
	})
	if err != nil {
		return fault.New(fault.Fatal, fmt.Sprintf("controller.disable_program zone=%d", zoneID), err)
	}
	d.log.Debug("program disabled", logx.Int("zone", zoneID))
	return nil
}

// command runs call with a per-attempt timeout. A response with Success=false is a
// refusal, not a transport fault, and is not retried.
func (d *DeviceClient) command(ctx context.Context, name string, call func(context.Context) (*pb.CommandResponse, error)) error {
	return fault.RetryOnce(ctx, func() error {
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		resp, err := call(cctx)
		if err != nil {
			d.log.Warn("controller call failed", logx.String("call", name), logx.Err(err))
			return err
		}
		if !resp.GetSuccess() {
			return backoff.Permanent(fmt.Errorf("%s refused: %s", name, resp.GetMessage()))
		}
		return nil
	})
}

// RunHistory implements aggregator.HistorySource. Errors are left untagged so the
// ledger can degrade to zero irrigation.
func (d *DeviceClient) RunHistory(ctx context.Context, zoneIDs []int, start, end time.Time) (map[int]entities.RunHistory, error) {
	req := &pb.RunHistoryRequest{Start: timestamppb.New(start), End: timestamppb.New(end)}
	for _, id := range zoneIDs {
		req.ZoneIds = append(req.ZoneIds, int32(id))
	}
	var resp *pb.RunHistoryResponse
	err := fault.RetryOnce(ctx, func() error {
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		r, err := d.cli.GetRunHistory(cctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("run history: %w", err)
	}
	out := make(map[int]entities.RunHistory, len(resp.GetZones()))
	for _, z := range resp.GetZones() {
		if z == nil {
			continue
		}
		h := entities.RunHistory{RuntimeSeconds: z.RuntimeSeconds}
		if z.LastRun != nil {
			h.LastRun = z.LastRun.AsTime()
		}
		out[int(z.ZoneId)] = h
	}
	return out, nil
}

func (d *DeviceClient) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// dryRunController is used when the controller type is "none". Commands are only logged.
type dryRunController struct {
	log logx.Logger
}

func (d dryRunController) UpdateProgram(_ context.Context, zoneID int, start time.Time, dur time.Duration) error {
	d.log.Info("dry run: would update program", logx.Int("zone", zoneID), logx.Time("start", start), logx.Duration("duration", dur))
	return nil
}

func (d dryRunController) DisableProgram(_ context.Context, zoneID int) error {
	d.log.Debug("dry run: would disable program", logx.Int("zone", zoneID))
	return nil
}
