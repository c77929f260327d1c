package irrigation_controller

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	pb "github.com/apogeecmb/smartSprinkler/grpc/irrigation"
	"github.com/apogeecmb/smartSprinkler/internal/fault"
	"github.com/apogeecmb/smartSprinkler/internal/services/device"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

func dialSimulator(t *testing.T) (*DeviceClient, *device.Simulator) {
	t.Helper()
	sim := device.NewSimulator(nil, "", logx.Nop())
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	pb.RegisterDeviceServiceServer(srv, device.NewGrpcHandler(sim))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	dc := NewDeviceClient(conn, pb.NewDeviceServiceClient(conn), 2*time.Second, logx.Nop())
	t.Cleanup(func() { _ = dc.Close() })
	return dc, sim
}

func TestDeviceClientPrograms(t *testing.T) {
	dc, sim := dialSimulator(t)
	ctx := context.Background()
	start := time.Date(2024, 6, 5, 18, 0, 0, 0, time.UTC)

	if err := dc.UpdateProgram(ctx, 1, start, 12*time.Minute); err != nil {
		t.Fatal(err)
	}
	p, ok := sim.Program(1)
	if !ok || !p.Enabled || !p.Start.Equal(start) || p.Duration != 12*time.Minute {
		t.Fatalf("program = %+v", p)
	}
	for i := 0; i < 2; i++ {
		if err := dc.DisableProgram(ctx, 1); err != nil {
			t.Fatalf("disable #%d: %v", i, err)
		}
	}
	if p, _ := sim.Program(1); p.Enabled {
		t.Fatal("still enabled")
	}

	err := dc.UpdateProgram(ctx, 1, start, 0)
	if !fault.IsFatal(err) {
		t.Fatalf("refused update: err = %v", err)
	}
}

func TestDeviceClientRunHistory(t *testing.T) {
	dc, sim := dialSimulator(t)
	start := time.Date(2024, 6, 5, 6, 0, 0, 0, time.UTC)
	sim.UpdateProgram(2, start, 15*time.Minute)
	sim.Tick(start)

	h, err := dc.RunHistory(context.Background(), []int{2, 4}, start.Add(-time.Hour), start.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if h[2].RuntimeSeconds != 900 || !h[2].LastRun.Equal(start) {
		t.Fatalf("history = %+v", h)
	}
	if _, ok := h[4]; ok {
		t.Fatal("zone 4 never ran")
	}
}
