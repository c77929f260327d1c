package device

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"

	pb "github.com/apogeecmb/smartSprinkler/grpc/irrigation"
	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
	"github.com/apogeecmb/smartSprinkler/internal/model/messages"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
	"github.com/apogeecmb/smartSprinkler/pkg/rabbitmq"
)

var t0 = time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)

type capture struct {
	mu     sync.Mutex
	topics []string
	events []messages.StateChangeEvent
}

func (c *capture) PublishMessage(interface{}) error { return nil }
func (c *capture) PublishToQos(topic string, _ byte, _ bool, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.events = append(c.events, payload.(messages.StateChangeEvent))
	return nil
}
func (c *capture) Close() {}

func newSim() (*Simulator, *capture) {
	c := &capture{}
	return NewSimulator(func(string) rabbitmq.IPublisher { return c }, "", logx.Nop()), c
}

func TestUpdateProgramIdempotent(t *testing.T) {
	s, _ := newSim()
	a := s.UpdateProgram(1, t0, 10*time.Minute)
	b := s.UpdateProgram(1, t0, 10*time.Minute)
	if a.ID != b.ID {
		t.Fatal("same program produced a new id")
	}
	c := s.UpdateProgram(1, t0.Add(time.Hour), 10*time.Minute)
	if c.ID == a.ID {
		t.Fatal("changed program kept the old id")
	}
}

func TestDisableProgramIdempotent(t *testing.T) {
	s, _ := newSim()
	s.UpdateProgram(2, t0, time.Minute)
	if !s.DisableProgram(2) {
		t.Fatal("first disable reported no change")
	}
	first, _ := s.Program(2)
	if s.DisableProgram(2) {
		t.Fatal("second disable reported a change")
	}
	second, _ := s.Program(2)
	if first != second {
		t.Fatalf("state differs after second disable: %+v vs %+v", first, second)
	}
	if s.DisableProgram(9) {
		t.Fatal("disabling an unknown zone reported a change")
	}
}

func TestTickAndHistory(t *testing.T) {
	s, c := newSim()
	s.UpdateProgram(1, t0, 10*time.Minute)
	s.UpdateProgram(2, t0.Add(time.Hour), 5*time.Minute)
	s.UpdateProgram(3, t0, 5*time.Minute)
	s.DisableProgram(3)

	s.Tick(t0.Add(time.Second))
	s.Tick(t0.Add(2 * time.Second)) // fires only once
	s.Tick(t0.Add(11 * time.Minute))

	if len(c.events) != 2 {
		t.Fatalf("events = %+v", c.events)
	}
	if c.events[0].NewState != entities.ValveOn || c.events[1].NewState != entities.ValveOff || c.topics[0] != "sprinkler/zone/1/state" {
		t.Fatalf("events = %+v topics = %v", c.events, c.topics)
	}

	h := s.History([]int{1, 2, 3}, t0.Add(-time.Hour), t0.Add(2*time.Hour))
	if h[1].RuntimeSeconds != 600 || !h[1].LastRun.Equal(t0) {
		t.Fatalf("history = %+v", h)
	}
	if _, ok := h[2]; ok {
		t.Fatal("zone 2 has not run yet")
	}
	if len(s.History([]int{1}, t0, t0.Add(time.Hour))) != 0 {
		t.Fatal("a run starting exactly at the window start must be ignored")
	}
}

func TestGrpcHandler(t *testing.T) {
	s, _ := newSim()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	pb.RegisterDeviceServiceServer(srv, NewGrpcHandler(s))
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	cli := pb.NewDeviceServiceClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := cli.UpdateProgram(ctx, pb.NewUpdateProgramRequest(4, t0, 20*time.Minute))
	if err != nil || !resp.GetSuccess() {
		t.Fatalf("update: %v %+v", err, resp)
	}
	if p, ok := s.Program(4); !ok || !p.Start.Equal(t0) || p.Duration != 20*time.Minute {
		t.Fatalf("program = %+v", p)
	}

	resp, err = cli.UpdateProgram(ctx, pb.NewUpdateProgramRequest(4, t0, 0))
	if err != nil || resp.GetSuccess() {
		t.Fatalf("zero duration accepted: %v %+v", err, resp)
	}

	for i := 0; i < 2; i++ {
		resp, err = cli.DisableProgram(ctx, &pb.DisableProgramRequest{ZoneId: 4})
		if err != nil || !resp.GetSuccess() {
			t.Fatalf("disable #%d: %v %+v", i, err, resp)
		}
	}

	s.UpdateProgram(5, t0, 3*time.Minute)
	s.Tick(t0)
	hist, err := cli.GetRunHistory(ctx, &pb.RunHistoryRequest{
		ZoneIds: []int32{5},
		Start:   timestamppb.New(t0.Add(-time.Hour)),
		End:     timestamppb.New(t0.Add(time.Hour)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hist.GetZones()) != 1 || hist.Zones[0].RuntimeSeconds != 180 {
		t.Fatalf("history = %+v", hist.GetZones())
	}
}
