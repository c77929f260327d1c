package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/model/messages"
	"github.com/apogeecmb/smartSprinkler/pkg/dedup"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

var ErrDuplicate = errors.New("duplicate notification suppressed")

// Sink delivers a single notification.
type Sink interface {
	Send(ctx context.Context, n messages.Notification) error
}

// Service posts notifications to a sink, dropping identical ones inside the dedup window.
type Service struct {
	sink    Sink
	deduper *dedup.Deduper
	log     logx.Logger
}

// New returns a Service. A zero ttl disables deduplication.
func New(sink Sink, ttl time.Duration, log logx.Logger) *Service {
	s := &Service{sink: sink, log: log.With(logx.String("component", "notify"))}
	if ttl > 0 {
		s.deduper = dedup.New(ttl, 1000)
	}
	return s
}

// Post sends event with at most three data values.
func (s *Service) Post(ctx context.Context, event string, data ...string) error {
	n := messages.NewNotification(event, data...)
	key := ""
	if s.deduper != nil {
		h := sha256.Sum256([]byte(event + "\x00" + strings.Join(n.Data, "\x00")))
		key = hex.EncodeToString(h[:])
		if !s.deduper.ShouldProcess(key) {
			s.log.Debug("notification suppressed", logx.String("event", event))
			return ErrDuplicate
		}
	}
	if err := s.sink.Send(ctx, n); err != nil {
		if key != "" {
			s.deduper.Forget(key)
		}
		return err
	}
	s.log.Debug("notification sent", logx.String("event", event))
	return nil
}
